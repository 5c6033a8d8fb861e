// Package photos turns a directory of image files into an endless,
// restartable stream of photo references.
package photos

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

var (
	// ErrDirUnreadable means the base directory could not be listed.
	ErrDirUnreadable = errors.New("photos directory unreadable")
	// ErrNoPhotos means the base directory held no image files.
	ErrNoPhotos = errors.New("no photos found")
	// ErrResolve means one entry could not be resolved to a file URL.
	ErrResolve = errors.New("unable to resolve photo")
)

// imageExts are the file extensions we consider displayable.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// Loader yields photo references, restarting at exhaustion.
type Loader interface {
	Next() (*url.URL, error)
}

// DirLoader is a Loader over a single flat directory. Each pass lists
// the directory once, sorts the entries, and resolves them one per
// Next call, so files added or removed between passes are picked up.
// Not safe for concurrent use.
type DirLoader struct {
	baseDir string

	// nil pass means not started (or exhausted and pending restart).
	pass []string
	pos  int
}

// NewDirLoader returns a loader for baseDir. The directory is not
// touched until the first Next call.
func NewDirLoader(baseDir string) *DirLoader {
	return &DirLoader{baseDir: baseDir}
}

// Next returns the next photo in the current pass, starting a fresh
// pass when none is active. Exhaustion is invisible to the caller
// beyond a possible change in ordering: the listing is redone and the
// first entry of the new pass is returned. Failed calls leave the
// loader retryable.
func (d *DirLoader) Next() (*url.URL, error) {
	// One relist per call keeps an always-empty directory from
	// looping: a fresh pass that comes up empty is an error, not a
	// reason to list again.
	for attempt := 0; attempt < 2; attempt++ {
		if d.pass == nil {
			klog.Infof("reading photos from directory: %s", d.baseDir)
			names, err := listImages(d.baseDir)
			if err != nil {
				return nil, err
			}
			d.pass = names
			d.pos = 0
		}

		if d.pos < len(d.pass) {
			name := d.pass[d.pos]
			d.pos++
			return resolve(filepath.Join(d.baseDir, name))
		}

		klog.V(1).Infof("reached end of photo list, restarting")
		d.pass = nil
	}

	return nil, fmt.Errorf("%w in directory %s", ErrNoPhotos, d.baseDir)
}

// Refresh discards the active pass so the next call relists the
// directory.
func (d *DirLoader) Refresh() {
	d.pass = nil
	klog.V(1).Infof("photo listing will be refreshed on next load")
}

// listImages returns the sorted image entries of dir.
func listImages(dir string) ([]string, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirUnreadable, err)
	}

	names := []string{}
	for _, de := range dirents {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(de.Name()))] {
			continue
		}
		names = append(names, de.Name())
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w in directory %s", ErrNoPhotos, dir)
	}

	// Directory order varies by filesystem; sort for a deterministic pass.
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	klog.V(1).Infof("found %d image files in %s", len(names), dir)
	return names, nil
}

// resolve canonicalizes path into an absolute file URL. A file
// deleted between listing and resolution fails here, and the caller's
// cursor has already moved past it.
func resolve(path string) (*url.URL, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, path, err)
	}

	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, path, err)
	}

	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(canon)}
	klog.V(2).Infof("resolved %s -> %s", path, u)
	return u, nil
}
