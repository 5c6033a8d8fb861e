// Package importer brings new photos into the frame's photo
// directory: content-hash naming for dedupe, downscaling to the
// screen size, and optional date-based organization.
package importer

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/barasher/go-exiftool"
	"github.com/karrick/godirwalk"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

var exifDate = "2006:01:02 15:04:05"

// ErrUnsupported means the file's extension is not an importable
// image format.
var ErrUnsupported = errors.New("unsupported image format")

// importable formats are the ones we can decode for resizing.
var importExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

const jpegQuality = 85

// Importer copies photos into the photo directory. Photos larger
// than the screen are downscaled and re-encoded as JPEG; smaller ones
// are copied as-is. The destination name is the SHA-1 of the source
// bytes, so re-importing the same photo is a no-op.
type Importer struct {
	photosDir string
	maxWidth  int
	maxHeight int

	et *exiftool.Exiftool
}

// New returns an importer targeting photosDir, downscaling anything
// larger than maxWidth x maxHeight.
func New(photosDir string, maxWidth, maxHeight int) *Importer {
	return &Importer{photosDir: photosDir, maxWidth: maxWidth, maxHeight: maxHeight}
}

// EnableExifDates starts an exiftool session so imports are organized
// into YYYY/YYYY-MM subdirectories by their DateTimeOriginal tag.
// Photos without the tag land in the top-level directory as before.
func (im *Importer) EnableExifDates() error {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return fmt.Errorf("exiftool: %w", err)
	}
	im.et = et
	return nil
}

// Close releases the exiftool session, if any.
func (im *Importer) Close() {
	if im.et != nil {
		im.et.Close()
		im.et = nil
	}
}

// Import brings one photo into the photo directory and returns the
// destination path. An already-imported photo returns its existing
// destination.
func (im *Importer) Import(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !importExts[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	sum, err := hashFile(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	w, h, err := dimensions(path)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	resize := w > im.maxWidth || h > im.maxHeight

	destDir := filepath.Join(im.photosDir, im.dateSubdir(path))
	destExt := ext
	if resize {
		destExt = ".jpg"
	}
	dest := filepath.Join(destDir, sum+destExt)

	if _, err := os.Stat(dest); err == nil {
		klog.Infof("already imported: %s -> %s", path, dest)
		return dest, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	if !resize {
		klog.Infof("importing %s (%dx%d, within bounds) -> %s", path, w, h, dest)
		if err := copy.Copy(path, dest); err != nil {
			return "", fmt.Errorf("copy: %w", err)
		}
		return dest, nil
	}

	nw, nh := fitWithin(w, h, im.maxWidth, im.maxHeight)
	klog.Infof("importing %s (%dx%d -> %dx%d) -> %s", path, w, h, nw, nh, dest)

	img, err := imgio.Open(path)
	if err != nil {
		return "", fmt.Errorf("imgio.Open: %w", err)
	}
	rimg := transform.Resize(img, nw, nh, transform.Lanczos)
	if err := imgio.Save(dest, rimg, imgio.JPEGEncoder(jpegQuality)); err != nil {
		return "", fmt.Errorf("save: %w", err)
	}

	return dest, nil
}

// ImportDir walks dir and imports every supported photo, returning
// how many were brought in. Individual failures are logged and
// skipped so one bad file does not abort a batch.
func (im *Importer) ImportDir(dir string) (int, error) {
	n := 0
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if strings.HasPrefix(filepath.Base(path), ".") {
				return godirwalk.SkipThis
			}
			if de.IsDir() {
				return nil
			}
			if !importExts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			if _, err := im.Import(path); err != nil {
				klog.Errorf("import %s failed: %v", path, err)
				return nil
			}
			n++
			return nil
		},
	})
	return n, err
}

// dateSubdir returns "YYYY/YYYY-MM" from the photo's EXIF date, or ""
// when exiftool is disabled or the date is missing.
func (im *Importer) dateSubdir(path string) string {
	if im.et == nil {
		return ""
	}

	fis := im.et.ExtractMetadata(path)
	fi := fis[0]
	if fi.Err != nil {
		klog.V(1).Infof("exif extract failed for %s: %v", path, fi.Err)
		return ""
	}

	ds, err := fi.GetString("DateTimeOriginal")
	if err != nil {
		klog.V(1).Infof("no DateTimeOriginal for %s: %v", path, err)
		return ""
	}

	taken, err := time.Parse(exifDate, ds)
	if err != nil {
		klog.Warningf("unparseable EXIF date %q for %s: %v", ds, path, err)
		return ""
	}

	return filepath.Join(taken.Format("2006"), taken.Format("2006-01"))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	ic, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return ic.Width, ic.Height, nil
}

// fitWithin scales (w, h) down to fit (maxW, maxH), preserving aspect
// ratio. Callers only invoke it when the image exceeds the bounds.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	ws := float64(maxW) / float64(w)
	hs := float64(maxH) / float64(h)
	scale := ws
	if hs < ws {
		scale = hs
	}
	return int(float64(w) * scale), int(float64(h) * scale)
}
