package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/fsnotify/fsnotify"
	"github.com/tstromberg/fotoramme/pkg/config"
	"github.com/tstromberg/fotoramme/pkg/frameserver"
	"github.com/tstromberg/fotoramme/pkg/importer"
	"github.com/tstromberg/fotoramme/pkg/memuse"
	"github.com/tstromberg/fotoramme/pkg/photos"
	"github.com/tstromberg/fotoramme/pkg/slideshow"
)

var (
	configFlag  = flag.String("config", "", "path to frame-config.yaml (default: search cwd and ~/.fotoramme)")
	photosFlag  = flag.String("photos", "", "photos directory (overrides config)")
	listenFlag  = flag.Bool("listen", false, "serve the web API")
	addrFlag    = flag.String("addr", "", "host:port for the web API (overrides config)")
	watchFlag   = flag.Bool("watch", false, "watch the photos directory and refresh the listing on changes")
	importFlag  = flag.Bool("import", false, "import photos from the configured import directory at startup")
	memInterval = flag.Duration("mem-interval", time.Minute, "how often to log memory usage")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		klog.Exitf("config failed: %v", err)
	}
	if *photosFlag != "" {
		cfg.PhotosDir = *photosFlag
	}
	if *addrFlag != "" {
		cfg.ServerAddr = *addrFlag
	}

	photosDir := cfg.PhotosPath()
	klog.Infof("fotoramme starting up, photos from %s", photosDir)

	imp := importer.New(photosDir, cfg.ScreenWidth, cfg.ScreenHeight)
	if err := imp.EnableExifDates(); err != nil {
		klog.Warningf("EXIF dating disabled: %v", err)
	}
	defer imp.Close()

	if *importFlag {
		if in := cfg.ImportPath(); in != "" {
			n, err := imp.ImportDir(in)
			if err != nil {
				klog.Exitf("import failed: %v", err)
			}
			klog.Infof("imported %d photos from %s", n, in)
		} else {
			klog.Warningf("--import set but no import_directory configured")
		}
	}

	loader := photos.NewDirLoader(photosDir)
	show, err := slideshow.New(loader, cfg.DisplayDuration(), cfg.FadeDuration(), time.Now())
	if err != nil {
		klog.Exitf("slideshow failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The photo source is owned by the tick loop; the watcher and the
	// upload handler only raise a flag that the loop acts on.
	var stale atomic.Bool
	board := &statusBoard{}

	var wg sync.WaitGroup
	if *watchFlag {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(ctx, photosDir, &stale); err != nil {
				klog.Errorf("watch failed: %v", err)
			}
		}()
	}

	if *listenFlag {
		srv := &frameserver.Server{
			Imp:            imp,
			Status:         board.get,
			MaxUploadBytes: cfg.MaxUploadBytes,
			OnImport:       func(string) { stale.Store(true) },
		}
		go func() {
			if err := srv.ListenAndServe(cfg.ServerAddr); err != nil {
				klog.Exitf("listen failed: %v", err)
			}
		}()
	}

	mem := memuse.NewMonitor()
	err = slideshow.Run(ctx, show, tickInterval(cfg.FadeDuration()), func(f slideshow.Frame) {
		if stale.Swap(false) {
			loader.Refresh()
		}
		board.set(frameserver.FromFrame(f))
		mem.MaybeLog(*memInterval)
	})
	if err != nil && ctx.Err() == nil {
		klog.Exitf("slideshow stopped: %v", err)
	}

	stop()
	wg.Wait()
	klog.Infof("fotoramme shutting down")
}

func loadConfig() (*config.Config, error) {
	if *configFlag != "" {
		return config.LoadFile(*configFlag)
	}
	return config.Load()
}

// tickInterval picks a render cadence that keeps the crossfade smooth
// without spinning: a twentieth of the fade, clamped to [50ms, 1s].
func tickInterval(fade time.Duration) time.Duration {
	iv := fade / 20
	if iv < 50*time.Millisecond {
		iv = 50 * time.Millisecond
	}
	if iv > time.Second {
		iv = time.Second
	}
	return iv
}

// statusBoard holds the latest frame for the web API.
type statusBoard struct {
	mu sync.RWMutex
	st frameserver.Status
}

func (b *statusBoard) set(st frameserver.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = st
}

func (b *statusBoard) get() frameserver.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st
}

// watch marks the photo listing stale whenever the directory changes.
func watch(ctx context.Context, dir string, stale *atomic.Bool) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	klog.Infof("watching %s for changes ...", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				klog.V(1).Infof("photo directory changed: %s", event)
				stale.Store(true)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}
