package slideshow

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tstromberg/fotoramme/pkg/photos"
)

func ref(name string) *url.URL {
	return &url.URL{Scheme: "file", Path: "/photos/" + name}
}

// fakeSource cycles through refs, serving queued errors first.
type fakeSource struct {
	refs  []*url.URL
	errs  []error
	calls int
}

func (f *fakeSource) Next() (*url.URL, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	u := f.refs[0]
	f.refs = append(f.refs[1:], f.refs[0])
	return u, nil
}

func TestNew_InitialLoadFailure(t *testing.T) {
	src := &fakeSource{errs: []error{photos.ErrNoPhotos}}

	if _, err := New(src, 5*time.Second, time.Second, time.Now()); !errors.Is(err, ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
}

func TestTick_IdleUntilDisplayElapsed(t *testing.T) {
	t0 := time.Now()
	src := &fakeSource{refs: []*url.URL{ref("a.jpg"), ref("b.jpg")}}
	c, err := New(src, 5*time.Second, 2*time.Second, t0)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 4; i++ {
		f := c.Tick(t0.Add(time.Duration(i) * time.Second))
		if f.Transitioning() {
			t.Fatalf("tick %d: unexpected transition", i)
		}
		if f.Current.Opacity != 1 || f.Current.Ref.String() != ref("a.jpg").String() {
			t.Fatalf("tick %d: unexpected frame %+v", i, f)
		}
	}

	// Display duration reached: transition begins at zero progress.
	f := c.Tick(t0.Add(5 * time.Second))
	if !f.Transitioning() {
		t.Fatal("tick 5: expected transition to begin")
	}
	if f.Current.Opacity != 1 || f.Next.Opacity != 0 {
		t.Fatalf("tick 5: expected opacities (1, 0), got (%v, %v)", f.Current.Opacity, f.Next.Opacity)
	}
	if f.Next.Ref.String() != ref("b.jpg").String() {
		t.Fatalf("tick 5: expected next b.jpg, got %s", f.Next.Ref)
	}

	// Halfway through the fade.
	f = c.Tick(t0.Add(6 * time.Second))
	if f.Current.Opacity != 0.5 || f.Next.Opacity != 0.5 {
		t.Fatalf("tick 6: expected opacities (0.5, 0.5), got (%v, %v)", f.Current.Opacity, f.Next.Opacity)
	}

	// Fade complete: buffers swap, back to idle.
	f = c.Tick(t0.Add(7 * time.Second))
	if f.Transitioning() {
		t.Fatal("tick 7: expected idle")
	}
	if f.Current.Opacity != 1 || f.Current.Ref.String() != ref("b.jpg").String() {
		t.Fatalf("tick 7: expected b.jpg at full opacity, got %+v", f)
	}
	if c.Current().String() != ref("b.jpg").String() {
		t.Fatalf("expected current b.jpg, got %s", c.Current())
	}
}

func TestTick_Idempotent(t *testing.T) {
	t0 := time.Now()
	src := &fakeSource{refs: []*url.URL{ref("a.jpg"), ref("b.jpg")}}
	c, err := New(src, 5*time.Second, 2*time.Second, t0)
	if err != nil {
		t.Fatal(err)
	}

	for _, at := range []time.Duration{time.Second, 5 * time.Second, 6 * time.Second, 7 * time.Second} {
		f1 := c.Tick(t0.Add(at))
		f2 := c.Tick(t0.Add(at))
		if f1.Current != f2.Current {
			t.Fatalf("at +%s: current differs: %+v vs %+v", at, f1.Current, f2.Current)
		}
		if (f1.Next == nil) != (f2.Next == nil) {
			t.Fatalf("at +%s: transition state differs", at)
		}
		if f1.Next != nil && *f1.Next != *f2.Next {
			t.Fatalf("at +%s: next differs: %+v vs %+v", at, *f1.Next, *f2.Next)
		}
	}
}

func TestTick_SourceFailureKeepsCurrent(t *testing.T) {
	t0 := time.Now()
	c, err := New(&fakeSource{refs: []*url.URL{ref("a.jpg")}}, 5*time.Second, time.Second, t0)
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{refs: []*url.URL{ref("b.jpg")}, errs: []error{photos.ErrNoPhotos}}
	c.src = src

	// The failed fetch keeps the last good photo on screen.
	f := c.Tick(t0.Add(5 * time.Second))
	if f.Transitioning() {
		t.Fatal("expected idle after failed fetch")
	}
	if f.Current.Opacity != 1 || f.Current.Ref.String() != ref("a.jpg").String() {
		t.Fatalf("expected a.jpg at full opacity, got %+v", f)
	}

	// The period was reset on failure: no retry until another full
	// display duration has elapsed.
	calls := src.calls
	c.Tick(t0.Add(9 * time.Second))
	if src.calls != calls {
		t.Fatalf("expected no source pull before period elapses, got %d pulls", src.calls-calls)
	}

	f = c.Tick(t0.Add(10 * time.Second))
	if !f.Transitioning() {
		t.Fatal("expected retry to start a transition")
	}
}

func TestTick_ZeroFadeSwapsInstantly(t *testing.T) {
	t0 := time.Now()
	src := &fakeSource{refs: []*url.URL{ref("a.jpg"), ref("b.jpg")}}
	c, err := New(src, 5*time.Second, 0, t0)
	if err != nil {
		t.Fatal(err)
	}

	f := c.Tick(t0.Add(5 * time.Second))
	if f.Transitioning() {
		t.Fatal("zero fade should swap without a transition frame")
	}
	if f.Current.Ref.String() != ref("b.jpg").String() {
		t.Fatalf("expected b.jpg, got %s", f.Current.Ref)
	}
}

func TestTick_ReadyGateHoldsFade(t *testing.T) {
	t0 := time.Now()
	src := &fakeSource{refs: []*url.URL{ref("a.jpg"), ref("b.jpg")}}
	c, err := New(src, 5*time.Second, 2*time.Second, t0)
	if err != nil {
		t.Fatal(err)
	}

	loaded := false
	c.SetReadyFunc(func(*url.URL) bool { return loaded })

	// Incoming image not decoded yet: opacity must stay at zero no
	// matter how much time passes.
	for _, at := range []time.Duration{5 * time.Second, 8 * time.Second, 20 * time.Second} {
		f := c.Tick(t0.Add(at))
		if !f.Transitioning() {
			t.Fatalf("at +%s: expected pending transition", at)
		}
		if f.Next.Opacity != 0 || f.Current.Opacity != 1 {
			t.Fatalf("at +%s: fade advanced before image was ready: %+v", at, f)
		}
	}

	// Once ready, the fade runs from that point.
	loaded = true
	f := c.Tick(t0.Add(21 * time.Second))
	if f.Next == nil || f.Next.Opacity != 0.5 {
		t.Fatalf("expected fade at 0.5 one second after ready, got %+v", f)
	}
}

func TestEndToEnd_CyclicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.jpg", "b.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	t0 := time.Now()
	c, err := New(photos.NewDirLoader(dir), 5*time.Second, time.Second, t0)
	if err != nil {
		t.Fatal(err)
	}
	first := c.Current()

	// After the display period a transition starts to the other photo.
	f := c.Tick(t0.Add(5 * time.Second))
	if !f.Transitioning() {
		t.Fatal("expected transition after display period")
	}
	if f.Next.Ref.String() == first.String() {
		t.Fatalf("expected transition to the other photo, got %s again", f.Next.Ref)
	}

	// One fade duration later we are idle on the other photo.
	f = c.Tick(t0.Add(6 * time.Second))
	if f.Transitioning() || c.Current().String() == first.String() {
		t.Fatalf("expected idle on the other photo, got %+v", f)
	}

	// And a full cycle later we are transitioning back.
	f = c.Tick(t0.Add(11 * time.Second))
	if !f.Transitioning() {
		t.Fatal("expected second transition")
	}
	if f.Next.Ref.String() != first.String() {
		t.Fatalf("expected round trip back to %s, got %s", first, f.Next.Ref)
	}
	f = c.Tick(t0.Add(12 * time.Second))
	if f.Transitioning() || c.Current().String() != first.String() {
		t.Fatalf("expected idle back on %s, got %+v", first, f)
	}
}
