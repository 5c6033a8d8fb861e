package frameserver

import "github.com/tstromberg/fotoramme/pkg/slideshow"

// FromFrame converts a slideshow frame into the wire status.
func FromFrame(f slideshow.Frame) Status {
	st := Status{
		CurrentOpacity: f.Current.Opacity,
		Transitioning:  f.Transitioning(),
	}
	if f.Current.Ref != nil {
		st.Current = f.Current.Ref.String()
	}
	if f.Next != nil {
		st.Next = f.Next.Ref.String()
		st.NextOpacity = f.Next.Opacity
	}
	return st
}
