// Package frontend defines the interfaces between emulated consoles and the
// outside world: video, audio and save files.
package frontend

import "fmt"

// Color is a 24-bit RGB color.
type Color struct {
	R, G, B uint8
}

type FrameSize struct {
	Width, Height int
}

func (fs FrameSize) Len() int { return fs.Width * fs.Height }

// PixelAspectRatio is the width/height ratio of a single pixel. A nil
// *PixelAspectRatio means the frame should be stretched to the window.
type PixelAspectRatio float64

// Renderer displays completed frames.
type Renderer interface {
	RenderFrame(frame []Color, size FrameSize, par *PixelAspectRatio) error
}

// AudioOutput receives downsampled stereo samples in [-1, 1].
type AudioOutput interface {
	PushSample(l, r float64) error
}

// SaveWriter persists battery-backed cartridge RAM.
type SaveWriter interface {
	PersistSave(ram []byte) error
}

// ErrorKind tells which collaborator failed during a console tick.
type ErrorKind uint8

const (
	RenderError ErrorKind = iota
	AudioError
	SaveError
)

func (k ErrorKind) String() string {
	switch k {
	case RenderError:
		return "render"
	case AudioError:
		return "audio"
	case SaveError:
		return "save"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error wraps the error returned by a collaborator. The machine state is not
// rolled back: the tick that failed has already been emulated.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

type TickEffect uint8

const (
	TickNone TickEffect = iota
	FrameRendered
)

func (te TickEffect) String() string {
	switch te {
	case TickNone:
		return "none"
	case FrameRendered:
		return "frame-rendered"
	}
	return fmt.Sprintf("TickEffect(%d)", uint8(te))
}

type TimingMode uint8

const (
	NTSC TimingMode = iota
	PAL
)

func (tm TimingMode) String() string {
	if tm == PAL {
		return "PAL"
	}
	return "NTSC"
}

// Nop collaborators, for headless runs and tests.
type (
	NopRenderer   struct{}
	NopAudio      struct{}
	NopSaveWriter struct{}
)

func (NopRenderer) RenderFrame([]Color, FrameSize, *PixelAspectRatio) error { return nil }
func (NopAudio) PushSample(float64, float64) error                         { return nil }
func (NopSaveWriter) PersistSave([]byte) error                             { return nil }
