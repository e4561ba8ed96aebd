// Package wavout records the audio output of a console into a 16-bit stereo
// WAV file.
package wavout

import (
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/go-faster/errors"

	"retrocore/emu/log"
)

const (
	bitDepth  = 16
	numChans  = 2
	pcmFormat = 1

	// Samples are flushed to the encoder by chunks of that many frames.
	chunkFrames = 4096
)

// Writer implements frontend.AudioOutput.
type Writer struct {
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	closer io.Closer
	frames int
}

// New returns a Writer encoding to w. If w is an io.Closer, Close closes it.
func New(w io.WriteSeeker, sampleRate int) *Writer {
	wr := &Writer{
		enc: wav.NewEncoder(w, sampleRate, bitDepth, numChans, pcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
			Data:           make([]int, 0, chunkFrames*numChans),
			SourceBitDepth: bitDepth,
		},
	}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr
}

func toPCM(v float64) int {
	v = math.Max(-1, math.Min(1, v))
	return int(math.Round(v * math.MaxInt16))
}

// PushSample appends a stereo sample, values are clamped to [-1, 1].
func (w *Writer) PushSample(l, r float64) error {
	w.buf.Data = append(w.buf.Data, toPCM(l), toPCM(r))
	w.frames++
	if len(w.buf.Data) < chunkFrames*numChans {
		return nil
	}
	return w.flush()
}

func (w *Writer) flush() error {
	if len(w.buf.Data) == 0 {
		return nil
	}
	if err := w.enc.Write(w.buf); err != nil {
		return errors.Wrap(err, "wav write")
	}
	w.buf.Data = w.buf.Data[:0]
	return nil
}

// Frames returns the number of stereo samples written so far.
func (w *Writer) Frames() int { return w.frames }

// Close flushes pending samples and finalizes the WAV header.
func (w *Writer) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.enc.Close(); err != nil {
		return errors.Wrap(err, "wav close")
	}
	log.ModSound.InfoZ("wav output closed").Int("frames", w.frames).End()
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
