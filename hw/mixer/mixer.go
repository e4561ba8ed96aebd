// Package mixer provides a band-limited stereo downsampler shared by the
// sound chips of all systems. Chips report their output level at a given
// chip-clock timestamp, the mixer resamples at the host sample rate.
package mixer

import (
	"github.com/arl/blip"
	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
)

const maxSamplesPerFrame = 8192

// Stereo accumulates level changes of a left and a right channel into two
// blip buffers.
type Stereo struct {
	bufleft  *blip.Buffer
	bufright *blip.Buffer

	prevLeft  int32
	prevRight int32

	clockRate  float64
	sampleRate int

	outbuf [maxSamplesPerFrame * 2]int16
}

func NewStereo(clockRate float64, sampleRate int) *Stereo {
	s := &Stereo{
		bufleft:  blip.NewBuffer(maxSamplesPerFrame),
		bufright: blip.NewBuffer(maxSamplesPerFrame),
	}
	s.SetRates(clockRate, sampleRate)
	return s
}

// SetRates changes the input clock rate and output sample rate. Buffered
// samples are discarded.
func (s *Stereo) SetRates(clockRate float64, sampleRate int) {
	s.clockRate = clockRate
	s.sampleRate = sampleRate
	s.bufleft.SetRates(clockRate, float64(sampleRate))
	s.bufright.SetRates(clockRate, float64(sampleRate))
	s.Clear()
}

func (s *Stereo) SampleRate() int      { return s.sampleRate }
func (s *Stereo) ClockRate() float64   { return s.clockRate }
func (s *Stereo) Levels() (l, r int32) { return s.prevLeft, s.prevRight }

func (s *Stereo) Clear() {
	s.bufleft.Clear()
	s.bufright.Clear()
	s.prevLeft = 0
	s.prevRight = 0
}

// SetLevels records the output levels at the given time, in input clocks
// relative to the start of the current frame.
func (s *Stereo) SetLevels(time uint64, left, right int32) {
	if left != s.prevLeft {
		s.bufleft.AddDelta(time, left-s.prevLeft)
		s.prevLeft = left
	}
	if right != s.prevRight {
		s.bufright.AddDelta(time, right-s.prevRight)
		s.prevRight = right
	}
}

// EndFrame closes the current frame, lasting duration input clocks, and
// pushes all available samples to out.
func (s *Stereo) EndFrame(duration int, out frontend.AudioOutput) error {
	s.bufleft.EndFrame(duration)
	s.bufright.EndFrame(duration)

	n := s.bufleft.ReadSamples(s.outbuf[:], maxSamplesPerFrame, blip.Stereo)
	s.bufright.ReadSamples(s.outbuf[1:], maxSamplesPerFrame, blip.Stereo)

	log.ModSound.DebugZ("end audio frame").
		Int("clocks", duration).
		Int("samples", n).
		End()

	for i := range n {
		l := float64(s.outbuf[2*i]) / 32768
		r := float64(s.outbuf[2*i+1]) / 32768
		if err := out.PushSample(l, r); err != nil {
			return errors.Wrap(err, "push sample")
		}
	}
	return nil
}
