// Package gbapu implements the Game Boy audio processing unit: 2 pulse
// channels (the first one with a frequency sweep), a wave channel, a noise
// channel and the frame sequencer clocking their length counters, envelopes
// and sweep.
package gbapu

import (
	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
	"retrocore/hw/hwio"
	"retrocore/hw/mixer"
	"retrocore/hw/snapshot"
)

// ClockRate is the rate at which Tick must be called (M-cycles per second).
const ClockRate = 1 << 20

// The frame sequencer is clocked at 512Hz by the system timer.
type frameSequencer struct {
	step uint8 // next step to execute
}

type APU struct {
	Pulse1 pulseChannel
	Pulse2 pulseChannel
	Wave   waveChannel
	Noise  noiseChannel

	seq     frameSequencer
	powered bool

	mixer *mixer.Stereo
	time  uint32 // M-cycles since the start of the current audio frame

	NR50 hwio.Reg8 `hwio:"offset=0x14,wcb"`
	NR51 hwio.Reg8 `hwio:"offset=0x15,wcb"`
	NR52 hwio.Reg8 `hwio:"offset=0x16,rcb,wcb"`
}

func New(sampleRate int) *APU {
	a := &APU{
		powered: true,
		mixer:   mixer.NewStereo(ClockRate, sampleRate),
	}
	a.Pulse1 = newPulseChannel(a, Pulse1, true)
	a.Pulse2 = newPulseChannel(a, Pulse2, false)
	a.Wave = newWaveChannel(a)
	a.Noise = newNoiseChannel(a)

	hwio.MustInitRegs(a)
	hwio.MustInitRegs(&a.Pulse1)
	hwio.MustInitRegs(&a.Pulse2)
	hwio.MustInitRegs(&a.Wave)
	hwio.MustInitRegs(&a.Noise)
	return a
}

// Map maps the sound registers and wave RAM ($FF10-$FF3F) on t.
func (a *APU) Map(t *hwio.Table) {
	t.MapBank(0xFF10, &a.Pulse1, 0)
	t.MapBank(0xFF15, &a.Pulse2, 0)
	t.MapBank(0xFF1A, &a.Wave, 0)
	t.MapBank(0xFF20, &a.Noise, 0)
	t.MapBank(0xFF10, a, 0)
}

func (a *APU) WriteNR50(old, val uint8) {
	if !a.powered {
		a.NR50.Value = old
	}
}

func (a *APU) WriteNR51(old, val uint8) {
	if !a.powered {
		a.NR51.Value = old
	}
}

// NR52: $FF26
func (a *APU) ReadNR52(_ uint8) uint8 {
	v := uint8(0x70)
	if a.powered {
		v |= 0x80
	}
	if a.Pulse1.Enabled() {
		v |= 0x01
	}
	if a.Pulse2.Enabled() {
		v |= 0x02
	}
	if a.Wave.Enabled() {
		v |= 0x04
	}
	if a.Noise.Enabled() {
		v |= 0x08
	}
	return v
}

func (a *APU) WriteNR52(_, val uint8) {
	on := val&0x80 != 0
	switch {
	case a.powered && !on:
		a.powerOff()
	case !a.powered && on:
		a.powered = true
		a.seq = frameSequencer{}
	}
	log.ModSound.InfoZ("write NR52").Bool("on", on).End()
}

// powerOff clears all sound registers, wave RAM is preserved.
func (a *APU) powerOff() {
	a.powered = false
	a.Pulse1.reset()
	a.Pulse2.reset()
	a.Wave.reset()
	a.Noise.reset()
	a.NR50.Value = 0
	a.NR51.Value = 0
}

func (a *APU) Powered() bool { return a.powered }

// Tick advances the APU by one M-cycle.
func (a *APU) Tick() {
	if a.powered {
		a.Pulse1.ClockTimer()
		a.Pulse2.ClockTimer()
		a.Wave.ClockTimer()
		a.Noise.ClockTimer()
	}

	l, r := a.output()
	a.mixer.SetLevels(uint64(a.time), l, r)
	a.time++
}

// ClockFrameSequencer executes the next frame sequencer step. It's called
// on each falling edge of the timer divider bit driving the sequencer, so
// resetting the divider (writing DIV) also resets the sequencer phase.
func (a *APU) ClockFrameSequencer() {
	if a.powered {
		a.clockFrameSequencer()
	}
}

//	Step   Length  Sweep   Envelope
//	---------------------------------
//	0      Clock   -       -
//	1      -       -       -
//	2      Clock   Clock   -
//	3      -       -       -
//	4      Clock   -       -
//	5      -       -       -
//	6      Clock   Clock   -
//	7      -       -       Clock
func (a *APU) clockFrameSequencer() {
	step := a.seq.step
	if clocksLength(step) {
		a.Pulse1.ClockLength()
		a.Pulse2.ClockLength()
		a.Wave.ClockLength()
		a.Noise.ClockLength()
	}
	if step == 2 || step == 6 {
		a.Pulse1.ClockSweep()
	}
	if step == 7 {
		a.Pulse1.ClockEnvelope()
		a.Pulse2.ClockEnvelope()
		a.Noise.ClockEnvelope()
	}
	a.seq.step = (step + 1) & 7
}

type sampler interface {
	Sample() (uint8, bool)
}

// output returns the left and right levels, after panning (NR51) and master
// volume (NR50).
func (a *APU) output() (l, r int32) {
	if !a.powered {
		return 0, 0
	}

	chans := [NumChannels]sampler{&a.Pulse1, &a.Pulse2, &a.Wave, &a.Noise}
	pan := a.NR51.Value
	for i, ch := range chans {
		amp, ok := ch.Sample()
		if !ok {
			continue
		}
		// The DAC maps 0-15 to an analog level going from -15 to 15.
		v := int32(amp)*2 - 15
		if pan&(0x10<<i) != 0 {
			l += v
		}
		if pan&(0x01<<i) != 0 {
			r += v
		}
	}

	lvol := int32(a.NR50.Value>>4&0x07) + 1
	rvol := int32(a.NR50.Value&0x07) + 1
	return l * lvol * 64, r * rvol * 64
}

// EndFrame flushes the samples produced since the last call to out.
func (a *APU) EndFrame(out frontend.AudioOutput) error {
	err := a.mixer.EndFrame(int(a.time), out)
	a.time = 0
	return err
}

func (a *APU) State() *snapshot.GBAPU {
	var state snapshot.GBAPU
	state.Powered = a.powered
	state.SeqStep = a.seq.step
	state.NR50 = a.NR50.Value
	state.NR51 = a.NR51.Value
	state.Time = a.time
	state.Mixer = a.mixer.State()
	a.Pulse1.saveState(&state.Pulse1)
	a.Pulse2.saveState(&state.Pulse2)
	a.Wave.saveState(&state.Wave)
	a.Noise.saveState(&state.Noise)
	return &state
}

// SetState restores a state returned by State, including the audio not yet
// flushed. The APU must use the same sample rate.
func (a *APU) SetState(state *snapshot.GBAPU) error {
	if err := a.mixer.SetState(&state.Mixer); err != nil {
		return errors.Wrap(err, "audio mixer")
	}
	a.powered = state.Powered
	a.seq.step = state.SeqStep & 7
	a.NR50.Value = state.NR50
	a.NR51.Value = state.NR51
	a.Pulse1.setState(&state.Pulse1)
	a.Pulse2.setState(&state.Pulse2)
	a.Wave.setState(&state.Wave)
	a.Noise.setState(&state.Noise)
	a.time = state.Time
	return nil
}
