package gbapu

import (
	"retrocore/emu/log"
	"retrocore/hw/hwio"
)

const maxFrequency = 2047

// Waveforms, bit N is the output at phase N.
var dutyTable = [4]uint8{
	0b1000_0000, // 12.5%
	0b1000_0001, // 25%
	0b1110_0001, // 50%
	0b0111_1110, // 75%
}

// pulseTimer divides the M-cycle clock by 2048-frequency and steps the
// waveform phase on each underflow.
type pulseTimer struct {
	frequency uint16
	counter   uint16
	phase     uint8
}

func (t *pulseTimer) clock() {
	if t.counter > 1 {
		t.counter--
		return
	}
	t.counter = 2048 - t.frequency
	t.phase = (t.phase + 1) & 7
}

func (t *pulseTimer) trigger() {
	t.counter = 2048 - t.frequency
}

// sweepUnit periodically updates the pulse frequency from its shadow copy.
type sweepUnit struct {
	enabled bool
	shadow  uint16
	counter uint8
	period  uint8
	shift   uint8
	negate  bool

	// set once a frequency has been computed in negate mode since the
	// last trigger. Clearing negate afterwards disables the channel.
	negateUsed bool
}

func (s *sweepUnit) reload() uint8 {
	if s.period == 0 {
		return 8
	}
	return s.period
}

func (s *sweepUnit) next() uint16 {
	delta := s.shadow >> s.shift
	if s.negate {
		s.negateUsed = true
		return s.shadow - delta
	}
	return s.shadow + delta
}

func (s *sweepUnit) clock(t *pulseTimer, chEnabled *bool) {
	if !s.enabled {
		return
	}
	if s.counter > 0 {
		s.counter--
	}
	if s.counter != 0 {
		return
	}
	s.counter = s.reload()
	if s.period == 0 {
		return
	}

	freq := s.next()
	switch {
	case freq > maxFrequency:
		*chEnabled = false
	case s.shift != 0:
		s.shadow = freq
		t.frequency = freq
		// The new frequency is checked again, and never written.
		if s.next() > maxFrequency {
			*chEnabled = false
		}
	}
}

func (s *sweepUnit) trigger(freq uint16, chEnabled *bool) {
	s.shadow = freq
	s.counter = s.reload()
	s.enabled = s.period != 0 || s.shift != 0
	s.negateUsed = false
	if s.shift != 0 && s.next() > maxFrequency {
		*chEnabled = false
	}
}

func (s *sweepUnit) read() uint8 {
	v := 0x80 | s.period<<4 | s.shift
	if s.negate {
		v |= 0x08
	}
	return v
}

func (s *sweepUnit) write(val uint8, chEnabled *bool) {
	s.period = (val >> 4) & 0x07
	s.negate = val&0x08 != 0
	s.shift = val & 0x07
	if s.counter == 0 {
		s.counter = s.period
	}
	if s.negateUsed && !s.negate {
		*chEnabled = false
	}
}

// pulseChannel is a square wave generator with 4 duty cycles, a length
// counter, a volume envelope and, for the first channel only, a frequency
// sweep unit.
//
// Both channels use the same register layout, pulse 2 has no NR20 (sweep)
// register and reads it as $FF.
type pulseChannel struct {
	apu      *APU
	ch       Channel
	hasSweep bool

	duty       uint8
	length     lengthCounter
	envelope   envelope
	sweep      sweepUnit
	timer      pulseTimer
	enabled    bool
	dacEnabled bool

	NR0 hwio.Reg8 `hwio:"offset=0x00,rcb,wcb"`
	NR1 hwio.Reg8 `hwio:"offset=0x01,rcb,wcb"`
	NR2 hwio.Reg8 `hwio:"offset=0x02,rcb,wcb"`
	NR3 hwio.Reg8 `hwio:"offset=0x03,writeonly,wcb"`
	NR4 hwio.Reg8 `hwio:"offset=0x04,rcb,wcb"`
}

func newPulseChannel(apu *APU, ch Channel, hasSweep bool) pulseChannel {
	return pulseChannel{
		apu:      apu,
		ch:       ch,
		hasSweep: hasSweep,
		length:   lengthCounter{max: 64},
	}
}

func (pc *pulseChannel) ReadNR0(_ uint8) uint8 {
	if !pc.hasSweep {
		return 0xFF
	}
	return pc.sweep.read()
}

func (pc *pulseChannel) WriteNR0(_, val uint8) {
	if !pc.hasSweep || !pc.apu.powered {
		return
	}
	pc.sweep.write(val, &pc.enabled)

	log.ModSound.InfoZ("write pulse sweep").
		Stringer("ch", pc.ch).
		Hex8("val", val).
		Bool("enabled", pc.enabled).
		End()
}

func (pc *pulseChannel) ReadNR1(_ uint8) uint8 {
	return 0x3F | pc.duty<<6
}

func (pc *pulseChannel) WriteNR1(_, val uint8) {
	if !pc.apu.powered {
		return
	}
	pc.duty = val >> 6
	pc.length.load(val)

	log.ModSound.InfoZ("write pulse duty/length").
		Stringer("ch", pc.ch).
		Uint8("duty", pc.duty).
		Uint16("length", pc.length.counter).
		End()
}

func (pc *pulseChannel) ReadNR2(_ uint8) uint8 {
	return pc.envelope.read()
}

func (pc *pulseChannel) WriteNR2(_, val uint8) {
	if !pc.apu.powered {
		return
	}
	pc.envelope.write(val)
	pc.dacEnabled = val&0xF8 != 0
	if !pc.dacEnabled {
		pc.enabled = false
	}

	log.ModSound.InfoZ("write pulse envelope").
		Stringer("ch", pc.ch).
		Hex8("val", val).
		Bool("dac", pc.dacEnabled).
		End()
}

func (pc *pulseChannel) WriteNR3(_, val uint8) {
	if !pc.apu.powered {
		return
	}
	pc.timer.frequency = pc.timer.frequency&0x700 | uint16(val)
}

func (pc *pulseChannel) ReadNR4(_ uint8) uint8 {
	if pc.length.enabled {
		return 0xFF
	}
	return 0xBF
}

func (pc *pulseChannel) WriteNR4(_, val uint8) {
	if !pc.apu.powered {
		return
	}
	pc.timer.frequency = pc.timer.frequency&0xFF | uint16(val&0x07)<<8

	step := pc.apu.seq.step
	pc.length.setEnabled(val&0x40 != 0, step, &pc.enabled)

	if val&0x80 != 0 {
		pc.enabled = true
		pc.length.trigger(step)
		pc.envelope.trigger()
		pc.timer.trigger()
		if pc.hasSweep {
			pc.sweep.trigger(pc.timer.frequency, &pc.enabled)
		}
		pc.enabled = pc.enabled && pc.dacEnabled
	}

	log.ModSound.InfoZ("write pulse control").
		Stringer("ch", pc.ch).
		Uint16("freq", pc.timer.frequency).
		Bool("trigger", val&0x80 != 0).
		Bool("enabled", pc.enabled).
		End()
}

func (pc *pulseChannel) ClockTimer()    { pc.timer.clock() }
func (pc *pulseChannel) ClockLength()   { pc.length.clock(&pc.enabled) }
func (pc *pulseChannel) ClockEnvelope() { pc.envelope.clock() }

func (pc *pulseChannel) ClockSweep() {
	if pc.hasSweep {
		pc.sweep.clock(&pc.timer, &pc.enabled)
	}
}

// Sample returns the current digital amplitude (0-15). ok is false when the
// DAC is off, in which case the channel contributes nothing to the mix.
func (pc *pulseChannel) Sample() (amp uint8, ok bool) {
	if !pc.dacEnabled {
		return 0, false
	}
	if !pc.enabled {
		return 0, true
	}
	if (dutyTable[pc.duty]>>pc.timer.phase)&1 == 0 {
		return 0, true
	}
	return pc.envelope.volume, true
}

func (pc *pulseChannel) Enabled() bool     { return pc.enabled }
func (pc *pulseChannel) Frequency() uint16 { return pc.timer.frequency }

func (pc *pulseChannel) reset() {
	pc.duty = 0
	pc.length.reset()
	pc.envelope.reset()
	pc.sweep = sweepUnit{}
	pc.timer = pulseTimer{}
	pc.enabled = false
	pc.dacEnabled = false
}
