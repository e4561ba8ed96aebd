// Package psg implements the Texas Instruments SN76489 programmable sound
// generator, in the variant integrated in Sega consoles: 3 square wave tone
// channels and a noise channel driven by a 16-bit LFSR.
package psg

import (
	"math"

	"retrocore/emu/log"
)

// Input clocks per internal clock.
const clockDivider = 16

// Sega variant of the noise LFSR: taps on bits 0 and 3, fed back into bit 15.
const (
	lfsrReset = 0x8000
	lfsrTaps  = 0x0009
)

// Attenuation in 2dB steps, 15 is silence.
var volumeTable = func() [16]float64 {
	var t [16]float64
	for i := range 15 {
		t[i] = math.Pow(10, -2*float64(i)/20)
	}
	return t
}()

type TickEffect uint8

const (
	None TickEffect = iota
	Clocked
)

// channel indexes of the latch register.
const (
	tone0 = iota
	tone1
	tone2
	noise
)

type PSG struct {
	tone   [3]uint16 // 10-bit periods
	volume [4]uint8
	noise  uint8 // bit 2: white noise, bits 0-1: rate

	latchChannel uint8
	latchVolume  bool

	counters    [4]uint16
	outputs     [4]bool
	noiseToggle bool
	lfsr        uint16

	divider uint8

	// Game Gear stereo register: bits 4-7 enable channels on the left
	// output, bits 0-3 on the right one.
	stereo uint8
}

func New() *PSG {
	p := &PSG{}
	p.Reset()
	return p
}

func (p *PSG) Reset() {
	*p = PSG{lfsr: lfsrReset, stereo: 0xFF}
	for i := range p.volume {
		p.volume[i] = 0x0F
	}
	for i := range p.outputs {
		p.outputs[i] = true
	}
}

// Write handles a byte written to the PSG port.
//
// A byte with bit 7 set latches a channel and a register type (tone or
// volume) and writes the low 4 bits of the value. Other bytes write to the
// latched register: the high 6 bits of a tone period, or the whole value for
// volume and noise registers.
func (p *PSG) Write(val uint8) {
	if val&0x80 != 0 {
		p.latchChannel = val >> 5 & 3
		p.latchVolume = val&0x10 != 0
	}

	ch := p.latchChannel
	switch {
	case p.latchVolume:
		p.volume[ch] = val & 0x0F
	case ch == noise:
		p.noise = val & 0x07
		p.lfsr = lfsrReset
		log.ModSound.DebugZ("psg noise").Uint8("mode", p.noise).End()
	case val&0x80 != 0:
		p.tone[ch] = p.tone[ch]&0x3F0 | uint16(val&0x0F)
	default:
		p.tone[ch] = p.tone[ch]&0x00F | uint16(val&0x3F)<<4
	}
}

// Tick advances the chip by one input clock. The chip state only changes
// every 16 input clocks, in which case Clocked is returned.
func (p *PSG) Tick() TickEffect {
	p.divider++
	if p.divider < clockDivider {
		return None
	}
	p.divider = 0

	for ch := tone0; ch <= tone2; ch++ {
		if !p.stepCounter(ch, p.tone[ch]) {
			continue
		}
		// Periods 0 and 1 hold the output high (sample playback).
		p.outputs[ch] = p.tone[ch] <= 1 || !p.outputs[ch]
	}

	if p.stepCounter(noise, p.noisePeriod()) {
		p.noiseToggle = !p.noiseToggle
		if p.noiseToggle {
			p.shiftLFSR()
		}
	}
	p.outputs[noise] = p.lfsr&1 != 0
	return Clocked
}

// stepCounter decrements the counter of ch and reloads it with period when
// it expires. A period of 0 behaves as 1.
func (p *PSG) stepCounter(ch int, period uint16) bool {
	if p.counters[ch] > 1 {
		p.counters[ch]--
		return false
	}
	p.counters[ch] = max(period, 1)
	return true
}

func (p *PSG) noisePeriod() uint16 {
	if rate := p.noise & 3; rate != 3 {
		return 0x10 << rate
	}
	return p.tone[tone2]
}

func (p *PSG) shiftLFSR() {
	var fb uint16
	if p.noise&4 != 0 {
		fb = parity(p.lfsr & lfsrTaps)
	} else {
		fb = p.lfsr & 1
	}
	p.lfsr = p.lfsr>>1 | fb<<15
}

func parity(v uint16) uint16 {
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v & 1
}

// WriteStereo handles a write to the Game Gear stereo port.
func (p *PSG) WriteStereo(val uint8) {
	p.stereo = val
}

// Sample returns the current mixed output in [-1, 1]. Both outputs are the
// same unless the Game Gear stereo register disables channels on one side.
func (p *PSG) Sample() (l, r float64) {
	for ch, high := range p.outputs {
		v := volumeTable[p.volume[ch]]
		if !high {
			v = -v
		}
		if p.stereo&(0x10<<ch) != 0 {
			l += v
		}
		if p.stereo&(0x01<<ch) != 0 {
			r += v
		}
	}
	return l / 4, r / 4
}
