package gbapu

import (
	"retrocore/emu/log"
	"retrocore/hw/hwio"
)

// noiseChannel outputs the inverted low bit of a linear feedback shift
// register, 15 bits wide or 7 bits in short mode.
//
//	Timer --> LFSR            Length Counter
//	           |                    |
//	           v                    v
//	Envelope -> Gate ------------> Gate --> (to mixer)
type noiseChannel struct {
	apu *APU

	length     lengthCounter
	envelope   envelope
	lfsr       uint16
	shortMode  bool
	clockShift uint8
	divisor    uint8
	counter    int32 // T-cycles until the next LFSR step
	enabled    bool
	dacEnabled bool

	NR41 hwio.Reg8 `hwio:"offset=0x00,writeonly,wcb"`
	NR42 hwio.Reg8 `hwio:"offset=0x01,rcb,wcb"`
	NR43 hwio.Reg8 `hwio:"offset=0x02,rcb,wcb"`
	NR44 hwio.Reg8 `hwio:"offset=0x03,rcb,wcb"`
}

func newNoiseChannel(apu *APU) noiseChannel {
	return noiseChannel{
		apu:    apu,
		length: lengthCounter{max: 64},
		lfsr:   0x7FFF,
	}
}

var noiseDivisors = [8]int32{8, 16, 32, 48, 64, 80, 96, 112}

func (nc *noiseChannel) period() int32 {
	return noiseDivisors[nc.divisor] << nc.clockShift
}

func (nc *noiseChannel) WriteNR41(_, val uint8) {
	if !nc.apu.powered {
		return
	}
	nc.length.load(val)
}

func (nc *noiseChannel) ReadNR42(_ uint8) uint8 {
	return nc.envelope.read()
}

func (nc *noiseChannel) WriteNR42(_, val uint8) {
	if !nc.apu.powered {
		return
	}
	nc.envelope.write(val)
	nc.dacEnabled = val&0xF8 != 0
	if !nc.dacEnabled {
		nc.enabled = false
	}
}

func (nc *noiseChannel) ReadNR43(_ uint8) uint8 {
	v := nc.clockShift<<4 | nc.divisor
	if nc.shortMode {
		v |= 0x08
	}
	return v
}

func (nc *noiseChannel) WriteNR43(_, val uint8) {
	if !nc.apu.powered {
		return
	}
	nc.clockShift = val >> 4
	nc.shortMode = val&0x08 != 0
	nc.divisor = val & 0x07

	log.ModSound.InfoZ("write noise frequency").
		Uint8("shift", nc.clockShift).
		Uint8("divisor", nc.divisor).
		Bool("short", nc.shortMode).
		End()
}

func (nc *noiseChannel) ReadNR44(_ uint8) uint8 {
	if nc.length.enabled {
		return 0xFF
	}
	return 0xBF
}

func (nc *noiseChannel) WriteNR44(_, val uint8) {
	if !nc.apu.powered {
		return
	}
	step := nc.apu.seq.step
	nc.length.setEnabled(val&0x40 != 0, step, &nc.enabled)

	if val&0x80 != 0 {
		nc.enabled = nc.dacEnabled
		nc.length.trigger(step)
		nc.envelope.trigger()
		nc.lfsr = 0x7FFF
		nc.counter = nc.period()
	}
}

// ClockTimer advances the channel by one M-cycle.
func (nc *noiseChannel) ClockTimer() {
	nc.counter -= 4
	for nc.counter <= 0 {
		nc.counter += nc.period()
		nc.step()
	}
}

func (nc *noiseChannel) step() {
	fb := (nc.lfsr ^ nc.lfsr>>1) & 1
	nc.lfsr = nc.lfsr>>1 | fb<<14
	if nc.shortMode {
		nc.lfsr = nc.lfsr&^(1<<6) | fb<<6
	}
}

func (nc *noiseChannel) ClockLength()   { nc.length.clock(&nc.enabled) }
func (nc *noiseChannel) ClockEnvelope() { nc.envelope.clock() }

func (nc *noiseChannel) Sample() (amp uint8, ok bool) {
	if !nc.dacEnabled {
		return 0, false
	}
	if !nc.enabled || nc.lfsr&1 != 0 {
		return 0, true
	}
	return nc.envelope.volume, true
}

func (nc *noiseChannel) Enabled() bool { return nc.enabled }

func (nc *noiseChannel) reset() {
	nc.length.reset()
	nc.envelope.reset()
	nc.lfsr = 0x7FFF
	nc.shortMode = false
	nc.clockShift = 0
	nc.divisor = 0
	nc.counter = 0
	nc.enabled = false
	nc.dacEnabled = false
}
