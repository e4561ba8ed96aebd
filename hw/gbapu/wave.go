package gbapu

import (
	"retrocore/emu/log"
	"retrocore/hw/hwio"
)

// waveChannel plays back the 32 4-bit samples stored in wave RAM.
type waveChannel struct {
	apu *APU

	length     lengthCounter
	frequency  uint16
	counter    int32 // T-cycles until the next sample
	position   uint8
	volumeCode uint8
	enabled    bool
	dacEnabled bool

	NR30 hwio.Reg8 `hwio:"offset=0x00,rcb,wcb"`
	NR31 hwio.Reg8 `hwio:"offset=0x01,writeonly,wcb"`
	NR32 hwio.Reg8 `hwio:"offset=0x02,rcb,wcb"`
	NR33 hwio.Reg8 `hwio:"offset=0x03,writeonly,wcb"`
	NR34 hwio.Reg8 `hwio:"offset=0x04,rcb,wcb"`

	RAM hwio.Mem `hwio:"offset=0x16,size=0x10"` // $FF30-$FF3F
}

func newWaveChannel(apu *APU) waveChannel {
	return waveChannel{
		apu:    apu,
		length: lengthCounter{max: 256},
	}
}

func (wc *waveChannel) ReadNR30(_ uint8) uint8 {
	if wc.dacEnabled {
		return 0xFF
	}
	return 0x7F
}

func (wc *waveChannel) WriteNR30(_, val uint8) {
	if !wc.apu.powered {
		return
	}
	wc.dacEnabled = val&0x80 != 0
	if !wc.dacEnabled {
		wc.enabled = false
	}
}

func (wc *waveChannel) WriteNR31(_, val uint8) {
	if !wc.apu.powered {
		return
	}
	wc.length.load(val)
}

func (wc *waveChannel) ReadNR32(_ uint8) uint8 {
	return 0x9F | wc.volumeCode<<5
}

func (wc *waveChannel) WriteNR32(_, val uint8) {
	if !wc.apu.powered {
		return
	}
	wc.volumeCode = (val >> 5) & 0x03
}

func (wc *waveChannel) WriteNR33(_, val uint8) {
	if !wc.apu.powered {
		return
	}
	wc.frequency = wc.frequency&0x700 | uint16(val)
}

func (wc *waveChannel) ReadNR34(_ uint8) uint8 {
	if wc.length.enabled {
		return 0xFF
	}
	return 0xBF
}

func (wc *waveChannel) WriteNR34(_, val uint8) {
	if !wc.apu.powered {
		return
	}
	wc.frequency = wc.frequency&0xFF | uint16(val&0x07)<<8

	step := wc.apu.seq.step
	wc.length.setEnabled(val&0x40 != 0, step, &wc.enabled)

	if val&0x80 != 0 {
		wc.enabled = wc.dacEnabled
		wc.length.trigger(step)
		wc.counter = wc.period()
		wc.position = 0
	}

	log.ModSound.InfoZ("write wave control").
		Uint16("freq", wc.frequency).
		Bool("trigger", val&0x80 != 0).
		Bool("enabled", wc.enabled).
		End()
}

func (wc *waveChannel) period() int32 {
	return int32(2048-wc.frequency) * 2
}

// ClockTimer advances the channel by one M-cycle.
func (wc *waveChannel) ClockTimer() {
	wc.counter -= 4
	for wc.counter <= 0 {
		wc.counter += wc.period()
		wc.position = (wc.position + 1) & 31
	}
}

func (wc *waveChannel) ClockLength() { wc.length.clock(&wc.enabled) }

func (wc *waveChannel) Sample() (amp uint8, ok bool) {
	if !wc.dacEnabled {
		return 0, false
	}
	if !wc.enabled || wc.volumeCode == 0 {
		return 0, true
	}
	b := wc.RAM.Data[wc.position/2]
	if wc.position&1 == 0 {
		b >>= 4
	}
	return (b & 0x0F) >> (wc.volumeCode - 1), true
}

func (wc *waveChannel) Enabled() bool { return wc.enabled }

func (wc *waveChannel) reset() {
	wc.length.reset()
	wc.frequency = 0
	wc.counter = 0
	wc.position = 0
	wc.volumeCode = 0
	wc.enabled = false
	wc.dacEnabled = false
}
