// Package ym2612 implements the Yamaha YM2612 (OPN2) FM synthesizer of the
// Sega Genesis: 6 channels of 4 operators each, 2 timers, an LFO and a DAC
// replacing the output of channel 6.
//
// The chip is clocked by the 68000 clock. Internally it takes 6 clocks per
// operator slot and 24 slots per output sample.
package ym2612

import (
	"retrocore/emu/log"
)

const (
	clockDivider = 6 * 24
	numChannels  = 6

	// Data writes keep the busy flag set for 32 internal cycles.
	busyCycles = 32 * 6
)

type TickEffect uint8

const (
	None TickEffect = iota
	OutputSample
)

// Register slots order the operators 1, 3, 2, 4.
var slotOperator = [4]uint8{0, 2, 1, 3}

// Samples per LFO step, indexed by the LFO frequency.
var lfoPeriods = [8]uint8{108, 77, 71, 67, 62, 44, 8, 5}

// Phase modulation depth per FMS, in 1/1024 of the frequency.
var pmScale = [8]int32{0, 2, 4, 6, 8, 12, 24, 48}

// Amplitude modulation depth per AMS, as a right shift of the LFO level.
var amShift = [4]uint8{8, 3, 1, 0}

type channel struct {
	op [4]operator

	fnum  uint16
	block uint8

	algorithm   uint8
	feedback    uint8
	left, right bool
	ams, fms    uint8

	fbOut [2]int32 // last 2 outputs of operator 1
}

type timer struct {
	period   uint16
	counter  uint16
	limit    uint16
	sub      uint8 // prescaler, timer B only
	loaded   bool
	enabled  bool
	overflow bool
}

func (t *timer) control(load, enable, resetFlag bool) {
	if load && !t.loaded {
		t.counter = t.period
	}
	t.loaded = load
	t.enabled = enable
	if resetFlag {
		t.overflow = false
	}
}

func (t *timer) step() {
	if !t.loaded {
		return
	}
	t.counter++
	if t.counter >= t.limit {
		t.counter = t.period
		if t.enabled {
			t.overflow = true
		}
	}
}

type YM2612 struct {
	ch [numChannels]channel

	regs      [2][256]uint8
	addr      [2]uint8
	freqLatch uint8
	ch3Latch  uint8
	ch3Fnum   [3]uint16
	ch3Block  [3]uint8
	ch3Mode   uint8

	dacEnabled bool
	dacSample  uint8

	lfoEnabled bool
	lfoFreq    uint8
	lfoStep    uint8
	lfoDivider uint8

	timerA, timerB timer

	divider   uint8
	egDivider uint8
	egCounter uint16
	busy      uint16

	outL, outR int32 // sums of the 9-bit channel outputs
}

func New() *YM2612 {
	ym := &YM2612{}
	ym.Reset()
	return ym
}

func (ym *YM2612) Reset() {
	*ym = YM2612{
		timerA: timer{limit: 1024},
		timerB: timer{limit: 256},
	}
	for ci := range ym.ch {
		ch := &ym.ch[ci]
		ch.left, ch.right = true, true
		for i := range ch.op {
			ch.op[i].reset()
		}
		part, slot := ci/3, ci%3
		ym.regs[part][0xB4+slot] = 0xC0
	}
}

// WritePort handles a write to one of the 4 ports: address and data of part
// I (ports 0 and 1) and part II (ports 2 and 3).
func (ym *YM2612) WritePort(port uint8, val uint8) {
	part := port >> 1 & 1
	if port&1 == 0 {
		ym.addr[part] = val
		return
	}

	addr := ym.addr[part]
	ym.busy = busyCycles
	ym.regs[part][addr] = val
	ym.writeRegister(part, addr, val)
}

// ReadPort returns the status register. All ports read the same.
//
//	bit 7: busy
//	bit 1: timer B overflow
//	bit 0: timer A overflow
func (ym *YM2612) ReadPort(uint8) uint8 {
	var status uint8
	if ym.busy > 0 {
		status |= 0x80
	}
	if ym.timerB.overflow {
		status |= 0x02
	}
	if ym.timerA.overflow {
		status |= 0x01
	}
	return status
}

func (ym *YM2612) writeRegister(part, addr, val uint8) {
	switch {
	case addr < 0x30:
		if part != 0 {
			log.ModSound.DebugZ("ym2612 global register write on part II").Hex8("addr", addr).Hex8("val", val).End()
			return
		}
		ym.writeGlobal(addr, val)

	case addr < 0xA0:
		slot := addr & 3
		if slot == 3 {
			return
		}
		ci := 3*part + slot
		op := &ym.ch[ci].op[slotOperator[addr>>2&3]]
		op.write(addr&0xF0, val)
		ym.updateFrequency(int(ci))

	case addr < 0xB8:
		slot := addr & 3
		if slot == 3 {
			return
		}
		ym.writeChannel(part, slot, addr&0xFC, val)
	}
}

func (ym *YM2612) writeGlobal(addr, val uint8) {
	switch addr {
	case 0x22:
		ym.lfoEnabled = val&0x08 != 0
		ym.lfoFreq = val & 7
		if !ym.lfoEnabled {
			ym.lfoStep = 0
			ym.lfoDivider = 0
		}
	case 0x24:
		ym.timerA.period = uint16(val)<<2 | ym.timerA.period&3
	case 0x25:
		ym.timerA.period = ym.timerA.period&^3 | uint16(val&3)
	case 0x26:
		ym.timerB.period = uint16(val)
	case 0x27:
		ym.timerA.control(val&0x01 != 0, val&0x04 != 0, val&0x10 != 0)
		ym.timerB.control(val&0x02 != 0, val&0x08 != 0, val&0x20 != 0)
		if mode := val >> 6; mode != ym.ch3Mode {
			ym.ch3Mode = mode
			ym.updateFrequency(2)
		}
	case 0x28:
		ym.keyOnOff(val)
	case 0x2A:
		ym.dacSample = val
	case 0x2B:
		ym.dacEnabled = val&0x80 != 0
	default:
		log.ModSound.DebugZ("ym2612 unhandled register").Hex8("addr", addr).Hex8("val", val).End()
	}
}

func (op *operator) write(reg, val uint8) {
	switch reg {
	case 0x30:
		op.dt = val >> 4 & 7
		op.mul = val & 0x0F
	case 0x40:
		op.tl = val & 0x7F
	case 0x50:
		op.ks = val >> 6
		op.ar = val & 0x1F
	case 0x60:
		op.am = val&0x80 != 0
		op.d1r = val & 0x1F
	case 0x70:
		op.d2r = val & 0x1F
	case 0x80:
		op.d1l = val >> 4
		op.rr = val & 0x0F
	case 0x90:
		op.ssgEG = val & 0x0F
	}
}

func (ym *YM2612) writeChannel(part, slot, reg, val uint8) {
	ci := int(3*part + slot)
	ch := &ym.ch[ci]

	switch reg {
	case 0xA0:
		ch.fnum = uint16(ym.freqLatch&7)<<8 | uint16(val)
		ch.block = ym.freqLatch >> 3 & 7
		ym.updateFrequency(ci)
	case 0xA4:
		ym.freqLatch = val & 0x3F
	case 0xA8:
		if part == 0 {
			ym.ch3Fnum[slot] = uint16(ym.ch3Latch&7)<<8 | uint16(val)
			ym.ch3Block[slot] = ym.ch3Latch >> 3 & 7
			ym.updateFrequency(2)
		}
	case 0xAC:
		if part == 0 {
			ym.ch3Latch = val & 0x3F
		}
	case 0xB0:
		ch.feedback = val >> 3 & 7
		ch.algorithm = val & 7
	case 0xB4:
		ch.left = val&0x80 != 0
		ch.right = val&0x40 != 0
		ch.ams = val >> 4 & 3
		ch.fms = val & 7
	}
}

// keyOnOff handles register 0x28: bits 4-7 select the operators, bits 0-1
// the channel within a part and bit 2 the part.
func (ym *YM2612) keyOnOff(val uint8) {
	if val&3 == 3 {
		return
	}
	ci := val&3 + 3*(val>>2&1)
	ch := &ym.ch[ci]
	for i := range ch.op {
		op := &ch.op[i]
		on := val&(0x10<<i) != 0
		switch {
		case on && !op.keyOn:
			op.keyOnEvent()
		case !on && op.keyOn:
			op.egState = release
		}
		op.keyOn = on
	}
}

// operatorFrequency returns the frequency of an operator. In special mode,
// operators 1 to 3 of channel 3 have their own frequency.
func (ym *YM2612) operatorFrequency(ci, opi int) (uint16, uint8) {
	if ci == 2 && ym.ch3Mode != 0 && opi != 3 {
		// Operators 1, 2, 3 use the slots 1, 2, 0.
		slot := (opi + 1) % 3
		return ym.ch3Fnum[slot], ym.ch3Block[slot]
	}
	return ym.ch[ci].fnum, ym.ch[ci].block
}

func (ym *YM2612) updateFrequency(ci int) {
	ch := &ym.ch[ci]
	for i := range ch.op {
		op := &ch.op[i]
		fnum, block := ym.operatorFrequency(ci, i)
		op.keyCode = computeKeyCode(fnum, block)
		op.phaseInc = computePhaseIncrement(fnum, block, op.keyCode, op.dt, op.mul)
	}
}

// Tick advances the chip by one 68000 clock. OutputSample is returned when
// a new sample is available through Sample.
func (ym *YM2612) Tick() TickEffect {
	if ym.busy > 0 {
		ym.busy--
	}
	ym.divider++
	if ym.divider < clockDivider {
		return None
	}
	ym.divider = 0

	ym.stepTimers()
	ym.stepLFO()

	ym.egDivider++
	if ym.egDivider == 3 {
		ym.egDivider = 0
		ym.stepEnvelopes()
	}

	ym.generate()
	return OutputSample
}

func (ym *YM2612) stepTimers() {
	ym.timerA.step()
	ym.timerB.sub++
	if ym.timerB.sub == 16 {
		ym.timerB.sub = 0
		ym.timerB.step()
	}
}

func (ym *YM2612) stepLFO() {
	if !ym.lfoEnabled {
		return
	}
	ym.lfoDivider++
	if ym.lfoDivider >= lfoPeriods[ym.lfoFreq] {
		ym.lfoDivider = 0
		ym.lfoStep = (ym.lfoStep + 1) & 0x7F
	}
}

func (ym *YM2612) stepEnvelopes() {
	// 12-bit counter, 0 is skipped.
	ym.egCounter = (ym.egCounter + 1) & 0xFFF
	if ym.egCounter == 0 {
		ym.egCounter = 1
	}
	for ci := range ym.ch {
		for i := range ym.ch[ci].op {
			ym.ch[ci].op[i].stepEnvelope(ym.egCounter)
		}
	}
}

// amLevel returns the attenuation added by the LFO, before AMS scaling.
func (ym *YM2612) amLevel() uint16 {
	if !ym.lfoEnabled {
		return 0
	}
	step := ym.lfoStep
	if step < 64 {
		return uint16(step^63) << 1
	}
	return uint16(step&63) << 1
}

// pmOffset returns the frequency number offset applied by the LFO.
func (ym *YM2612) pmOffset(fnum uint16, fms uint8) int32 {
	if !ym.lfoEnabled || fms == 0 {
		return 0
	}
	t := int32(ym.lfoStep & 63)
	if t >= 32 {
		t = 63 - t
	}
	if ym.lfoStep&64 != 0 {
		t = -t
	}
	return int32(fnum) * pmScale[fms] * t / (1024 * 31)
}

func (ym *YM2612) generate() {
	am := ym.amLevel()

	var left, right int32
	for ci := range ym.ch {
		ch := &ym.ch[ci]
		out := ym.channelOutput(ci, am>>amShift[ch.ams])
		if ci == 5 && ym.dacEnabled {
			out = (int32(ym.dacSample) - 128) << 1
		}
		if ch.left {
			left += out
		}
		if ch.right {
			right += out
		}
	}
	ym.outL, ym.outR = left, right
}

// channelOutput computes the next 9-bit output of a channel and advances the
// phase of its operators.
func (ym *YM2612) channelOutput(ci int, am uint16) int32 {
	ch := &ym.ch[ci]
	op := &ch.op

	var amMod [4]uint16
	for i := range op {
		if op[i].am {
			amMod[i] = am
		}
	}

	var fb int32
	if ch.feedback != 0 {
		fb = (ch.fbOut[0] + ch.fbOut[1]) >> (10 - ch.feedback)
	}
	o1 := op[0].output(fb, amMod[0])
	ch.fbOut[1] = ch.fbOut[0]
	ch.fbOut[0] = o1

	var sum int32
	switch ch.algorithm {
	case 0:
		o2 := op[1].output(o1>>1, amMod[1])
		o3 := op[2].output(o2>>1, amMod[2])
		sum = op[3].output(o3>>1, amMod[3])
	case 1:
		o2 := op[1].output(0, amMod[1])
		o3 := op[2].output((o1+o2)>>1, amMod[2])
		sum = op[3].output(o3>>1, amMod[3])
	case 2:
		o2 := op[1].output(0, amMod[1])
		o3 := op[2].output(o2>>1, amMod[2])
		sum = op[3].output((o1+o3)>>1, amMod[3])
	case 3:
		o2 := op[1].output(o1>>1, amMod[1])
		o3 := op[2].output(0, amMod[2])
		sum = op[3].output((o2+o3)>>1, amMod[3])
	case 4:
		o2 := op[1].output(o1>>1, amMod[1])
		o3 := op[2].output(0, amMod[2])
		sum = o2 + op[3].output(o3>>1, amMod[3])
	case 5:
		sum = op[1].output(o1>>1, amMod[1]) +
			op[2].output(o1>>1, amMod[2]) +
			op[3].output(o1>>1, amMod[3])
	case 6:
		sum = op[1].output(o1>>1, amMod[1]) +
			op[2].output(0, amMod[2]) +
			op[3].output(0, amMod[3])
	case 7:
		sum = o1 +
			op[1].output(0, amMod[1]) +
			op[2].output(0, amMod[2]) +
			op[3].output(0, amMod[3])
	}

	ym.advancePhases(ci)
	return max(min(sum, 8191), -8192) >> 5
}

func (ym *YM2612) advancePhases(ci int) {
	ch := &ym.ch[ci]
	pm := ym.lfoEnabled && ch.fms != 0
	for i := range ch.op {
		op := &ch.op[i]
		inc := op.phaseInc
		if pm {
			fnum, block := ym.operatorFrequency(ci, i)
			f := int32(fnum) + ym.pmOffset(fnum, ch.fms)
			f = max(min(f, 0x7FF), 0)
			inc = computePhaseIncrement(uint16(f), block, op.keyCode, op.dt, op.mul)
		}
		op.phase = (op.phase + inc) & phaseMask
	}
}

// Sample returns the last output sample, each channel in [-1, 1].
func (ym *YM2612) Sample() (l, r float64) {
	// 6 channels of 9-bit signed output.
	const scale = numChannels * 256
	return float64(ym.outL) / scale, float64(ym.outR) / scale
}
