package ym2612

import "retrocore/hw/snapshot"

func (ym *YM2612) State() snapshot.YM2612 {
	s := snapshot.YM2612{
		Regs:       ym.regs,
		AddrLatch:  ym.addr,
		FreqLatch:  ym.freqLatch,
		Ch3Latch:   ym.ch3Latch,
		TimerA:     ym.timerA.state(),
		TimerB:     ym.timerB.state(),
		Divider:    ym.divider,
		EGDivider:  ym.egDivider,
		EGCounter:  ym.egCounter,
		LFOStep:    ym.lfoStep,
		LFODivider: ym.lfoDivider,
		Busy:       ym.busy,
		Out:        [2]int32{ym.outL, ym.outR},
	}
	for ci := range ym.ch {
		ch := &ym.ch[ci]
		s.Feedback[ci] = ch.fbOut
		for i, op := range ch.op {
			s.Operators[ci*4+i] = snapshot.YMOperator{
				Phase:   op.phase,
				EGLevel: op.egLevel,
				EGState: uint8(op.egState),
				KeyOn:   op.keyOn,
			}
		}
	}
	return s
}

// SetState restores the chip from a snapshot. Registers are replayed from
// the register file, except key on and timer control whose effects are
// part of the snapshot.
func (ym *YM2612) SetState(s *snapshot.YM2612) {
	ym.Reset()

	for part := range uint8(2) {
		regs := &s.Regs[part]
		if part == 0 {
			for _, addr := range []uint8{0x22, 0x24, 0x25, 0x26, 0x2A, 0x2B} {
				ym.writeRegister(0, addr, regs[addr])
			}
			ym.ch3Mode = regs[0x27] >> 6
		}
		for addr := 0x30; addr < 0xA0; addr++ {
			ym.writeRegister(part, uint8(addr), regs[addr])
		}
		for slot := range uint8(3) {
			ym.writeRegister(part, 0xA4+slot, regs[0xA4+slot])
			ym.writeRegister(part, 0xA0+slot, regs[0xA0+slot])
			if part == 0 {
				ym.writeRegister(part, 0xAC+slot, regs[0xAC+slot])
				ym.writeRegister(part, 0xA8+slot, regs[0xA8+slot])
			}
			ym.writeRegister(part, 0xB0+slot, regs[0xB0+slot])
			ym.writeRegister(part, 0xB4+slot, regs[0xB4+slot])
		}
	}
	ym.regs = s.Regs
	ym.updateFrequency(2)

	ym.addr = s.AddrLatch
	ym.freqLatch = s.FreqLatch & 0x3F
	ym.ch3Latch = s.Ch3Latch & 0x3F
	ym.timerA.setState(&s.TimerA)
	ym.timerB.setState(&s.TimerB)
	ym.divider = s.Divider % clockDivider
	ym.egDivider = s.EGDivider % 3
	ym.egCounter = s.EGCounter & 0xFFF
	ym.lfoStep = s.LFOStep & 0x7F
	ym.lfoDivider = s.LFODivider
	ym.busy = s.Busy
	ym.outL, ym.outR = s.Out[0], s.Out[1]

	for ci := range ym.ch {
		ch := &ym.ch[ci]
		ch.fbOut = s.Feedback[ci]
		for i := range ch.op {
			op := &ch.op[i]
			st := &s.Operators[ci*4+i]
			op.phase = st.Phase & phaseMask
			op.egLevel = min(st.EGLevel, maxAttenuation)
			op.egState = egState(st.EGState & 3)
			op.keyOn = st.KeyOn
		}
	}
}

func (t *timer) state() snapshot.YMTimer {
	return snapshot.YMTimer{
		Period:   t.period,
		Counter:  t.counter,
		Sub:      t.sub,
		Loaded:   t.loaded,
		Enabled:  t.enabled,
		Overflow: t.overflow,
	}
}

func (t *timer) setState(s *snapshot.YMTimer) {
	t.period = s.Period % t.limit
	t.counter = s.Counter % t.limit
	t.sub = s.Sub & 0x0F
	t.loaded = s.Loaded
	t.enabled = s.Enabled
	t.overflow = s.Overflow
}
