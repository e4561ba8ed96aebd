package smsgg

import (
	"github.com/go-faster/errors"

	"retrocore/hw/snapshot"
)

const stateVersion = 1

// State returns a snapshot of the console. ROM bytes are not included.
func (e *Emulator) State() *snapshot.SMSGG {
	m := e.mem
	return &snapshot.SMSGG{
		Version:     stateVersion,
		Z80:         e.z80.State(),
		PSG:         e.psg.State(),
		VDP:         e.vdp.state(),
		RAM:         append([]byte(nil), m.ram...),
		CartRAM:     append([]byte(nil), m.cartRAM...),
		Mapper:      m.mapper,
		RAMUsed:     m.ramUsed,
		Dirty:       m.dirty,
		IOControl:   e.io.control,
		P1:          e.io.inputs.P1.bits(),
		P2:          e.io.inputs.P2.bits(),
		Pause:       e.io.inputs.Pause,
		ResetHeld:   e.io.reset,
		ResetFrames: e.resetFrames,
		MClk:        e.mclk,
		FrameClocks: e.frameClocks,
		Mixer:       e.mixer.State(),
	}
}

// SetState restores a snapshot taken with State. The console must be the
// same model running the same cartridge, at the same sample rate.
func (e *Emulator) SetState(state *snapshot.SMSGG) error {
	if state.Version != stateVersion {
		return errors.Errorf("unsupported state version %d", state.Version)
	}
	m := e.mem
	mems := []struct {
		name string
		dst  []byte
		src  []byte
	}{
		{"RAM", m.ram, state.RAM},
		{"cartridge RAM", m.cartRAM, state.CartRAM},
		{"VRAM", e.vdp.vram, state.VDP.VRAM},
		{"CRAM", e.vdp.cram, state.VDP.CRAM},
	}
	for _, mem := range mems {
		if len(mem.src) != len(mem.dst) {
			return errors.Errorf("%s size mismatch: %d bytes, want %d", mem.name, len(mem.src), len(mem.dst))
		}
	}
	if err := e.mixer.SetState(&state.Mixer); err != nil {
		return errors.Wrap(err, "audio mixer")
	}
	for _, mem := range mems {
		copy(mem.dst, mem.src)
	}

	e.z80.SetState(&state.Z80)
	e.psg.SetState(&state.PSG)
	e.vdp.setState(&state.VDP)

	m.mapper = state.Mapper
	m.dirty = state.Dirty
	m.ramUsed = state.RAMUsed
	m.mapAll()

	e.io.control = state.IOControl
	e.io.inputs = Inputs{
		P1:    joypadFromBits(state.P1),
		P2:    joypadFromBits(state.P2),
		Pause: state.Pause,
	}
	e.io.reset = state.ResetHeld
	e.resetFrames = state.ResetFrames
	e.mclk = state.MClk
	e.frameClocks = state.FrameClocks
	return nil
}

func (v *vdp) state() snapshot.SMSVDP {
	return snapshot.SMSVDP{
		Regs:        v.regs,
		VRAM:        append([]byte(nil), v.vram...),
		CRAM:        append([]byte(nil), v.cram...),
		Address:     v.addr,
		Code:        v.code,
		Latched:     v.latched,
		Latch:       v.latch,
		ReadBuffer:  v.readBuffer,
		CRAMLatch:   v.cramLatch,
		FrameInt:    v.frameInt,
		LineInt:     v.lineInt,
		LineCounter: v.lineCounter,
		Line:        v.line,
		Dot:         v.dot,
	}
}

// setState expects VRAM and CRAM to have been restored already.
func (v *vdp) setState(s *snapshot.SMSVDP) {
	v.regs = s.Regs
	v.addr = s.Address & 0x3FFF
	v.code = s.Code & 3
	v.latched = s.Latched
	v.latch = s.Latch
	v.readBuffer = s.ReadBuffer
	v.cramLatch = s.CRAMLatch
	v.frameInt = s.FrameInt
	v.lineInt = s.LineInt
	v.lineCounter = s.LineCounter
	v.line = s.Line % v.linesPerFrame()
	v.dot = s.Dot % dotsPerLine
}

func (j Joypad) bits() uint8 {
	var b uint8
	for i, pressed := range [...]bool{j.Up, j.Down, j.Left, j.Right, j.Button1, j.Button2} {
		if pressed {
			b |= 1 << i
		}
	}
	return b
}

func joypadFromBits(b uint8) Joypad {
	return Joypad{
		Up:      b&0x01 != 0,
		Down:    b&0x02 != 0,
		Left:    b&0x04 != 0,
		Right:   b&0x08 != 0,
		Button1: b&0x10 != 0,
		Button2: b&0x20 != 0,
	}
}
