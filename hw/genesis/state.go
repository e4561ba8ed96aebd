package genesis

import (
	"github.com/go-faster/errors"

	"retrocore/hw/snapshot"
)

const stateVersion = 2

// State returns a snapshot of the console. ROM bytes are not included.
func (e *Emulator) State() *snapshot.Genesis {
	m := e.mem
	return &snapshot.Genesis{
		Version: stateVersion,
		M68K:    e.m68k.State(),
		Z80:     e.z80.State(),
		PSG:     m.psg.State(),
		YM2612:  m.ym.State(),
		VDP:     m.vdp.state(),
		IO:      m.io.state(),
		Cart: snapshot.GenesisCart{
			RAM:   append([]byte(nil), m.cart.ram...),
			Dirty: m.cart.dirty,
		},
		RAM:       append([]byte(nil), m.ram...),
		AudioRAM:  append([]byte(nil), m.audioRAM...),
		Z80BusReq: m.z80BusReq,
		Z80Reset:  m.z80Reset,
		Z80Bank:   m.z80Bank,
		Lockup:    m.lockup,
		MClk:      e.mclk,
		Z80Budget: e.z80Budget,
		FrameMClk: e.frameMClk,
		Mixer:     e.mixer.State(),
	}
}

// SetState restores a snapshot taken with State. The cartridge currently
// inserted must be the one the snapshot was taken with, and the emulator
// must use the same sample rate.
func (e *Emulator) SetState(state *snapshot.Genesis) error {
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
		{"audio RAM", m.audioRAM, state.AudioRAM},
		{"VRAM", m.vdp.vram, state.VDP.VRAM},
		{"cartridge RAM", m.cart.ram, state.Cart.RAM},
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

	e.m68k.SetState(&state.M68K)
	e.z80.SetState(&state.Z80)
	m.psg.SetState(&state.PSG)
	m.ym.SetState(&state.YM2612)
	m.vdp.setState(&state.VDP)
	m.io.setState(&state.IO)
	m.cart.dirty = state.Cart.Dirty

	m.z80BusReq = state.Z80BusReq
	m.z80Reset = state.Z80Reset
	m.z80Bank = state.Z80Bank & (1<<z80BankBits - 1)
	m.lockup = state.Lockup
	e.mclk = state.MClk
	e.z80Budget = state.Z80Budget
	e.frameMClk = state.FrameMClk
	return nil
}

func (v *VDP) state() snapshot.GenesisVDP {
	return snapshot.GenesisVDP{
		Regs:        v.regs,
		VRAM:        append([]byte(nil), v.vram...),
		CRAM:        v.cram,
		VSRAM:       v.vsram,
		Code:        v.code,
		Addr:        v.addr,
		Pending:     v.pending,
		FillPending: v.fillPending,
		Line:        v.line,
		LineCycle:   v.lineCycle,
		HCounter:    v.hcounter,
		VIntPending: v.vintPending,
		HIntPending: v.hintPending,
		Z80Int:      v.z80Int,
	}
}

// setState expects VRAM to have been restored already.
func (v *VDP) setState(s *snapshot.GenesisVDP) {
	v.regs = s.Regs
	v.cram = s.CRAM
	v.vsram = s.VSRAM
	v.code = s.Code & 0x3F
	v.addr = s.Addr
	v.pending = s.Pending
	v.fillPending = s.FillPending
	v.line = s.Line % v.linesPerFrame()
	v.lineCycle = s.LineCycle % mclkPerLine
	v.hcounter = s.HCounter
	v.vintPending = s.VIntPending
	v.hintPending = s.HIntPending
	v.z80Int = s.Z80Int
}

func (io *ioPorts) state() snapshot.GenesisIO {
	return snapshot.GenesisIO{
		Data: [2]uint8{io.DATA1.Value, io.DATA2.Value},
		Ctrl: [2]uint8{io.CTRL1.Value, io.CTRL2.Value},
		Pads: [2]uint8{io.inputs.P1.bits(), io.inputs.P2.bits()},
	}
}

func (io *ioPorts) setState(s *snapshot.GenesisIO) {
	io.DATA1.Value, io.DATA2.Value = s.Data[0], s.Data[1]
	io.CTRL1.Value, io.CTRL2.Value = s.Ctrl[0], s.Ctrl[1]
	io.inputs.P1 = joypadFromBits(s.Pads[0])
	io.inputs.P2 = joypadFromBits(s.Pads[1])
}

func (j Joypad) bits() uint8 {
	var b uint8
	for i, pressed := range [...]bool{j.Up, j.Down, j.Left, j.Right, j.A, j.B, j.C, j.Start} {
		if pressed {
			b |= 1 << i
		}
	}
	return b
}

func joypadFromBits(b uint8) Joypad {
	return Joypad{
		Up:    b&0x01 != 0,
		Down:  b&0x02 != 0,
		Left:  b&0x04 != 0,
		Right: b&0x08 != 0,
		A:     b&0x10 != 0,
		B:     b&0x20 != 0,
		C:     b&0x40 != 0,
		Start: b&0x80 != 0,
	}
}
