package gb

import (
	"github.com/go-faster/errors"

	"retrocore/hw/hwio"
	"retrocore/hw/snapshot"
)

const stateVersion = 2

func (gb *GameBoy) lcdRegs() [12]*hwio.Reg8 {
	l := &gb.lcd
	return [12]*hwio.Reg8{
		&l.LCDC, &l.STAT, &l.SCY, &l.SCX, &l.LY, &l.LYC,
		nil, &l.BGP, &l.OBP0, &l.OBP1, &l.WY, &l.WX,
	}
}

// State returns a snapshot of the console. ROM bytes are not included.
func (gb *GameBoy) State() *snapshot.GameBoy {
	state := &snapshot.GameBoy{
		Version: stateVersion,
		CPU:     *gb.CPU.SaveState(),
		Cart:    gb.Cart.saveState(),
		Timer: snapshot.GBTimer{
			Divider: gb.timer.divider,
			TIMA:    gb.timer.tima,
			TMA:     gb.timer.tma,
			TAC:     gb.timer.tac,
			Reload:  gb.timer.reload,
		},
		LCD: snapshot.GBLCD{
			Dots: gb.lcd.dots,
			Line: gb.lcd.line,
		},
		APU:     *gb.APU.State(),
		VRAM:    append([]byte(nil), gb.VRAM.Data...),
		WRAM:    append([]byte(nil), gb.WRAM.Data...),
		OAM:     append([]byte(nil), gb.OAM.Data...),
		HRAM:    append([]byte(nil), gb.HRAM.Data...),
		IE:      gb.IE.Value,
		IF:      gb.IF.Value,
		P1:      gb.P1.Value,
		SB:      gb.SB.Value,
		SC:      gb.SC.Value,
		Buttons: uint8(gb.buttons),
	}
	for i, r := range gb.lcdRegs() {
		if r != nil {
			state.LCD.Regs[i] = r.Value
		}
	}
	return state
}

// SetState restores a snapshot taken with State. The cartridge currently
// inserted must be the one the snapshot was taken with, and the console
// must use the same sample rate.
func (gb *GameBoy) SetState(state *snapshot.GameBoy) error {
	if state.Version != stateVersion {
		return errors.Errorf("unsupported state version %d", state.Version)
	}
	mems := []struct {
		name string
		dst  []byte
		src  []byte
	}{
		{"VRAM", gb.VRAM.Data, state.VRAM},
		{"WRAM", gb.WRAM.Data, state.WRAM},
		{"OAM", gb.OAM.Data, state.OAM},
		{"HRAM", gb.HRAM.Data, state.HRAM},
	}
	for _, m := range mems {
		if len(m.src) != len(m.dst) {
			return errors.Errorf("%s size mismatch: %d bytes, want %d", m.name, len(m.src), len(m.dst))
		}
	}
	if err := gb.APU.SetState(&state.APU); err != nil {
		return errors.Wrap(err, "APU")
	}
	if err := gb.Cart.setState(&state.Cart); err != nil {
		return errors.Wrap(err, "cartridge")
	}
	for _, m := range mems {
		copy(m.dst, m.src)
	}

	gb.CPU.SetState(&state.CPU)
	gb.timer.divider = state.Timer.Divider
	gb.timer.tima = state.Timer.TIMA
	gb.timer.tma = state.Timer.TMA
	gb.timer.tac = state.Timer.TAC
	gb.timer.reload = state.Timer.Reload
	gb.lcd.dots = state.LCD.Dots
	gb.lcd.line = state.LCD.Line
	for i, r := range gb.lcdRegs() {
		if r != nil {
			r.Value = state.LCD.Regs[i]
		}
	}
	gb.IE.Value = state.IE
	gb.IF.Value = state.IF
	gb.P1.Value = state.P1
	gb.SB.Value = state.SB
	gb.SC.Value = state.SC
	gb.buttons = Buttons(state.Buttons)
	gb.frameReady = false
	return nil
}
