package smsgg

import (
	"retrocore/emu/log"
)

// Joypad is the state of a 2-button controller, true when pressed.
type Joypad struct {
	Up, Down, Left, Right bool
	Button1, Button2      bool
}

type Inputs struct {
	P1, P2 Joypad

	// Pause is the Master System pause button, or the Game Gear start
	// button.
	Pause bool
}

// ioPorts holds the controller ports and the I/O control register. The
// control register sets the direction of the TR and TH pins of both ports,
// and their level when they're outputs.
type ioPorts struct {
	model  Model
	region Region

	inputs  Inputs
	reset   bool // reset button held
	control uint8
}

func newIOPorts(model Model, region Region) ioPorts {
	return ioPorts{model: model, region: region, control: 0xFF}
}

// pin returns the level of a TR or TH pin: the joypad value when it's an
// input, the control register output level otherwise. dirBit is the
// direction bit, the output level is 4 bits above.
func (io *ioPorts) pin(dirBit uint, joypad bool) bool {
	if io.control&(1<<dirBit) != 0 {
		return joypad
	}
	return io.control&(1<<(dirBit+4)) != 0
}

// th is like pin for TH, which Japanese consoles can't drive.
func (io *ioPorts) th(dirBit uint) bool {
	if io.control&(1<<dirBit) == 0 && io.region == Domestic {
		return false
	}
	return io.pin(dirBit, true)
}

func (io *ioPorts) writeControl(val uint8) {
	log.ModInput.DebugZ("io control").Hex8("val", val).End()
	io.control = val
}

// bit returns mask if b is false: all input lines are active low.
func bit(b bool, mask uint8) uint8 {
	if b {
		return 0
	}
	return mask
}

// portDC: port A up, down, left, right, button 1, TR (button 2), then
// port B up and down.
func (io *ioPorts) portDC() uint8 {
	p1, p2 := io.inputs.P1, io.inputs.P2
	v := bit(p1.Up, 0x01) |
		bit(p1.Down, 0x02) |
		bit(p1.Left, 0x04) |
		bit(p1.Right, 0x08) |
		bit(p1.Button1, 0x10) |
		bit(p2.Up, 0x40) |
		bit(p2.Down, 0x80)
	if io.pin(0, !p1.Button2) {
		v |= 0x20
	}
	return v
}

// portDD: port B left, right, button 1, TR (button 2), the reset button,
// an unused bit, then both TH pins.
func (io *ioPorts) portDD() uint8 {
	if io.model == GameGear {
		return 0xFF
	}
	p2 := io.inputs.P2
	v := bit(p2.Left, 0x01) |
		bit(p2.Right, 0x02) |
		bit(p2.Button1, 0x04) |
		bit(io.reset, 0x10) |
		0x20
	if io.pin(2, !p2.Button2) {
		v |= 0x08
	}
	if io.th(1) {
		v |= 0x40
	}
	if io.th(3) {
		v |= 0x80
	}
	return v
}

// ggPort0 is the Game Gear start button and region.
func (io *ioPorts) ggPort0() uint8 {
	v := bit(io.inputs.Pause, 0x80)
	if io.region == International {
		v |= 0x40
	}
	return v
}

// z80Bus is the Z80 view of the console.
type z80Bus struct{ *Emulator }

func (b z80Bus) ReadMemory(addr uint16) uint8      { return b.mem.read(addr) }
func (b z80Bus) WriteMemory(addr uint16, v uint8) { b.mem.write(addr, v) }

// Only A7, A6 and A0 are decoded, except for the Game Gear registers at
// $00-$06.
func (b z80Bus) ReadIO(port uint16) uint8 {
	p := uint8(port)
	if b.config.Model == GameGear && p <= 0x06 {
		if p == 0 {
			return b.io.ggPort0()
		}
		return 0xFF
	}

	switch p & 0xC1 {
	case 0x40:
		return b.vdp.vCounter()
	case 0x41:
		return b.vdp.hCounter()
	case 0x80:
		return b.vdp.readData()
	case 0x81:
		return b.vdp.readStatus()
	case 0xC0:
		return b.io.portDC()
	case 0xC1:
		return b.io.portDD()
	}
	return 0xFF
}

func (b z80Bus) WriteIO(port uint16, val uint8) {
	p := uint8(port)
	if b.config.Model == GameGear && p <= 0x06 {
		if p == 0x06 {
			b.psg.WriteStereo(val)
		}
		return
	}

	switch p & 0xC1 {
	case 0x00:
		log.ModMem.DebugZ("memory control").Hex8("val", val).End()
	case 0x01:
		b.io.writeControl(val)
	case 0x40, 0x41:
		b.psg.Write(val)
	case 0x80:
		b.vdp.writeData(val)
	case 0x81:
		b.vdp.writeControl(val)
	}
}

// NMI is the pause button, only the Master System has one.
func (b z80Bus) NMI() bool    { return b.config.Model == MasterSystem && b.io.inputs.Pause }
func (b z80Bus) INT() bool    { return b.vdp.interrupt() }
func (b z80Bus) BusReq() bool { return false }
func (b z80Bus) Reset() bool  { return false }
