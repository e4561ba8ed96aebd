package genesis

import (
	"retrocore/emu/log"
	"retrocore/hw/hwio"
)

// Joypad is the state of a 3-button controller, true when pressed.
type Joypad struct {
	Up, Down, Left, Right bool
	A, B, C, Start        bool
}

type Inputs struct {
	P1, P2 Joypad
}

// ioPorts holds the registers at $A10000-$A1001F. Registers live on odd
// addresses, even addresses mirror them. Unmapped registers read 0.
type ioPorts struct {
	bus *hwio.Table

	versionBit bool // set on overseas consoles
	pal        bool
	inputs     Inputs

	VERSION hwio.Reg8 `hwio:"offset=0x01,readonly,rcb"`
	DATA1   hwio.Reg8 `hwio:"offset=0x03,rcb"`
	DATA2   hwio.Reg8 `hwio:"offset=0x05,rcb"`
	CTRL1   hwio.Reg8 `hwio:"offset=0x09,wcb"`
	CTRL2   hwio.Reg8 `hwio:"offset=0x0B,wcb"`
	TXDATA1 hwio.Reg8 `hwio:"offset=0x0F,reset=0xFF,readonly"`
	TXDATA2 hwio.Reg8 `hwio:"offset=0x15,reset=0xFF,readonly"`
	TXDATA3 hwio.Reg8 `hwio:"offset=0x1B,reset=0xFF,readonly"`
}

func newIOPorts(region Region, pal bool) *ioPorts {
	io := &ioPorts{
		bus:        hwio.NewTable("io"),
		versionBit: region != Japan,
		pal:        pal,
	}
	io.bus.OpenBus = 0
	hwio.MustInitRegs(io)
	io.bus.MapBank(0, io, 0)
	return io
}

func (io *ioPorts) ReadByte(addr uint32) uint8 {
	return io.bus.Read8(addr&0x1F|1, false)
}

func (io *ioPorts) WriteByte(addr uint32, val uint8) {
	io.bus.Write8(addr&0x1F|1, val)
}

// ReadVERSION: bit 7 overseas, bit 6 PAL, bit 5 no expansion unit.
func (io *ioPorts) ReadVERSION(uint8) uint8 {
	v := uint8(0x20)
	if io.versionBit {
		v |= 0x80
	}
	if io.pal {
		v |= 0x40
	}
	return v
}

func (io *ioPorts) ReadDATA1(val uint8) uint8 {
	return readJoypad(io.inputs.P1, val, io.CTRL1.Value)
}

func (io *ioPorts) ReadDATA2(val uint8) uint8 {
	return readJoypad(io.inputs.P2, val, io.CTRL2.Value)
}

func (io *ioPorts) WriteCTRL1(_, val uint8) {
	log.ModInput.DebugZ("port 1 control").Hex8("val", val).End()
}

func (io *ioPorts) WriteCTRL2(_, val uint8) {
	log.ModInput.DebugZ("port 2 control").Hex8("val", val).End()
}

// readJoypad implements the 3-button controller protocol. TH (bit 6)
// selects the buttons on the other bits:
//
//	TH=1: ? 1 C B R L D U
//	TH=0: ? 0 S A 0 0 D U
//
// Buttons are active low. Bits configured as outputs in ctrl read back
// the last value written to the data register.
func readJoypad(pad Joypad, data, ctrl uint8) uint8 {
	th := data&ctrl&0x40 != 0 || ctrl&0x40 == 0

	var pressed uint8
	set := func(b bool, bit uint8) {
		if b {
			pressed |= bit
		}
	}
	set(pad.Up, 0x01)
	set(pad.Down, 0x02)
	if th {
		set(pad.Left, 0x04)
		set(pad.Right, 0x08)
		set(pad.B, 0x10)
		set(pad.C, 0x20)
	} else {
		set(pad.A, 0x10)
		set(pad.Start, 0x20)
		pressed |= 0x0C
	}

	in := 0x3F &^ pressed
	if th {
		in |= 0x40
	}
	return data&ctrl&0x7F | in&^ctrl&0x7F
}
