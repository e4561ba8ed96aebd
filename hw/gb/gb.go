// Package gb is a minimal Game Boy: SM83 CPU, cartridge, timer, joypad,
// serial port, APU and LCD timing. Pixels are not rendered.
package gb

import (
	"math/bits"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
	"retrocore/hw/gbapu"
	"retrocore/hw/hwio"
	"retrocore/hw/sm83"
)

// Error is returned by Tick when a collaborator fails.
type Error = frontend.Error

var FrameSize = frontend.FrameSize{Width: ScreenWidth, Height: ScreenHeight}

// DMG shades, from lightest to darkest.
var shades = [4]frontend.Color{
	{R: 0xFF, G: 0xFF, B: 0xFF},
	{R: 0xAA, G: 0xAA, B: 0xAA},
	{R: 0x55, G: 0x55, B: 0x55},
	{R: 0x00, G: 0x00, B: 0x00},
}

type Buttons uint8

const (
	ButtonRight Buttons = 1 << iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

type GameBoy struct {
	CPU  *sm83.CPU
	APU  *gbapu.APU
	Cart *Cartridge

	bus   *hwio.Table
	timer timer
	lcd   lcd

	buttons    Buttons
	serial     []byte
	frameReady bool
	frame      []frontend.Color

	VRAM hwio.Mem  `hwio:"offset=0x8000,size=0x2000"`
	WRAM hwio.Mem  `hwio:"offset=0xC000,size=0x2000,vsize=0x3E00"`
	OAM  hwio.Mem  `hwio:"offset=0xFE00,size=0x100,vsize=0xA0"`
	HRAM hwio.Mem  `hwio:"offset=0xFF80,size=0x80,vsize=0x7F"`
	P1   hwio.Reg8 `hwio:"offset=0xFF00,reset=0x30,rcb,wcb"`
	SB   hwio.Reg8 `hwio:"offset=0xFF01"`
	SC   hwio.Reg8 `hwio:"offset=0xFF02,rcb,wcb"`
	IF   hwio.Reg8 `hwio:"offset=0xFF0F,reset=0x01,rcb,wcb"`
	IE   hwio.Reg8 `hwio:"offset=0xFFFF"`
}

// New creates a Game Boy running the given ROM. save, if not nil, is the
// content of the battery-backed cartridge RAM.
func New(rom, save []byte, sampleRate int) (*GameBoy, error) {
	cart, err := NewCartridge(rom, save)
	if err != nil {
		return nil, err
	}

	gb := &GameBoy{
		CPU:   sm83.New(),
		APU:   gbapu.New(sampleRate),
		Cart:  cart,
		bus:   hwio.NewTable("gb"),
		frame: make([]frontend.Color, FrameSize.Len()),
	}
	gb.timer.gb = gb
	gb.lcd.gb = gb

	hwio.MustInitRegs(gb)
	hwio.MustInitRegs(&gb.timer)
	hwio.MustInitRegs(&gb.lcd)

	gb.bus.MapBank(0x0000, gb.Cart, 0)
	gb.bus.MapBank(0x0000, gb, 0)
	gb.bus.MapBank(0xFF00, &gb.timer, 0)
	gb.bus.MapBank(0xFF00, &gb.lcd, 0)
	gb.APU.Map(gb.bus)

	return gb, nil
}

// Tick executes one CPU instruction. When it completes a frame, the frame is
// sent to the renderer, audio is flushed and, if needed, cartridge RAM is
// persisted.
func (gb *GameBoy) Tick(renderer frontend.Renderer, audio frontend.AudioOutput, saves frontend.SaveWriter) (frontend.TickEffect, error) {
	gb.CPU.ExecuteInstruction(gb)
	if !gb.frameReady {
		return frontend.TickNone, nil
	}
	gb.frameReady = false

	shade := shades[0]
	if gb.lcd.enabled() {
		shade = shades[gb.lcd.BGP.Value&0x03]
	}
	for i := range gb.frame {
		gb.frame[i] = shade
	}

	par := frontend.PixelAspectRatio(1)
	if err := renderer.RenderFrame(gb.frame, FrameSize, &par); err != nil {
		return frontend.TickNone, &Error{Kind: frontend.RenderError, Err: err}
	}
	if err := gb.APU.EndFrame(audio); err != nil {
		return frontend.TickNone, &Error{Kind: frontend.AudioError, Err: err}
	}
	if gb.Cart.Persistent() && gb.Cart.Dirty() {
		if err := saves.PersistSave(gb.Cart.ExternalRAM()); err != nil {
			return frontend.TickNone, &Error{Kind: frontend.SaveError, Err: err}
		}
		gb.Cart.ClearDirty()
	}
	return frontend.FrameRendered, nil
}

// tickMCycle advances all peripherals by one M-cycle.
func (gb *GameBoy) tickMCycle() {
	gb.timer.tick()
	gb.lcd.tick()
	gb.APU.Tick()
}

// sm83.Bus implementation.

func (gb *GameBoy) Read(addr uint16) uint8 {
	gb.tickMCycle()
	return gb.bus.Read8(uint32(addr), false)
}

func (gb *GameBoy) Write(addr uint16, val uint8) {
	gb.tickMCycle()
	gb.bus.Write8(uint32(addr), val)
}

func (gb *GameBoy) Idle() {
	gb.tickMCycle()
}

func (gb *GameBoy) HighestPriorityInterrupt() (sm83.Interrupt, bool) {
	pending := gb.IE.Value & gb.IF.Value & 0x1F
	if pending == 0 {
		return 0, false
	}
	return sm83.Interrupt(bits.TrailingZeros8(pending)), true
}

func (gb *GameBoy) AcknowledgeInterrupt(i sm83.Interrupt) {
	gb.IF.Value &^= 1 << i
}

func (gb *GameBoy) requestInterrupt(i sm83.Interrupt) {
	gb.IF.Value |= 1 << i
}

// Peek8 reads the bus without side effects.
func (gb *GameBoy) Peek8(addr uint16) uint8 {
	return gb.bus.Peek8(uint32(addr))
}

// IF: $FF0F
func (gb *GameBoy) ReadIF(val uint8) uint8 { return 0xE0 | val }
func (gb *GameBoy) WriteIF(_, val uint8)   { gb.IF.Value = val & 0x1F }

// P1: $FF00
func (gb *GameBoy) ReadP1(val uint8) uint8 {
	nib := uint8(0x0F)
	if val&0x10 == 0 {
		nib &^= uint8(gb.buttons) & 0x0F
	}
	if val&0x20 == 0 {
		nib &^= uint8(gb.buttons) >> 4
	}
	return 0xC0 | val&0x30 | nib
}

func (gb *GameBoy) WriteP1(_, val uint8) { gb.P1.Value = val & 0x30 }

// SetButtons sets the state of the joypad, a newly pressed button raises the
// joypad interrupt.
func (gb *GameBoy) SetButtons(b Buttons) {
	if b&^gb.buttons != 0 {
		gb.requestInterrupt(sm83.Joypad)
	}
	gb.buttons = b
}

// SC: $FF02
func (gb *GameBoy) ReadSC(val uint8) uint8 { return 0x7E | val }

// WriteSC starts a transfer with internal clock. There's no link partner so
// the transfer completes immediately, shifting in $FF.
func (gb *GameBoy) WriteSC(_, val uint8) {
	gb.SC.Value = val & 0x81
	if val&0x81 != 0x81 {
		return
	}
	b := gb.SB.Value
	gb.serial = append(gb.serial, b)
	gb.SB.Value = 0xFF
	gb.SC.Value &^= 0x80
	gb.requestInterrupt(sm83.Serial)

	log.ModEmu.DebugZ("serial transfer").Hex8("out", b).End()
}

// SerialOutput returns all bytes sent through the serial port.
func (gb *GameBoy) SerialOutput() []byte { return gb.serial }

func (gb *GameBoy) CartridgeTitle() string { return gb.Cart.Header.Title }
