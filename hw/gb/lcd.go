package gb

import (
	"retrocore/emu/log"
	"retrocore/hw/hwio"
	"retrocore/hw/sm83"
)

const (
	ScreenWidth  = 160
	ScreenHeight = 144

	dotsPerLine   = 456
	linesPerFrame = 154
	dotsPerFrame  = dotsPerLine * linesPerFrame
)

// lcd emulates the LCD controller timing: line counter, STAT mode and
// interrupts. Pixels are not rendered.
//
// The frame keeps on ticking while the LCD is off, so that frames are still
// produced at the normal rate.
type lcd struct {
	gb *GameBoy

	dots uint32 // since the start of the frame
	line uint8

	LCDC hwio.Reg8 `hwio:"offset=0x40,reset=0x91,wcb"`
	STAT hwio.Reg8 `hwio:"offset=0x41,rcb,wcb"`
	SCY  hwio.Reg8 `hwio:"offset=0x42"`
	SCX  hwio.Reg8 `hwio:"offset=0x43"`
	LY   hwio.Reg8 `hwio:"offset=0x44,rcb,readonly"`
	LYC  hwio.Reg8 `hwio:"offset=0x45"`
	BGP  hwio.Reg8 `hwio:"offset=0x47,reset=0xFC"`
	OBP0 hwio.Reg8 `hwio:"offset=0x48,reset=0xFF"`
	OBP1 hwio.Reg8 `hwio:"offset=0x49,reset=0xFF"`
	WY   hwio.Reg8 `hwio:"offset=0x4A"`
	WX   hwio.Reg8 `hwio:"offset=0x4B"`
}

func (l *lcd) enabled() bool { return l.LCDC.Value&0x80 != 0 }

func (l *lcd) WriteLCDC(old, val uint8) {
	if old&0x80 == 0 && val&0x80 != 0 {
		l.dots = 0
		l.line = 0
	}
	log.ModVideo.DebugZ("write LCDC").Hex8("val", val).End()
}

func (l *lcd) mode() uint8 {
	switch {
	case !l.enabled():
		return 0
	case l.line >= ScreenHeight:
		return 1
	}
	switch dot := l.dots % dotsPerLine; {
	case dot < 80:
		return 2
	case dot < 80+172:
		return 3
	}
	return 0
}

func (l *lcd) ReadSTAT(_ uint8) uint8 {
	v := 0x80 | l.STAT.Value&0x78 | l.mode()
	if l.enabled() && l.line == l.LYC.Value {
		v |= 0x04
	}
	return v
}

func (l *lcd) WriteSTAT(_, val uint8) {
	l.STAT.Value = val & 0x78
}

func (l *lcd) ReadLY(_ uint8) uint8 {
	if !l.enabled() {
		return 0
	}
	return l.line
}

// tick advances the LCD by one M-cycle (4 dots).
func (l *lcd) tick() {
	l.dots += 4
	if l.dots >= dotsPerFrame {
		l.dots -= dotsPerFrame
	}
	line := uint8(l.dots / dotsPerLine)
	if line == l.line {
		return
	}
	l.line = line

	on := l.enabled()
	if line == ScreenHeight {
		l.gb.frameReady = true
		if on {
			l.gb.requestInterrupt(sm83.VBlank)
			if l.STAT.Value&0x10 != 0 {
				l.gb.requestInterrupt(sm83.LCDStatus)
			}
		}
	}
	if on && line == l.LYC.Value && l.STAT.Value&0x40 != 0 {
		l.gb.requestInterrupt(sm83.LCDStatus)
	}
}
