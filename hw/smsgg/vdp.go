package smsgg

import (
	"retrocore/emu/log"
	"retrocore/hw/frontend"
)

const (
	dotsPerLine = 342
	activeLines = 192

	linesNTSC = 262
	linesPAL  = 313

	vdpNumRegs  = 11
	vdpVRAMSize = 16 * 1024
	smsCRAMSize = 32
	ggCRAMSize  = 64
)

type vdpTickEffect uint8

const (
	vdpNone vdpTickEffect = iota
	vdpFrameComplete
)

// Access codes, from the top 2 bits of the second control byte.
const (
	codeVRAMRead = iota
	codeVRAMWrite
	codeRegWrite
	codeCRAMWrite
)

// vdp implements the mode 4 video display processor of the Master System
// and Game Gear: its registers, memories, interrupts and timing. It doesn't
// draw the background or sprites, frames are filled with the backdrop
// color.
type vdp struct {
	model  Model
	timing frontend.TimingMode

	regs [vdpNumRegs]uint8
	vram []byte
	cram []byte

	addr       uint16 // 14 bits
	code       uint8
	latched    bool // first control byte written
	latch      uint8
	readBuffer uint8
	cramLatch  uint8 // Game Gear CRAM words are written low byte first

	frameInt    bool
	lineInt     bool
	lineCounter uint8
	line        uint16
	dot         uint16

	frame []frontend.Color
}

func newVDP(model Model, timing frontend.TimingMode) *vdp {
	cramSize := smsCRAMSize
	if model == GameGear {
		cramSize = ggCRAMSize
	}
	return &vdp{
		model:  model,
		timing: timing,
		vram:   make([]byte, vdpVRAMSize),
		cram:   make([]byte, cramSize),
		frame:  make([]frontend.Color, 256*activeLines),
	}
}

func (v *vdp) displayEnabled() bool  { return v.regs[1]&0x40 != 0 }
func (v *vdp) frameIntEnabled() bool { return v.regs[1]&0x20 != 0 }
func (v *vdp) lineIntEnabled() bool  { return v.regs[0]&0x10 != 0 }

// interrupt is the level of the Z80 INT line.
func (v *vdp) interrupt() bool {
	return (v.frameInt && v.frameIntEnabled()) || (v.lineInt && v.lineIntEnabled())
}

func (v *vdp) linesPerFrame() uint16 {
	if v.timing == frontend.PAL {
		return linesPAL
	}
	return linesNTSC
}

// frameSize is the visible area: the Game Gear LCD only shows the middle of
// the mode 4 picture.
func (v *vdp) frameSize() frontend.FrameSize {
	if v.model == GameGear {
		return frontend.FrameSize{Width: 160, Height: 144}
	}
	return frontend.FrameSize{Width: 256, Height: activeLines}
}

// writeControl handles a write to the control port. The first byte is the
// low half of the address, the second one holds the top 6 bits and the
// access code.
func (v *vdp) writeControl(val uint8) {
	if !v.latched {
		v.latched = true
		v.latch = val
		v.addr = v.addr&0x3F00 | uint16(val)
		return
	}
	v.latched = false
	v.code = val >> 6
	v.addr = uint16(val&0x3F)<<8 | uint16(v.latch)

	switch v.code {
	case codeVRAMRead:
		v.readBuffer = v.vram[v.addr]
		v.incAddr()
	case codeRegWrite:
		if reg := val & 0x0F; reg < vdpNumRegs {
			v.regs[reg] = v.latch
			log.ModVideo.DebugZ("vdp register write").Uint8("reg", reg).Hex8("val", v.latch).End()
		}
	}
}

func (v *vdp) incAddr() { v.addr = (v.addr + 1) & 0x3FFF }

// writeData handles a write to the data port, going to CRAM or VRAM
// depending on the last access code.
func (v *vdp) writeData(val uint8) {
	v.latched = false
	if v.code == codeCRAMWrite {
		v.writeCRAM(val)
	} else {
		v.vram[v.addr] = val
	}
	v.readBuffer = val
	v.incAddr()
}

func (v *vdp) writeCRAM(val uint8) {
	if v.model != GameGear {
		v.cram[v.addr&(smsCRAMSize-1)] = val
		return
	}
	a := v.addr & (ggCRAMSize - 1)
	if a&1 == 0 {
		v.cramLatch = val
		return
	}
	v.cram[a-1] = v.cramLatch
	v.cram[a] = val
}

// readData returns the read buffer and refills it from VRAM.
func (v *vdp) readData() uint8 {
	v.latched = false
	val := v.readBuffer
	v.readBuffer = v.vram[v.addr]
	v.incAddr()
	return val
}

// readStatus returns the status register and clears the pending
// interrupts and the control latch.
//
//	bit 7: frame interrupt pending
//	bit 6: sprite overflow
//	bit 5: sprite collision
func (v *vdp) readStatus() uint8 {
	v.latched = false
	var status uint8
	if v.frameInt {
		status |= 0x80
	}
	v.frameInt = false
	v.lineInt = false
	return status
}

// vCounter jumps back after the bottom border so that it fits in a byte.
func (v *vdp) vCounter() uint8 {
	vc := v.line
	switch {
	case v.timing == frontend.NTSC && vc > 0xDA:
		vc -= 6
	case v.timing == frontend.PAL && vc > 0xF2:
		vc -= 57
	}
	return uint8(vc)
}

func (v *vdp) hCounter() uint8 { return uint8(v.dot >> 1) }

// tick advances the VDP by n dots.
func (v *vdp) tick(n uint32) vdpTickEffect {
	effect := vdpNone
	for n > 0 {
		step := min(n, uint32(dotsPerLine-v.dot))
		v.dot += uint16(step)
		n -= step
		if v.dot == dotsPerLine {
			v.dot = 0
			if v.nextLine() {
				effect = vdpFrameComplete
			}
		}
	}
	return effect
}

// nextLine runs the line counter at the end of a line and moves to the next
// one. It reports whether a frame completed. The counter counts down on
// active lines and the one after them, and is reloaded from register 10
// otherwise.
func (v *vdp) nextLine() bool {
	if v.line <= activeLines {
		v.lineCounter--
		if v.lineCounter == 0xFF {
			v.lineCounter = v.regs[10]
			v.lineInt = true
		}
	} else {
		v.lineCounter = v.regs[10]
	}

	v.line++
	if v.line == v.linesPerFrame() {
		v.line = 0
	}
	if v.line != activeLines {
		return false
	}

	v.frameInt = true
	v.renderBackdrop()
	return true
}

func (v *vdp) renderBackdrop() {
	var c frontend.Color
	if v.displayEnabled() {
		c = v.color(16 + v.regs[7]&0x0F)
	}
	frame := v.frame[:v.frameSize().Len()]
	for i := range frame {
		frame[i] = c
	}
}

// color converts a palette entry: --BBGGRR on the Master System,
// ----BBBBGGGGRRRR little endian on the Game Gear.
func (v *vdp) color(idx uint8) frontend.Color {
	if v.model == GameGear {
		lo, hi := v.cram[2*int(idx)], v.cram[2*int(idx)+1]
		return frontend.Color{
			R: (lo & 0x0F) * 17,
			G: (lo >> 4) * 17,
			B: (hi & 0x0F) * 17,
		}
	}
	c := v.cram[idx]
	return frontend.Color{
		R: (c & 0x03) * 85,
		G: (c >> 2 & 0x03) * 85,
		B: (c >> 4 & 0x03) * 85,
	}
}
