package genesis

import (
	"retrocore/emu/log"
	"retrocore/hw/frontend"
)

const (
	mclkPerLine = 3420
	hblankStart = 2560 // end of the active area, in mclk

	linesNTSC = 262
	linesPAL  = 313

	vramSize  = 64 * 1024
	cramSize  = 64
	vsramSize = 40
	numRegs   = 24
)

type vdpTickEffect uint8

const (
	vdpNone vdpTickEffect = iota
	vdpFrameComplete
)

// Access targets, from the code register bits 0-3.
const (
	vramRead   = 0x0
	vramWrite  = 0x1
	cramWrite  = 0x3
	vsramRead  = 0x4
	vsramWrite = 0x5
	cramRead   = 0x8
)

// dmaReader is the source of 68000 to VDP transfers.
type dmaReader interface {
	ReadWordForDMA(addr uint32) uint16
}

// VDP implements the Genesis video display processor: its registers,
// memories, DMA and timing. It doesn't draw planes or sprites, frames are
// filled with the backdrop color.
type VDP struct {
	regs  [numRegs]uint8
	vram  []byte
	cram  [cramSize]uint16
	vsram [vsramSize]uint16

	code        uint8 // 6 bits
	addr        uint16
	pending     bool // first half of a command written
	fillPending bool

	timing    frontend.TimingMode
	line      uint16
	lineCycle uint32 // mclk into the current line
	hcounter  int16  // H interrupt counter

	vintPending bool
	hintPending bool
	z80Int      bool

	dma   dmaReader
	frame []frontend.Color
}

func newVDP(timing frontend.TimingMode, dma dmaReader) *VDP {
	return &VDP{
		vram:   make([]byte, vramSize),
		timing: timing,
		dma:    dma,
		frame:  make([]frontend.Color, 320*480),
	}
}

func (v *VDP) displayEnabled() bool { return v.regs[1]&0x40 != 0 }
func (v *VDP) vintEnabled() bool    { return v.regs[1]&0x20 != 0 }
func (v *VDP) dmaEnabled() bool     { return v.regs[1]&0x10 != 0 }
func (v *VDP) hintEnabled() bool    { return v.regs[0]&0x10 != 0 }
func (v *VDP) h40() bool            { return v.regs[12]&0x81 != 0 }
func (v *VDP) interlaced() bool     { return v.regs[12]&0x06 == 0x06 }
func (v *VDP) autoIncrement() uint16 {
	return uint16(v.regs[15])
}

// activeLines is 240 in V30 mode, only available on PAL consoles.
func (v *VDP) activeLines() uint16 {
	if v.regs[1]&0x08 != 0 && v.timing == frontend.PAL {
		return 240
	}
	return 224
}

func (v *VDP) linesPerFrame() uint16 {
	if v.timing == frontend.PAL {
		return linesPAL
	}
	return linesNTSC
}

func (v *VDP) inVBlank() bool {
	return v.line >= v.activeLines() && v.line != v.linesPerFrame()-1
}

// FrameSize returns the size of the current frame, doubled vertically in
// interlace mode 2.
func (v *VDP) FrameSize() frontend.FrameSize {
	fs := frontend.FrameSize{Width: 256, Height: int(v.activeLines())}
	if v.h40() {
		fs.Width = 320
	}
	if v.interlaced() {
		fs.Height *= 2
	}
	return fs
}

// WriteControl handles a word write to the control port: either a register
// write or one half of a command.
func (v *VDP) WriteControl(val uint16) {
	if v.pending {
		v.pending = false
		v.code = v.code&0x03 | uint8(val>>2)&0x3C
		v.addr = v.addr&0x3FFF | val<<14
		if v.code&0x20 != 0 && v.dmaEnabled() {
			v.startDMA()
		}
		return
	}

	if val&0xC000 == 0x8000 {
		reg := uint8(val>>8) & 0x1F
		if reg < numRegs {
			v.regs[reg] = uint8(val)
			log.ModVideo.DebugZ("vdp register write").Uint8("reg", reg).Hex8("val", uint8(val)).End()
		}
		return
	}

	v.code = v.code&0x3C | uint8(val>>14)
	v.addr = v.addr&0xC000 | val&0x3FFF
	v.pending = true
}

// WriteData handles a word write to the data port.
func (v *VDP) WriteData(val uint16) {
	v.pending = false

	if v.fillPending {
		// The word lands at the destination, then its high byte is
		// repeated from the same address.
		v.fillPending = false
		v.writeVRAMWord(v.addr, val)
		v.dmaFill(uint8(val >> 8))
		return
	}
	v.writeTarget(val)
}

func (v *VDP) writeTarget(val uint16) {
	switch v.code & 0x0F {
	case vramWrite:
		v.writeVRAMWord(v.addr, val)
	case cramWrite:
		v.cram[v.addr>>1&(cramSize-1)] = val & 0x0EEE
	case vsramWrite:
		if i := int(v.addr >> 1); i < vsramSize {
			v.vsram[i] = val & 0x07FF
		}
	default:
		log.ModVideo.DebugZ("vdp data write with read code").Hex8("code", v.code).End()
	}
	v.addr += v.autoIncrement()
}

// ReadData handles a word read from the data port.
func (v *VDP) ReadData() uint16 {
	v.pending = false

	var val uint16
	switch v.code & 0x0F {
	case vramRead:
		a := v.addr &^ 1
		val = uint16(v.vram[a])<<8 | uint16(v.vram[a+1])
	case cramRead:
		val = v.cram[v.addr>>1&(cramSize-1)]
	case vsramRead:
		if i := int(v.addr >> 1); i < vsramSize {
			val = v.vsram[i]
		}
	}
	v.addr += v.autoIncrement()
	return val
}

func (v *VDP) writeVRAMWord(addr, val uint16) {
	v.vram[addr] = uint8(val >> 8)
	v.vram[addr^1] = uint8(val)
}

// ReadStatus returns the status register and clears the command latch.
//
//	bit 9: FIFO empty
//	bit 7: VINT pending
//	bit 3: VBlank
//	bit 2: HBlank
//	bit 0: PAL
func (v *VDP) ReadStatus() uint16 {
	v.pending = false

	status := uint16(0x3600)
	if v.vintPending {
		status |= 0x0080
	}
	if v.inVBlank() || !v.displayEnabled() {
		status |= 0x0008
	}
	if v.lineCycle >= hblankStart {
		status |= 0x0004
	}
	if v.timing == frontend.PAL {
		status |= 0x0001
	}
	return status
}

// HVCounter returns the V counter in the high byte and the H counter in the
// low byte.
func (v *VDP) HVCounter() uint16 {
	vc := v.line
	switch {
	case v.timing == frontend.NTSC && vc > 0xEA:
		vc -= 6
	case v.timing == frontend.PAL && vc > 0x102:
		vc -= 57
	}

	pixel := v.lineCycle / 10
	if v.h40() {
		pixel = v.lineCycle / 8
	}
	hc := pixel >> 1
	return uint16(vc&0xFF)<<8 | uint16(hc&0xFF)
}

func (v *VDP) dmaLength() uint32 {
	n := uint32(v.regs[19]) | uint32(v.regs[20])<<8
	if n == 0 {
		n = 0x10000
	}
	return n
}

func (v *VDP) clearDMALength() {
	v.regs[19], v.regs[20] = 0, 0
}

func (v *VDP) startDMA() {
	switch v.regs[23] >> 6 {
	case 0, 1:
		v.dmaTransfer()
	case 2:
		v.fillPending = true
	case 3:
		v.dmaCopy()
	}
}

// dmaTransfer copies words from the 68000 bus. It runs to completion
// immediately.
func (v *VDP) dmaTransfer() {
	src := (uint32(v.regs[21]) | uint32(v.regs[22])<<8 | uint32(v.regs[23]&0x7F)<<16) << 1
	n := v.dmaLength()

	log.ModVideo.DebugZ("dma transfer").
		Hex32("src", src).
		Hex16("dst", v.addr).
		Uint32("len", n).
		Hex8("code", v.code).
		End()

	for range n {
		v.writeTarget(v.dma.ReadWordForDMA(src))
		// The source wraps within a 128KiB window.
		src = src&0xFE0000 | (src+2)&0x1FFFF
	}

	next := src >> 1
	v.regs[21] = uint8(next)
	v.regs[22] = uint8(next >> 8)
	v.clearDMALength()
	v.code &^= 0x20
}

func (v *VDP) dmaFill(val uint8) {
	n := v.dmaLength()
	for range n {
		v.vram[v.addr^1] = val
		v.addr += v.autoIncrement()
	}
	v.clearDMALength()
	v.code &^= 0x20
}

func (v *VDP) dmaCopy() {
	src := uint16(v.regs[21]) | uint16(v.regs[22])<<8
	n := v.dmaLength()
	for range n {
		v.vram[v.addr] = v.vram[src]
		src++
		v.addr += v.autoIncrement()
	}
	v.regs[21] = uint8(src)
	v.regs[22] = uint8(src >> 8)
	v.clearDMALength()
	v.code &^= 0x20
}

// InterruptLevel returns the 68000 interrupt level requested by the VDP.
func (v *VDP) InterruptLevel() uint8 {
	switch {
	case v.vintPending && v.vintEnabled():
		return 6
	case v.hintPending && v.hintEnabled():
		return 4
	}
	return 0
}

func (v *VDP) AcknowledgeInterrupt(level uint8) {
	switch level {
	case 6:
		v.vintPending = false
	case 4:
		v.hintPending = false
	}
}

// Z80Interrupt reports the Z80 INT line, asserted for one line at the start
// of VBlank.
func (v *VDP) Z80Interrupt() bool { return v.z80Int }

// Tick advances the VDP by mclk master clock cycles.
func (v *VDP) Tick(mclk uint32) vdpTickEffect {
	effect := vdpNone
	for mclk > 0 {
		// Stop at the start of HBlank and at the end of the line.
		next := uint32(mclkPerLine)
		if v.lineCycle < hblankStart {
			next = hblankStart
		}
		step := min(mclk, next-v.lineCycle)
		v.lineCycle += step
		mclk -= step

		switch v.lineCycle {
		case hblankStart:
			v.hblank()
		case mclkPerLine:
			v.lineCycle = 0
			if v.nextLine() {
				effect = vdpFrameComplete
			}
		}
	}
	return effect
}

// hblank runs the H interrupt counter. It counts down on active lines and
// is reloaded from register 10 during VBlank.
func (v *VDP) hblank() {
	if v.line > v.activeLines() {
		v.hcounter = int16(v.regs[10])
		return
	}
	v.hcounter--
	if v.hcounter < 0 {
		v.hcounter = int16(v.regs[10])
		v.hintPending = true
	}
}

// nextLine moves to the next line and reports whether a frame completed.
func (v *VDP) nextLine() bool {
	v.z80Int = false
	v.line++
	if v.line == v.linesPerFrame() {
		v.line = 0
	}
	if v.line != v.activeLines() {
		return false
	}

	v.vintPending = true
	v.z80Int = true
	v.renderBackdrop()
	return true
}

func (v *VDP) renderBackdrop() {
	var c frontend.Color
	if v.displayEnabled() {
		c = colorFromCRAM(v.cram[v.regs[7]&0x3F])
	}
	frame := v.frame[:v.FrameSize().Len()]
	for i := range frame {
		frame[i] = c
	}
}

// colorFromCRAM converts a 9-bit BGR CRAM entry to RGB888.
func colorFromCRAM(c uint16) frontend.Color {
	expand := func(n uint16) uint8 {
		n &= 7
		return uint8(n<<5 | n<<2 | n>>1)
	}
	return frontend.Color{
		R: expand(c >> 1),
		G: expand(c >> 5),
		B: expand(c >> 9),
	}
}

// Frame returns the last rendered frame.
func (v *VDP) Frame() []frontend.Color {
	return v.frame[:v.FrameSize().Len()]
}
