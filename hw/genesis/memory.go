package genesis

import (
	"retrocore/emu/log"
	"retrocore/hw/psg"
	"retrocore/hw/ym2612"
)

const (
	mainRAMSize  = 64 * 1024
	audioRAMSize = 8 * 1024

	// Bits of the Z80 bank register, shifted in one at a time.
	z80BankBits = 9
)

// Memory routes the accesses of both CPUs. The 68000 sees it through
// mainBus, the Z80 through z80Bus.
type Memory struct {
	cart     *Cartridge
	ram      []byte
	audioRAM []byte

	vdp *VDP
	psg *psg.PSG
	ym  *ym2612.YM2612
	io  *ioPorts

	z80BusReq bool
	z80Reset  bool
	z80Bank   uint16

	// Set when the Z80 accesses its own address space through the bank
	// window, which hangs a real console.
	lockup bool
}

func newMemory(cart *Cartridge, io *ioPorts) *Memory {
	return &Memory{
		cart:     cart,
		ram:      make([]byte, mainRAMSize),
		audioRAM: make([]byte, audioRAMSize),
		psg:      psg.New(),
		ym:       ym2612.New(),
		io:       io,
		z80Reset: true,
	}
}

func (m *Memory) z80Stalled() bool {
	return m.z80BusReq || m.z80Reset
}

// ReadWordForDMA reads the source of a 68000 to VDP DMA transfer, only
// cartridge and RAM are reachable.
func (m *Memory) ReadWordForDMA(addr uint32) uint16 {
	addr &= 0xFFFFFF
	switch {
	case addr <= 0x3FFFFF:
		return m.cart.ReadWord(addr)
	case addr >= 0xE00000:
		a := addr & 0xFFFF
		return uint16(m.ram[a])<<8 | uint16(m.ram[(a+1)&0xFFFF])
	}
	return 0xFFFF
}

// mainBus is the 68000 view of the memory.
type mainBus struct{ *Memory }

func (b mainBus) ReadByte(addr uint32) uint8 {
	addr &= 0xFFFFFF
	switch {
	case addr <= 0x3FFFFF:
		return b.cart.ReadByte(addr)
	case addr >= 0xA00000 && addr <= 0xA0FFFF:
		return b.z80Read(uint16(addr & 0x7FFF))
	case addr >= 0xA10000 && addr <= 0xA1001F:
		return b.io.ReadByte(addr)
	case addr == 0xA11100 || addr == 0xA11101:
		return b.busReqStatus()
	case addr >= 0xA13000 && addr <= 0xA130FF:
		log.ModMem.DebugZ("read from unimplemented $A130xx register").Hex32("addr", addr).End()
		return 0xFF
	case addr >= 0xC00000 && addr <= 0xC0001F:
		return b.vdpReadByte(addr)
	case addr >= 0xE00000:
		return b.ram[addr&0xFFFF]
	}
	return 0xFF
}

func (b mainBus) ReadWord(addr uint32) uint16 {
	addr &= 0xFFFFFF
	switch {
	case addr <= 0x3FFFFF:
		return b.cart.ReadWord(addr)
	case addr >= 0xA00000 && addr <= 0xA0FFFF:
		v := b.z80Read(uint16(addr & 0x7FFF))
		return uint16(v)<<8 | uint16(v)
	case addr >= 0xA10000 && addr <= 0xA1001F:
		v := b.io.ReadByte(addr)
		return uint16(v)<<8 | uint16(v)
	case addr == 0xA11100:
		v := b.busReqStatus()
		return uint16(v)<<8 | uint16(v)
	case addr >= 0xA13000 && addr <= 0xA130FF:
		log.ModMem.DebugZ("read from unimplemented $A130xx register").Hex32("addr", addr).End()
		return 0xFFFF
	case addr >= 0xC00000 && addr <= 0xC0001F:
		return b.vdpReadWord(addr)
	case addr >= 0xE00000:
		a := addr & 0xFFFF
		return uint16(b.ram[a])<<8 | uint16(b.ram[(a+1)&0xFFFF])
	}
	return 0xFFFF
}

func (b mainBus) WriteByte(addr uint32, val uint8) {
	addr &= 0xFFFFFF
	switch {
	case addr <= 0x3FFFFF:
		b.cart.WriteByte(addr, val)
	case addr >= 0xA00000 && addr <= 0xA0FFFF:
		b.z80Write(uint16(addr&0x7FFF), val)
	case addr >= 0xA10000 && addr <= 0xA1001F:
		b.io.WriteByte(addr, val)
	case addr == 0xA11100 || addr == 0xA11101:
		b.setBusReq(val&1 != 0)
	case addr == 0xA11200 || addr == 0xA11201:
		b.setZ80Reset(val&1 == 0)
	case addr >= 0xA13000 && addr <= 0xA130FF:
		log.ModMem.DebugZ("write to unimplemented $A130xx register").Hex32("addr", addr).Hex8("val", val).End()
	case addr >= 0xC00000 && addr <= 0xC0001F:
		b.vdpWriteByte(addr, val)
	case addr >= 0xE00000:
		b.ram[addr&0xFFFF] = val
	}
}

func (b mainBus) WriteWord(addr uint32, val uint16) {
	addr &= 0xFFFFFF
	switch {
	case addr <= 0x3FFFFF:
		b.cart.WriteWord(addr, val)
	case addr >= 0xA00000 && addr <= 0xA0FFFF:
		// Only the high byte reaches the 8-bit Z80 bus.
		b.z80Write(uint16(addr&0x7FFF), uint8(val>>8))
	case addr >= 0xA10000 && addr <= 0xA1001F:
		b.io.WriteByte(addr, uint8(val))
	case addr == 0xA11100:
		b.setBusReq(val&0x100 != 0)
	case addr == 0xA11200:
		b.setZ80Reset(val&0x100 == 0)
	case addr >= 0xA13000 && addr <= 0xA130FF:
		log.ModMem.DebugZ("write to unimplemented $A130xx register").Hex32("addr", addr).Hex16("val", val).End()
	case addr >= 0xC00000 && addr <= 0xC0001F:
		b.vdpWriteWord(addr, val)
	case addr >= 0xE00000:
		a := addr & 0xFFFF
		b.ram[a] = uint8(val >> 8)
		b.ram[(a+1)&0xFFFF] = uint8(val)
	}
}

func (b mainBus) InterruptLevel() uint8 { return b.vdp.InterruptLevel() }

func (b mainBus) AcknowledgeInterrupt(level uint8) { b.vdp.AcknowledgeInterrupt(level) }

// busReqStatus is 0 when the 68000 owns the Z80 bus.
func (m *Memory) busReqStatus() uint8 {
	if m.z80Stalled() {
		return 0
	}
	return 1
}

func (m *Memory) setBusReq(req bool) {
	if req != m.z80BusReq {
		log.ModMem.DebugZ("z80 busreq").Bool("req", req).End()
	}
	m.z80BusReq = req
}

func (m *Memory) setZ80Reset(reset bool) {
	if reset && !m.z80Reset {
		// The reset line is shared with the YM2612.
		m.ym.Reset()
	}
	m.z80Reset = reset
}

func (m *Memory) vdpReadByte(addr uint32) uint8 {
	switch a := addr & 0x1F; {
	case a <= 0x03:
		return byteOf(m.vdp.ReadData(), a)
	case a <= 0x07:
		return byteOf(m.vdp.ReadStatus(), a)
	case a <= 0x0F:
		return byteOf(m.vdp.HVCounter(), a)
	}
	return 0xFF
}

// byteOf returns the high byte of v for even addresses, the low byte for odd.
func byteOf(v uint16, addr uint32) uint8 {
	if addr&1 == 0 {
		return uint8(v >> 8)
	}
	return uint8(v)
}

func (m *Memory) vdpReadWord(addr uint32) uint16 {
	switch a := addr & 0x1F; {
	case a <= 0x03:
		return m.vdp.ReadData()
	case a <= 0x07:
		return m.vdp.ReadStatus()
	case a <= 0x0F:
		return m.vdp.HVCounter()
	}
	return 0xFFFF
}

func (m *Memory) vdpWriteByte(addr uint32, val uint8) {
	word := uint16(val)<<8 | uint16(val)
	switch a := addr & 0x1F; {
	case a <= 0x03:
		m.vdp.WriteData(word)
	case a <= 0x07:
		m.vdp.WriteControl(word)
	case a >= 0x11 && a <= 0x17 && a&1 == 1:
		m.psg.Write(val)
	}
}

func (m *Memory) vdpWriteWord(addr uint32, val uint16) {
	switch a := addr & 0x1F; {
	case a <= 0x03:
		m.vdp.WriteData(val)
	case a <= 0x07:
		m.vdp.WriteControl(val)
	case a >= 0x10 && a <= 0x17:
		m.psg.Write(uint8(val))
	}
}

// z80Bus is the Z80 view of the memory.
type z80Bus struct{ *Memory }

func (b z80Bus) ReadMemory(addr uint16) uint8      { return b.z80Read(addr) }
func (b z80Bus) WriteMemory(addr uint16, v uint8) { b.z80Write(addr, v) }

// The Z80 I/O space isn't connected.
func (b z80Bus) ReadIO(uint16) uint8   { return 0xFF }
func (b z80Bus) WriteIO(uint16, uint8) {}

func (b z80Bus) NMI() bool    { return false }
func (b z80Bus) INT() bool    { return b.vdp.Z80Interrupt() }
func (b z80Bus) BusReq() bool { return b.z80BusReq }
func (b z80Bus) Reset() bool  { return b.z80Reset }

func (m *Memory) z80Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.audioRAM[addr&0x1FFF]
	case addr <= 0x5FFF:
		return m.ym.ReadPort(uint8(addr & 3))
	case addr >= 0x7F00 && addr <= 0x7F1F:
		return m.vdpReadByte(0xC00000 | uint32(addr&0x1F))
	case addr >= 0x8000:
		a, ok := m.bankAddress(addr)
		if !ok {
			return 0xFF
		}
		return mainBus{m}.ReadByte(a)
	}
	return 0xFF
}

func (m *Memory) z80Write(addr uint16, val uint8) {
	switch {
	case addr <= 0x3FFF:
		m.audioRAM[addr&0x1FFF] = val
	case addr <= 0x5FFF:
		m.ym.WritePort(uint8(addr&3), val)
	case addr <= 0x60FF:
		m.shiftBank(val)
	case addr >= 0x7F00 && addr <= 0x7F1F:
		m.vdpWriteByte(0xC00000|uint32(addr&0x1F), val)
	case addr >= 0x8000:
		a, ok := m.bankAddress(addr)
		if !ok {
			return
		}
		mainBus{m}.WriteByte(a, val)
	}
}

// shiftBank shifts bit 0 of val into the bank register, from the top.
func (m *Memory) shiftBank(val uint8) {
	m.z80Bank = m.z80Bank>>1 | uint16(val&1)<<(z80BankBits-1)
}

// bankAddress returns the 68000 address seen through the bank window at
// $8000-$FFFF. Accesses reaching back to the Z80 area lock the bus.
func (m *Memory) bankAddress(addr uint16) (uint32, bool) {
	a := uint32(m.z80Bank)<<15 | uint32(addr&0x7FFF)
	if a >= 0xA00000 && a <= 0xA0FFFF {
		if !m.lockup {
			log.ModMem.ErrorZ("z80 accessed its own bus through the bank window").
				Hex16("addr", addr).
				Hex32("main", a).
				End()
		}
		m.lockup = true
		return 0, false
	}
	return a, true
}
