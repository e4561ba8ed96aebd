package smsgg

import (
	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/hwio"
)

const (
	bankSize    = 0x4000
	cartRAMSize = 0x8000
	ramSize     = 0x2000

	// Some dumps carry the header of the copier they were made with.
	copierHeaderSize = 512
)

// Mapper registers, mirrored at the top of system RAM.
const (
	regRAMControl = iota // $FFFC
	regSlot0             // $FFFD
	regSlot1             // $FFFE
	regSlot2             // $FFFF
)

// memory is the Z80 address space with the Sega mapper: three 16KB ROM
// slots, the first 1KB of which is fixed to bank 0, optional cartridge RAM
// over slot 2 and 8KB of system RAM mirrored up to $FFFF.
type memory struct {
	bus *hwio.Table

	rom     []byte // padded to a power of 2 number of banks
	ram     []byte
	cartRAM []byte
	mapper  [4]uint8

	ramUsed bool // cartridge RAM has been mapped at least once
	dirty   bool
}

func newMemory(rom, save []byte) (*memory, error) {
	if len(rom)%bankSize == copierHeaderSize {
		rom = rom[copierHeaderSize:]
	}
	if len(rom) == 0 {
		return nil, errors.New("empty rom")
	}
	if len(save) > cartRAMSize {
		return nil, errors.Errorf("save is %d bytes, more than the %d bytes of cartridge RAM", len(save), cartRAMSize)
	}

	banks := 1
	for banks*bankSize < len(rom) {
		banks <<= 1
	}
	padded := make([]byte, banks*bankSize)
	copy(padded, rom)

	m := &memory{
		bus:     hwio.NewTable("z80"),
		rom:     padded,
		ram:     make([]byte, ramSize),
		cartRAM: make([]byte, cartRAMSize),
		mapper:  [4]uint8{0, 0, 1, 2},
		ramUsed: save != nil,
	}
	copy(m.cartRAM, save)
	m.mapAll()
	return m, nil
}

func (m *memory) bank(n uint8) []byte {
	n &= uint8(len(m.rom)/bankSize - 1)
	off := int(n) * bankSize
	return m.rom[off : off+bankSize]
}

// mapAll rebuilds the whole address space from the mapper registers.
func (m *memory) mapAll() {
	m.bus.Reset()
	m.bus.MapMemorySlice(0x0000, 0x03FF, m.rom[:0x400], true)
	m.mapSlot(0)
	m.mapSlot(1)
	m.mapSlot(2)
	m.bus.MapMem(0xC000, &hwio.Mem{
		Name:    "ram",
		Data:    m.ram,
		VSize:   0x4000,
		WriteCb: m.writeRAM,
	})
}

var slotRanges = [3][2]uint32{
	{0x0400, 0x3FFF},
	{0x4000, 0x7FFF},
	{0x8000, 0xBFFF},
}

func (m *memory) mapSlot(slot int) {
	begin, end := slotRanges[slot][0], slotRanges[slot][1]
	m.bus.Unmap(begin, end)

	if slot == 2 && m.mapper[regRAMControl]&0x08 != 0 {
		m.ramUsed = true
		off := 0
		if m.mapper[regRAMControl]&0x04 != 0 {
			off = bankSize
		}
		m.bus.MapMem(begin, &hwio.Mem{
			Name:    "cart ram",
			Data:    m.cartRAM[off : off+bankSize],
			VSize:   bankSize,
			WriteCb: func(uint32, uint8) { m.dirty = true },
		})
		return
	}

	// Slot 0 skips the fixed first KB: map the rest of a whole bank so
	// that the absolute address still masks into it.
	m.bus.MapMem(begin, &hwio.Mem{
		Name:  "rom",
		Data:  m.bank(m.mapper[regSlot0+slot]),
		VSize: int(end - begin + 1),
		Flags: hwio.MemFlag8ReadOnly | hwio.MemFlagNoROLog,
	})
}

func (m *memory) writeRAM(addr uint32, val uint8) {
	if addr < 0xFFFC {
		return
	}
	reg := int(addr - 0xFFFC)
	m.mapper[reg] = val

	log.ModMem.DebugZ("mapper write").
		Hex16("reg", uint16(addr)).
		Hex8("val", val).
		End()

	switch reg {
	case regRAMControl:
		m.mapSlot(2)
	default:
		m.mapSlot(reg - regSlot0)
	}
}

// persistent reports whether cartridge RAM should be saved.
func (m *memory) persistent() bool { return m.ramUsed }

func (m *memory) read(addr uint16) uint8       { return m.bus.Read8(uint32(addr), false) }
func (m *memory) write(addr uint16, val uint8) { m.bus.Write8(uint32(addr), val) }
