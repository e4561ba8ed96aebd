package genesis

import (
	"encoding/binary"
	"strings"

	"github.com/go-faster/errors"

	"retrocore/emu/log"
)

const (
	minROMSize = 0x200

	defaultRAMStart = 0x200000
	defaultRAMEnd   = 0x20FFFF

	maxRAMSize = 1 << 20
)

var ErrROMTooSmall = errors.New("rom too small for a cartridge header")

type Region uint8

const (
	Americas Region = iota
	Japan
	Europe
)

func (r Region) String() string {
	switch r {
	case Americas:
		return "Americas"
	case Japan:
		return "Japan"
	case Europe:
		return "Europe"
	}
	return "Region(?)"
}

// DetectRegion returns the region the cartridge header declares. A letter
// takes precedence; otherwise the first character is read as a hex digit of
// region bits (2: Americas, 0: Japan, 3: Europe). ok is false when no region
// could be found.
func DetectRegion(rom []byte) (region Region, ok bool) {
	if len(rom) < 0x1F3 {
		return 0, false
	}
	field := rom[0x1F0:0x1F3]

	switch {
	case strings.ContainsRune(string(field), 'U'):
		return Americas, true
	case strings.ContainsRune(string(field), 'J'):
		return Japan, true
	case strings.ContainsRune(string(field), 'E'):
		return Europe, true
	}

	var bits uint8
	switch c := field[0]; {
	case c >= '0' && c <= '9':
		bits = c - '0'
	case c >= 'A' && c <= 'F':
		bits = c - 'A' + 10
	case c >= 'a' && c <= 'f':
		bits = c - 'a' + 10
	default:
		return 0, false
	}
	switch {
	case bits&0x4 != 0:
		return Americas, true
	case bits&0x1 != 0:
		return Japan, true
	case bits&0x8 != 0:
		return Europe, true
	}
	return 0, false
}

// Title returns the cartridge title, domestic for Japanese cartridges and
// overseas for the others, with surrounding spaces trimmed and inner runs of
// whitespace collapsed.
func Title(rom []byte, region Region) string {
	addr := 0x150
	if region == Japan {
		addr = 0x120
	}
	if len(rom) < addr+48 {
		return ""
	}

	raw := make([]rune, 0, 48)
	for _, c := range rom[addr : addr+48] {
		// Header text is Latin-1.
		raw = append(raw, rune(c))
	}
	return strings.Join(strings.Fields(string(raw)), " ")
}

type ramAddressing uint8

const (
	ramWord ramAddressing = iota
	ramOddBytes
	ramEvenBytes
)

// Cartridge is the ROM plus optional external RAM. The RAM is mapped
// according to the "RA" header at $1B0, or at $200000-$20FFFF when the
// header doesn't declare any but save data was provided.
type Cartridge struct {
	rom []byte
	ram []byte

	ramStart, ramEnd uint32
	addressing       ramAddressing
	persistent       bool
	dirty            bool
}

func NewCartridge(rom, initialRAM []byte) (*Cartridge, error) {
	if len(rom) < minROMSize {
		return nil, errors.Wrapf(ErrROMTooSmall, "%d bytes", len(rom))
	}

	c := &Cartridge{rom: rom}
	switch hdr := rom[0x1B0:0x1BC]; {
	case hdr[0] == 'R' && hdr[1] == 'A':
		c.ramStart = binary.BigEndian.Uint32(hdr[4:8]) & 0xFFFFFF
		c.ramEnd = binary.BigEndian.Uint32(hdr[8:12]) & 0xFFFFFF
		c.persistent = hdr[2]&0x40 != 0
		switch hdr[2] >> 3 & 3 {
		case 2:
			c.addressing = ramEvenBytes
		case 3:
			c.addressing = ramOddBytes
		}
		if c.ramEnd < c.ramStart {
			log.ModCart.WarnZ("invalid external RAM range").
				Hex32("start", c.ramStart).
				Hex32("end", c.ramEnd).
				End()
			c.ramEnd = c.ramStart
		}
		size := int(c.ramEnd-c.ramStart) + 1
		if c.addressing != ramWord {
			size = size/2 + 1
		}
		c.ram = make([]byte, min(size, maxRAMSize))

	case initialRAM != nil:
		c.ramStart, c.ramEnd = defaultRAMStart, defaultRAMEnd
		c.persistent = true
		c.ram = make([]byte, defaultRAMEnd-defaultRAMStart+1)
	}

	if initialRAM != nil && c.ram != nil {
		if len(initialRAM) != len(c.ram) {
			log.ModCart.WarnZ("save size mismatch").
				Int("save", len(initialRAM)).
				Int("ram", len(c.ram)).
				End()
		}
		copy(c.ram, initialRAM)
	}

	if c.ram != nil {
		log.ModCart.InfoZ("external RAM").
			Hex32("start", c.ramStart).
			Hex32("end", c.ramEnd).
			Int("size", len(c.ram)).
			Bool("persistent", c.persistent).
			End()
	}
	return c, nil
}

// ramOffset maps a 68000 address to an external RAM offset.
func (c *Cartridge) ramOffset(addr uint32) (int, bool) {
	if c.ram == nil || addr < c.ramStart || addr > c.ramEnd {
		return 0, false
	}
	off := int(addr - c.ramStart)
	switch c.addressing {
	case ramOddBytes:
		if addr&1 == 0 {
			return 0, false
		}
		off >>= 1
	case ramEvenBytes:
		if addr&1 != 0 {
			return 0, false
		}
		off >>= 1
	}
	if off >= len(c.ram) {
		return 0, false
	}
	return off, true
}

// ReadByte reads the cartridge address space. External RAM overrides ROM,
// reads past the end of the ROM return 0xFF.
func (c *Cartridge) ReadByte(addr uint32) uint8 {
	if off, ok := c.ramOffset(addr); ok {
		return c.ram[off]
	}
	if int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	return 0xFF
}

func (c *Cartridge) ReadWord(addr uint32) uint16 {
	return uint16(c.ReadByte(addr))<<8 | uint16(c.ReadByte(addr|1))
}

// WriteByte writes to external RAM, writes to ROM are dropped.
func (c *Cartridge) WriteByte(addr uint32, val uint8) {
	off, ok := c.ramOffset(addr)
	if !ok {
		return
	}
	if c.ram[off] != val {
		c.ram[off] = val
		c.dirty = true
	}
}

func (c *Cartridge) WriteWord(addr uint32, val uint16) {
	c.WriteByte(addr, uint8(val>>8))
	c.WriteByte(addr|1, uint8(val))
}

func (c *Cartridge) ExternalRAM() []byte { return c.ram }
func (c *Cartridge) Persistent() bool    { return c.persistent && len(c.ram) > 0 }
func (c *Cartridge) Dirty() bool         { return c.dirty }
func (c *Cartridge) ClearDirty()         { c.dirty = false }
func (c *Cartridge) ROMSize() int        { return len(c.rom) }

// TakeROM moves the ROM bytes out of the cartridge.
func (c *Cartridge) TakeROM() []byte {
	rom := c.rom
	c.rom = nil
	return rom
}

// TakeROMFrom moves the ROM bytes of other into c.
func (c *Cartridge) TakeROMFrom(other *Cartridge) {
	c.rom = other.TakeROM()
}

// TakeExternalRAMIfPersistent moves the external RAM out of the cartridge
// if it's battery-backed. It returns nil otherwise.
func (c *Cartridge) TakeExternalRAMIfPersistent() []byte {
	if !c.Persistent() {
		return nil
	}
	ram := c.ram
	c.ram = nil
	return ram
}
