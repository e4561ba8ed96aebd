package gb

import (
	"strings"

	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/hwio"
	"retrocore/hw/snapshot"
)

const headerSize = 0x150

var (
	ErrROMTooSmall     = errors.New("rom too small for a cartridge header")
	ErrUnsupportedCart = errors.New("unsupported cartridge type")
)

type MBC uint8

const (
	ROMOnly MBC = iota
	MBC1
)

func (m MBC) String() string {
	if m == MBC1 {
		return "MBC1"
	}
	return "ROM"
}

// Header holds the cartridge header fields we care about.
type Header struct {
	Title    string
	Type     uint8
	MBC      MBC
	RAMSize  int
	Battery  bool
	ROMBanks int
}

var ramSizes = [...]int{0, 0x800, 0x2000, 0x8000, 0x20000, 0x10000}

// ParseHeader decodes the header of a Game Boy ROM.
func ParseHeader(rom []byte) (Header, error) {
	if len(rom) < headerSize {
		return Header{}, errors.Wrapf(ErrROMTooSmall, "%d bytes", len(rom))
	}

	hdr := Header{
		Title:    cartTitle(rom[0x134:0x144]),
		Type:     rom[0x147],
		ROMBanks: max(2, len(rom)/0x4000),
	}
	if code := rom[0x149]; int(code) < len(ramSizes) {
		hdr.RAMSize = ramSizes[code]
	}

	switch hdr.Type {
	case 0x00:
		hdr.MBC = ROMOnly
	case 0x01, 0x02:
		hdr.MBC = MBC1
	case 0x03:
		hdr.MBC = MBC1
		hdr.Battery = true
	default:
		return hdr, errors.Wrapf(ErrUnsupportedCart, "type %02Xh", hdr.Type)
	}
	if hdr.MBC == ROMOnly || hdr.Type == 0x01 {
		hdr.RAMSize = 0
	}
	return hdr, nil
}

// cartTitle returns the printable part of the title field.
func cartTitle(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c == 0 {
			break
		}
		if c < 0x20 || c > 0x7E {
			continue
		}
		sb.WriteByte(c)
	}
	return strings.TrimSpace(sb.String())
}

// Cartridge is a ROM-only or MBC1 cartridge, with optional battery-backed RAM.
type Cartridge struct {
	Header Header

	rom []byte
	ram []byte

	ramEnabled bool
	romBank    uint8 // 5 bits
	ramBank    uint8 // 2 bits, also ROM bank bits 5-6
	mode       uint8
	dirty      bool

	ROM hwio.Device `hwio:"offset=0x0000,size=0x8000,rcb,pcb=ReadROM,wcb"`
	RAM hwio.Device `hwio:"offset=0xA000,size=0x2000,rcb,pcb=ReadRAM,wcb"`
}

// NewCartridge creates a cartridge from ROM bytes and optional save bytes.
// Save bytes are ignored for cartridges without battery.
func NewCartridge(rom, save []byte) (*Cartridge, error) {
	hdr, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}

	cart := &Cartridge{
		Header:  hdr,
		rom:     rom,
		ram:     make([]byte, hdr.RAMSize),
		romBank: 1,
	}
	if hdr.Battery && len(save) > 0 {
		if len(save) != hdr.RAMSize {
			log.ModCart.WarnZ("save size mismatch").
				Int("save", len(save)).
				Int("ram", hdr.RAMSize).
				End()
		}
		copy(cart.ram, save)
	}
	hwio.MustInitRegs(cart)

	log.ModCart.InfoZ("loaded cartridge").
		String("title", hdr.Title).
		Stringer("mbc", hdr.MBC).
		Int("rom", len(rom)).
		Int("ram", hdr.RAMSize).
		Bool("battery", hdr.Battery).
		End()
	return cart, nil
}

func (c *Cartridge) romBankAt(addr uint32) int {
	var bank int
	switch {
	case addr < 0x4000 && c.mode == 1:
		bank = int(c.ramBank) << 5
	case addr >= 0x4000:
		bank = int(c.ramBank)<<5 | int(c.romBank)
	}
	return bank % c.Header.ROMBanks
}

func (c *Cartridge) ReadROM(addr uint32) uint8 {
	if c.Header.MBC == ROMOnly {
		if int(addr) < len(c.rom) {
			return c.rom[addr]
		}
		return 0xFF
	}
	off := c.romBankAt(addr)*0x4000 + int(addr&0x3FFF)
	if off < len(c.rom) {
		return c.rom[off]
	}
	return 0xFF
}

func (c *Cartridge) WriteROM(addr uint32, val uint8) {
	if c.Header.MBC != MBC1 {
		return
	}
	switch {
	case addr < 0x2000:
		c.ramEnabled = val&0x0F == 0x0A
	case addr < 0x4000:
		c.romBank = val & 0x1F
		if c.romBank == 0 {
			c.romBank = 1
		}
	case addr < 0x6000:
		c.ramBank = val & 0x03
	default:
		c.mode = val & 0x01
	}
}

func (c *Cartridge) ramOffset(addr uint32) (int, bool) {
	if !c.ramEnabled || len(c.ram) == 0 {
		return 0, false
	}
	off := int(addr & 0x1FFF)
	if c.mode == 1 {
		off += int(c.ramBank) * 0x2000
	}
	return off % len(c.ram), true
}

func (c *Cartridge) ReadRAM(addr uint32) uint8 {
	off, ok := c.ramOffset(addr)
	if !ok {
		return 0xFF
	}
	return c.ram[off]
}

func (c *Cartridge) WriteRAM(addr uint32, val uint8) {
	off, ok := c.ramOffset(addr)
	if !ok {
		return
	}
	c.ram[off] = val
	c.dirty = true
}

// Persistent reports whether the cartridge RAM is battery-backed.
func (c *Cartridge) Persistent() bool { return c.Header.Battery && len(c.ram) > 0 }

// ExternalRAM returns the cartridge RAM, nil if there's none.
func (c *Cartridge) ExternalRAM() []byte { return c.ram }

// Dirty reports whether the RAM has been written since the last ClearDirty.
func (c *Cartridge) Dirty() bool { return c.dirty }
func (c *Cartridge) ClearDirty() { c.dirty = false }

// TakeROM hands over the ROM bytes, leaving the cartridge empty.
func (c *Cartridge) TakeROM() []byte {
	rom := c.rom
	c.rom = nil
	return rom
}

func (c *Cartridge) saveState() snapshot.GBCart {
	return snapshot.GBCart{
		RAM:        append([]byte(nil), c.ram...),
		RAMEnabled: c.ramEnabled,
		ROMBank:    c.romBank,
		RAMBank:    c.ramBank,
		Mode:       c.mode,
		Dirty:      c.dirty,
	}
}

func (c *Cartridge) setState(state *snapshot.GBCart) error {
	if len(state.RAM) != len(c.ram) {
		return errors.Errorf("cartridge RAM size mismatch: %d bytes, want %d", len(state.RAM), len(c.ram))
	}
	copy(c.ram, state.RAM)
	c.ramEnabled = state.RAMEnabled
	c.romBank = state.ROMBank
	c.ramBank = state.RAMBank
	c.mode = state.Mode
	c.dirty = state.Dirty
	return nil
}
