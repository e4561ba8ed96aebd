package smsgg

import (
	"bytes"
	"fmt"
)

// Header is the cartridge header, found at $7FF0, $3FF0 or $1FF0.
type Header struct {
	Product uint32 // 5 BCD digits
	Version uint8
	Code    uint8 // region code, the console and market it's made for
}

var headerMagic = []byte("TMR SEGA")

// ParseHeader looks for the cartridge header. ok is false when the ROM has
// none, which is common for Japanese Master System cartridges.
func ParseHeader(rom []byte) (h Header, ok bool) {
	for _, addr := range [...]int{0x7FF0, 0x3FF0, 0x1FF0} {
		if len(rom) < addr+16 || !bytes.Equal(rom[addr:addr+8], headerMagic) {
			continue
		}
		b := rom[addr:]
		return Header{
			Product: uint32(b[0xC]) | uint32(b[0xD])<<8 | uint32(b[0xE]>>4)<<16,
			Version: b[0xE] & 0x0F,
			Code:    b[0xF] >> 4,
		}, true
	}
	return Header{}, false
}

// Region is domestic for cartridges made for the Japanese market.
//
//	3: Master System, Japan
//	4: Master System, export
//	5: Game Gear, Japan
//	6: Game Gear, export
//	7: Game Gear, international
func (h Header) Region() Region {
	if h.Code == 3 || h.Code == 5 {
		return Domestic
	}
	return International
}

func (h Header) String() string {
	return fmt.Sprintf("product %X rev %d", h.Product, h.Version)
}
