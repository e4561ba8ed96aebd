package genesis

import (
	"encoding/binary"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/go-cmp/cmp"
)

func romWithRegion(field string) []byte {
	rom := make([]byte, minROMSize)
	copy(rom[0x1F0:0x1F3], field)
	return rom
}

func TestDetectRegion(t *testing.T) {
	tests := []struct {
		field  string
		want   Region
		wantOK bool
	}{
		{"JUE", Americas, true},
		{"EJ ", Japan, true},
		{"E  ", Europe, true},
		{"  U", Americas, true},
		{"4  ", Americas, true},
		{"1  ", Japan, true},
		{"8  ", Europe, true},
		{"5  ", Americas, true},
		{"9  ", Japan, true},
		{"A  ", Europe, true},
		{"f  ", Americas, true},
		{"d  ", Americas, true},
		{"2  ", 0, false},
		{"   ", 0, false},
		{"X  ", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := DetectRegion(romWithRegion(tt.field))
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("DetectRegion(%q) = %v, %t, want %v, %t", tt.field, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if _, ok := DetectRegion(make([]byte, 0x100)); ok {
		t.Errorf("region detected in a rom without header")
	}
}

func TestTitle(t *testing.T) {
	rom := make([]byte, minROMSize)
	for i := 0x120; i < 0x180; i++ {
		rom[i] = ' '
	}
	copy(rom[0x120:], "  DOMESTIC  NAME")
	copy(rom[0x150:], " SONIC   THE\tHEDGEHOG ")
	rom[0x170] = 0xE9 // é

	tests := []struct {
		region Region
		want   string
	}{
		{Americas, "SONIC THE HEDGEHOG é"},
		{Europe, "SONIC THE HEDGEHOG é"},
		{Japan, "DOMESTIC NAME"},
	}
	for _, tt := range tests {
		if got := Title(rom, tt.region); got != tt.want {
			t.Errorf("Title(%v) = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestNewCartridgeTooSmall(t *testing.T) {
	_, err := NewCartridge(make([]byte, minROMSize-1), nil)
	if !errors.Is(err, ErrROMTooSmall) {
		t.Fatalf("NewCartridge error = %v, want ErrROMTooSmall", err)
	}
}

// romWithSRAM returns a rom declaring external RAM in its header.
func romWithSRAM(flags uint8, start, end uint32) []byte {
	rom := make([]byte, 0x1000)
	for i := range rom {
		rom[i] = 0xEE
	}
	copy(rom[0x1B0:], "RA")
	rom[0x1B2] = flags
	rom[0x1B3] = 0x20
	binary.BigEndian.PutUint32(rom[0x1B4:], start)
	binary.BigEndian.PutUint32(rom[0x1B8:], end)
	return rom
}

func TestCartridgeHeaderRAM(t *testing.T) {
	t.Run("odd bytes", func(t *testing.T) {
		c, err := NewCartridge(romWithSRAM(0xF8, 0x200001, 0x203FFF), nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(c.ExternalRAM()) != 0x2000 {
			t.Fatalf("RAM size = %X, want 2000", len(c.ExternalRAM()))
		}
		if !c.Persistent() {
			t.Errorf("RAM not persistent")
		}

		c.WriteByte(0x200003, 0x42)
		if !c.Dirty() {
			t.Errorf("not dirty after write")
		}
		if got := c.ExternalRAM()[1]; got != 0x42 {
			t.Errorf("ram[1] = %02X, want 42", got)
		}
		if got := c.ReadWord(0x200002); got != 0xFF42 {
			t.Errorf("ReadWord(200002) = %04X, want FF42", got)
		}

		// Even addresses aren't connected.
		c.ClearDirty()
		c.WriteByte(0x200002, 0x11)
		if c.Dirty() {
			t.Errorf("dirty after write to unmapped even byte")
		}
	})

	t.Run("word", func(t *testing.T) {
		c, err := NewCartridge(romWithSRAM(0xA0, 0x200000, 0x2003FF), nil)
		if err != nil {
			t.Fatal(err)
		}
		if c.Persistent() {
			t.Errorf("RAM persistent without bit 6")
		}
		c.WriteWord(0x200010, 0xBEEF)
		if got := c.ReadWord(0x200010); got != 0xBEEF {
			t.Errorf("ReadWord = %04X, want BEEF", got)
		}
		// Writing the same value doesn't dirty the RAM.
		c.ClearDirty()
		c.WriteWord(0x200010, 0xBEEF)
		if c.Dirty() {
			t.Errorf("dirty after writing identical values")
		}
		// ROM past the RAM window.
		if got := c.ReadByte(0x000010); got != 0xEE {
			t.Errorf("ROM read = %02X, want EE", got)
		}
	})

	t.Run("initial content", func(t *testing.T) {
		save := make([]byte, 0x2000)
		save[5] = 0x55
		c, err := NewCartridge(romWithSRAM(0xF8, 0x200001, 0x203FFF), save)
		if err != nil {
			t.Fatal(err)
		}
		if got := c.ReadByte(0x20000B); got != 0x55 {
			t.Errorf("ReadByte(20000B) = %02X, want 55", got)
		}
		if c.Dirty() {
			t.Errorf("dirty after load")
		}
	})
}

func TestCartridgeDefaultRAM(t *testing.T) {
	rom := make([]byte, minROMSize)

	c, err := NewCartridge(rom, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Persistent() || c.ExternalRAM() != nil {
		t.Errorf("RAM present without header nor save")
	}
	if got := c.ReadByte(0x200000); got != 0xFF {
		t.Errorf("ReadByte(200000) = %02X, want FF", got)
	}

	c, err = NewCartridge(rom, []byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Persistent() {
		t.Errorf("RAM from save not persistent")
	}
	if got := c.ReadWord(0x200000); got != 0x0102 {
		t.Errorf("ReadWord(200000) = %04X, want 0102", got)
	}
	if got := len(c.ExternalRAM()); got != 0x10000 {
		t.Errorf("RAM size = %X, want 10000", got)
	}
}

func TestCartridgeTake(t *testing.T) {
	rom := romWithSRAM(0xF8, 0x200001, 0x203FFF)
	c, err := NewCartridge(rom, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.WriteByte(0x200001, 0x99)

	ram := c.TakeExternalRAMIfPersistent()
	if len(ram) != 0x2000 || ram[0] != 0x99 {
		t.Errorf("TakeExternalRAMIfPersistent returned %d bytes, ram[0]=%02X", len(ram), ram[0])
	}

	other, err := NewCartridge(make([]byte, minROMSize), nil)
	if err != nil {
		t.Fatal(err)
	}
	other.TakeROMFrom(c)
	if c.ROMSize() != 0 {
		t.Errorf("ROM still in source cartridge")
	}
	if diff := cmp.Diff(rom, other.rom); diff != "" {
		t.Errorf("moved ROM mismatch (-want +got):\n%s", diff)
	}

	volatile, err := NewCartridge(romWithSRAM(0xA0, 0x200000, 0x2003FF), nil)
	if err != nil {
		t.Fatal(err)
	}
	if ram := volatile.TakeExternalRAMIfPersistent(); ram != nil {
		t.Errorf("volatile RAM taken")
	}
}
