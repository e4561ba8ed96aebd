package emu

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
)

// genesisROM returns a ROM whose program writes an increasing counter to
// main RAM in a loop.
func genesisROM() []byte {
	rom := make([]byte, 0x1000)
	binary.BigEndian.PutUint32(rom[0:], 0x00FFFE00)
	binary.BigEndian.PutUint32(rom[4:], 0x200)
	for i := 0x100; i < 0x1F0; i++ {
		rom[i] = ' '
	}
	copy(rom[0x100:], "SEGA GENESIS")
	copy(rom[0x150:], "EMU TEST")
	copy(rom[0x1F0:], "U  ")

	prog := []uint16{
		0x5279, 0x00FF, 0x0000, // addq.w #1, ($FF0000).l
		0x60F8,                 // bra.s -8
	}
	for i, w := range prog {
		binary.BigEndian.PutUint16(rom[0x200+2*i:], w)
	}
	return rom
}

// gbROM returns an MBC1+RAM+battery ROM writing $42 to cartridge RAM.
func gbROM() []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x134:], "SAVE TEST")
	rom[0x147] = 0x03
	rom[0x149] = 0x02
	copy(rom[0x100:], []byte{
		0x3E, 0x0A,       // ld a, $0A
		0xEA, 0x00, 0x00, // ld ($0000), a
		0x3E, 0x42,       // ld a, $42
		0xEA, 0x00, 0xA0, // ld ($A000), a
		0x18, 0xFE,       // jr -2
	})
	return rom
}

// smsROM returns a Master System ROM enabling cartridge RAM and writing $42
// to it.
func smsROM() []byte {
	rom := make([]byte, 0x8000)
	copy(rom, []byte{
		0x3E, 0x08,       // ld a, $08
		0x32, 0xFC, 0xFF, // ld ($FFFC), a
		0x3E, 0x42,       // ld a, $42
		0x32, 0x00, 0x80, // ld ($8000), a
		0x18, 0xFE,       // jr -2
	})
	return rom
}

type countingRenderer struct {
	frames int
	size   frontend.FrameSize
	err    error
}

func (r *countingRenderer) RenderFrame(_ []frontend.Color, size frontend.FrameSize, _ *frontend.PixelAspectRatio) error {
	r.frames++
	r.size = size
	return r.err
}

func TestParseSystem(t *testing.T) {
	tests := []struct {
		name    string
		want    System
		wantErr bool
	}{
		{"", Auto, false},
		{"auto", Auto, false},
		{"Genesis", Genesis, false},
		{"md", Genesis, false},
		{"gb", GameBoy, false},
		{"SMS", MasterSystem, false},
		{"mastersystem", MasterSystem, false},
		{"gg", GameGear, false},
		{"gamegear", GameGear, false},
		{"nes", Auto, true},
	}
	for _, tt := range tests {
		got, err := ParseSystem(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSystem(%q) = %v, %v, want %v, error=%t", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestSystemFromPath(t *testing.T) {
	tests := []struct {
		path string
		want System
	}{
		{"/roms/sonic.md", Genesis},
		{"sonic.GEN", Genesis},
		{"sonic.bin", Genesis},
		{"tetris.gb", GameBoy},
		{"alexkidd.sms", MasterSystem},
		{"sonic.GG", GameGear},
	}
	for _, tt := range tests {
		got, err := SystemFromPath(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("SystemFromPath(%q) = %v, %v, want %v", tt.path, got, err, tt.want)
		}
	}

	if _, err := SystemFromPath("game.nes"); !errors.Is(err, ErrUnknownSystem) {
		t.Errorf("SystemFromPath(game.nes) error = %v, want ErrUnknownSystem", err)
	}
}

func TestRunFrames(t *testing.T) {
	r := &countingRenderer{}
	e, err := New(Genesis, genesisROM(), nil, DefaultConfig(), Options{Renderer: r})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := e.Title(); got != "EMU TEST" {
		t.Errorf("Title() = %q, want EMU TEST", got)
	}

	if err := e.RunFrames(context.Background(), 3); err != nil {
		t.Fatalf("RunFrames: %v", err)
	}
	if e.Frames() != 3 || r.frames != 3 {
		t.Errorf("Frames() = %d, rendered %d, want 3", e.Frames(), r.frames)
	}
	if want := (frontend.FrameSize{Width: 256, Height: 224}); r.size != want {
		t.Errorf("frame size = %+v, want %+v", r.size, want)
	}
}

func TestRunFramesSMSGG(t *testing.T) {
	tests := []struct {
		sys  System
		size frontend.FrameSize
	}{
		{MasterSystem, frontend.FrameSize{Width: 256, Height: 192}},
		{GameGear, frontend.FrameSize{Width: 160, Height: 144}},
	}
	for _, tt := range tests {
		t.Run(tt.sys.String(), func(t *testing.T) {
			r := &countingRenderer{}
			e, err := New(tt.sys, smsROM(), nil, DefaultConfig(), Options{Renderer: r})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := e.RunFrames(context.Background(), 2); err != nil {
				t.Fatalf("RunFrames: %v", err)
			}
			if e.Frames() != 2 || r.frames != 2 {
				t.Errorf("Frames() = %d, rendered %d, want 2", e.Frames(), r.frames)
			}
			if r.size != tt.size {
				t.Errorf("frame size = %+v, want %+v", r.size, tt.size)
			}
			if got := e.Title(); got != "unknown cartridge" {
				t.Errorf("Title() = %q, want unknown cartridge", got)
			}
		})
	}
}

func TestRunFramesLogContext(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	rom := gbROM()
	rom[0x100] = 0xD3 // invalid opcode
	e, err := New(GameBoy, rom, nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.RunFrames(context.Background(), 5); err != nil {
		t.Fatalf("RunFrames: %v", err)
	}
	if e.Frames() != 1 {
		t.Errorf("Frames() = %d, want 1", e.Frames())
	}

	out := buf.String()
	for _, want := range []string{"invalid opcode", "frame=0", "console locked", "frame=1", "pc="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q doesn't contain %q", out, want)
		}
	}

	buf.Reset()
	log.ModEmu.WarnZ("after run").End()
	if strings.Contains(buf.String(), "frame=") {
		t.Errorf("frame context still registered after RunFrames: %q", buf.String())
	}
}

func TestRunFramesErrors(t *testing.T) {
	t.Run("collaborator", func(t *testing.T) {
		errRender := errors.New("no display")
		e, err := New(Genesis, genesisROM(), nil, DefaultConfig(), Options{Renderer: &countingRenderer{err: errRender}})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		err = e.RunFrames(context.Background(), 1)
		if !errors.Is(err, errRender) {
			t.Fatalf("RunFrames error = %v, want %v", err, errRender)
		}
		var cerr *frontend.Error
		if !errors.As(err, &cerr) || cerr.Kind != frontend.RenderError {
			t.Errorf("RunFrames error = %v, want a render error", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		e, err := New(Genesis, genesisROM(), nil, DefaultConfig(), Options{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := e.RunFrames(ctx, 0); !errors.Is(err, context.Canceled) {
			t.Errorf("RunFrames error = %v, want context.Canceled", err)
		}
	})
}

func TestNewErrors(t *testing.T) {
	if _, err := New(Auto, genesisROM(), nil, DefaultConfig(), Options{}); !errors.Is(err, ErrUnknownSystem) {
		t.Errorf("New(Auto) error = %v, want ErrUnknownSystem", err)
	}

	cfg := DefaultConfig()
	cfg.Genesis.AspectRatio = "wide"
	if _, err := New(Genesis, genesisROM(), nil, cfg, Options{}); err == nil {
		t.Errorf("New with invalid aspect ratio succeeded")
	}

	if _, err := New(Genesis, make([]byte, 0x10), nil, DefaultConfig(), Options{}); err == nil {
		t.Errorf("New with a truncated ROM succeeded")
	}

	cfg = DefaultConfig()
	cfg.SMSGG.Timing = "secam"
	if _, err := New(MasterSystem, smsROM(), nil, cfg, Options{}); err == nil {
		t.Errorf("New with invalid sms/gg timing succeeded")
	}
	if _, err := New(GameGear, nil, nil, DefaultConfig(), Options{}); err == nil {
		t.Errorf("New with an empty ROM succeeded")
	}
}

func TestSnapshot(t *testing.T) {
	e, err := New(Genesis, genesisROM(), nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := e.RunFrames(ctx, 2); err != nil {
		t.Fatal(err)
	}
	saved, err := e.SaveSnapshot()
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := e.RunFrames(ctx, 2); err != nil {
		t.Fatal(err)
	}
	want, err := e.SaveSnapshot()
	if err != nil {
		t.Fatal(err)
	}

	// Restore into a fresh console and run the same number of frames.
	other, err := New(Genesis, genesisROM(), nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := other.LoadSnapshot(saved); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if err := other.RunFrames(ctx, 2); err != nil {
		t.Fatal(err)
	}
	got, err := other.SaveSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("restored console diverged from the original")
	}
}

func TestSnapshotSMSGG(t *testing.T) {
	ctx := context.Background()
	e, err := New(MasterSystem, smsROM(), nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.RunFrames(ctx, 1); err != nil {
		t.Fatal(err)
	}
	saved, err := e.SaveSnapshot()
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := e.RunFrames(ctx, 1); err != nil {
		t.Fatal(err)
	}
	want, err := e.SaveSnapshot()
	if err != nil {
		t.Fatal(err)
	}

	other, err := New(MasterSystem, smsROM(), nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := other.LoadSnapshot(saved); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if err := other.RunFrames(ctx, 1); err != nil {
		t.Fatal(err)
	}
	got, err := other.SaveSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("restored console diverged from the original")
	}

	// Both consoles share the snapshot format, not the system name.
	gg, err := New(GameGear, smsROM(), nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := gg.LoadSnapshot(saved); err == nil {
		t.Errorf("loaded a Master System snapshot into a Game Gear")
	}
}

func TestSnapshotWrongSystem(t *testing.T) {
	g, err := New(GameBoy, gbROM(), nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf, err := g.SaveSnapshot()
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	md, err := New(Genesis, genesisROM(), nil, DefaultConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := md.LoadSnapshot(buf); err == nil {
		t.Errorf("loaded a Game Boy snapshot into a Genesis")
	}
	if err := md.LoadSnapshot([]byte("{not json")); err == nil {
		t.Errorf("loaded a corrupt snapshot")
	}
}

func TestLaunchPersistsSave(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "savetest.gb")
	if err := os.WriteFile(romPath, gbROM(), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.General.SaveDir = filepath.Join(dir, "saves")

	e, err := Launch(romPath, Auto, cfg, Options{})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if e.System != GameBoy {
		t.Errorf("System = %v, want gameboy", e.System)
	}
	if err := e.RunFrames(context.Background(), 2); err != nil {
		t.Fatalf("RunFrames: %v", err)
	}

	sf := NewSaveFile(cfg.SaveDir(), romPath)
	if want := filepath.Join(dir, "saves", "savetest.sav"); sf.Path() != want {
		t.Errorf("save path = %s, want %s", sf.Path(), want)
	}
	save, err := sf.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(save) != 0x2000 {
		t.Fatalf("save file is %d bytes, want 2000h", len(save))
	}
	if save[0] != 0x42 {
		t.Errorf("save[0] = %02X, want 42", save[0])
	}

	// The save is loaded back on the next launch.
	if _, err := Launch(romPath, GameBoy, cfg, Options{}); err != nil {
		t.Fatalf("second Launch: %v", err)
	}
}

func TestLaunchSMSPersistsSave(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "savetest.sms")
	if err := os.WriteFile(romPath, smsROM(), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.General.SaveDir = filepath.Join(dir, "saves")

	e, err := Launch(romPath, Auto, cfg, Options{})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if e.System != MasterSystem {
		t.Errorf("System = %v, want mastersystem", e.System)
	}
	if err := e.RunFrames(context.Background(), 1); err != nil {
		t.Fatalf("RunFrames: %v", err)
	}

	save, err := NewSaveFile(cfg.SaveDir(), romPath).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(save) != 0x8000 || save[0] != 0x42 {
		t.Errorf("save file is %d bytes, want 8000h starting with 42", len(save))
	}
}

func TestSaveFileMissing(t *testing.T) {
	sf := NewSaveFile(t.TempDir(), "nothing.md")
	save, err := sf.Load()
	if err != nil || save != nil {
		t.Errorf("Load() = %v, %v, want nil, nil", save, err)
	}
}
