package gb

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"retrocore/hw/frontend"
)

// makeROM returns a 32KB ROM with the given cartridge type and RAM size code,
// and prog copied at the entry point.
func makeROM(cartType, ramCode uint8, prog ...uint8) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x134:], "TEST ROM")
	rom[0x147] = cartType
	rom[0x149] = ramCode
	copy(rom[0x100:], prog)
	return rom
}

func newTestGB(tb testing.TB, rom []byte) *GameBoy {
	tb.Helper()

	gb, err := New(rom, nil, 48000)
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	return gb
}

type fakeRenderer struct {
	frames int
	size   frontend.FrameSize
	pixel  frontend.Color
	err    error
}

func (r *fakeRenderer) RenderFrame(frame []frontend.Color, size frontend.FrameSize, _ *frontend.PixelAspectRatio) error {
	r.frames++
	r.size = size
	r.pixel = frame[0]
	return r.err
}

type fakeAudio struct {
	samples int
	err     error
}

func (a *fakeAudio) PushSample(_, _ float64) error {
	a.samples++
	return a.err
}

type fakeSaves struct {
	saves [][]byte
	err   error
}

func (s *fakeSaves) PersistSave(ram []byte) error {
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, append([]byte(nil), ram...))
	return nil
}

type collaborators struct {
	renderer fakeRenderer
	audio    fakeAudio
	saves    fakeSaves
}

// runFrame ticks gb until a frame is rendered or a collaborator fails.
func (c *collaborators) runFrame(tb testing.TB, gb *GameBoy) error {
	tb.Helper()

	const maxTicks = dotsPerFrame / 4
	for range maxTicks {
		eff, err := gb.Tick(&c.renderer, &c.audio, &c.saves)
		if err != nil {
			return err
		}
		if eff == frontend.FrameRendered {
			return nil
		}
	}
	tb.Fatalf("no frame after %d ticks", maxTicks)
	return nil
}

var loop = []uint8{0x18, 0xFE} // JR -2

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		cartType uint8
		ramCode  uint8
		want     Header
	}{
		{"rom only", 0x00, 0x02, Header{Title: "TEST ROM", Type: 0x00, MBC: ROMOnly, ROMBanks: 2}},
		{"mbc1", 0x01, 0x02, Header{Title: "TEST ROM", Type: 0x01, MBC: MBC1, ROMBanks: 2}},
		{"mbc1 ram", 0x02, 0x02, Header{Title: "TEST ROM", Type: 0x02, MBC: MBC1, RAMSize: 0x2000, ROMBanks: 2}},
		{"mbc1 battery", 0x03, 0x03, Header{Title: "TEST ROM", Type: 0x03, MBC: MBC1, RAMSize: 0x8000, Battery: true, ROMBanks: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr, err := ParseHeader(makeROM(tt.cartType, tt.ramCode))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, hdr); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		_, err := ParseHeader(makeROM(0x05, 0))
		if !errors.Is(err, ErrUnsupportedCart) {
			t.Errorf("err = %v, want %v", err, ErrUnsupportedCart)
		}
	})
	t.Run("too small", func(t *testing.T) {
		_, err := ParseHeader(make([]byte, 0x100))
		if !errors.Is(err, ErrROMTooSmall) {
			t.Errorf("err = %v, want %v", err, ErrROMTooSmall)
		}
	})
}

func TestCartTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"TETRIS\x00\x00\x00\x00", "TETRIS"},
		{"  ZELDA  ", "ZELDA"},
		{"POK\x01EMON\x80", "POKEMON"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cartTitle([]byte(tt.raw)); got != tt.want {
			t.Errorf("cartTitle(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestMBC1Banking(t *testing.T) {
	rom := make([]byte, 8*0x4000)
	for bank := range 8 {
		rom[bank*0x4000] = uint8(bank)
	}
	rom[0x147] = 0x03
	rom[0x149] = 0x03

	cart, err := NewCartridge(rom, nil)
	if err != nil {
		t.Fatal(err)
	}

	wantROM := func(addr uint32, want uint8) {
		t.Helper()
		if got := cart.ReadROM(addr); got != want {
			t.Errorf("ReadROM(%04X) = %d, want %d", addr, got, want)
		}
	}

	wantROM(0x0000, 0)
	wantROM(0x4000, 1)
	cart.WriteROM(0x2000, 3)
	wantROM(0x4000, 3)
	cart.WriteROM(0x2000, 0)
	wantROM(0x4000, 1)
	cart.WriteROM(0x2000, 9) // wraps to the 8 banks
	wantROM(0x4000, 1)

	// RAM is disabled at power on.
	cart.WriteRAM(0xA000, 0x42)
	if got := cart.ReadRAM(0xA000); got != 0xFF {
		t.Errorf("disabled RAM read = %02X, want FF", got)
	}
	if cart.Dirty() {
		t.Errorf("write to disabled RAM made it dirty")
	}

	cart.WriteROM(0x0000, 0x0A)
	cart.WriteRAM(0xA000, 0x42)
	if got := cart.ReadRAM(0xA000); got != 0x42 {
		t.Errorf("RAM read = %02X, want 42", got)
	}
	if !cart.Dirty() {
		t.Errorf("RAM write didn't set dirty")
	}

	// In mode 1, the 2-bit register selects the RAM bank.
	cart.WriteROM(0x6000, 1)
	cart.WriteROM(0x4000, 2)
	cart.WriteRAM(0xA001, 0x99)
	if got := cart.ExternalRAM()[2*0x2000+1]; got != 0x99 {
		t.Errorf("RAM bank 2 = %02X, want 99", got)
	}
}

func TestTickRendersFrame(t *testing.T) {
	gb := newTestGB(t, makeROM(0x00, 0, loop...))

	var c collaborators
	if err := c.runFrame(t, gb); err != nil {
		t.Fatal(err)
	}
	if c.renderer.frames != 1 {
		t.Errorf("rendered %d frames, want 1", c.renderer.frames)
	}
	if c.renderer.size != FrameSize {
		t.Errorf("frame size = %+v, want %+v", c.renderer.size, FrameSize)
	}
	if c.renderer.pixel != shades[0] {
		t.Errorf("pixel = %+v, want %+v", c.renderer.pixel, shades[0])
	}
	if c.audio.samples == 0 {
		t.Errorf("no audio samples pushed")
	}
	if len(c.saves.saves) != 0 {
		t.Errorf("ROM only cartridge persisted %d saves", len(c.saves.saves))
	}
	if got := gb.IF.Value & 0x01; got == 0 {
		t.Errorf("VBlank interrupt not requested")
	}
}

func TestTickCollaboratorErrors(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(c *collaborators)
		kind  frontend.ErrorKind
	}{
		{"render", func(c *collaborators) { c.renderer.err = errBoom }, frontend.RenderError},
		{"audio", func(c *collaborators) { c.audio.err = errBoom }, frontend.AudioError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gb := newTestGB(t, makeROM(0x00, 0, loop...))

			var c collaborators
			tt.setup(&c)
			err := c.runFrame(t, gb)

			var gberr *Error
			if !errors.As(err, &gberr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if gberr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", gberr.Kind, tt.kind)
			}
			if !errors.Is(err, errBoom) {
				t.Errorf("err doesn't wrap the collaborator error")
			}
		})
	}
}

func TestSavePersistedOnce(t *testing.T) {
	prog := []uint8{
		0x3E, 0x0A, // LD A,$0A
		0xEA, 0x00, 0x00, // LD ($0000),A
		0x3E, 0x42, // LD A,$42
		0xEA, 0x00, 0xA0, // LD ($A000),A
		0x18, 0xFE, // JR -2
	}
	gb := newTestGB(t, makeROM(0x03, 0x02, prog...))

	var c collaborators
	c.saves.err = errors.New("disk full")

	err := c.runFrame(t, gb)
	var gberr *Error
	if !errors.As(err, &gberr) || gberr.Kind != frontend.SaveError {
		t.Fatalf("err = %v, want a save error", err)
	}
	if !gb.Cart.Dirty() {
		t.Fatalf("dirty flag cleared after a failed save")
	}

	c.saves.err = nil
	for range 3 {
		if err := c.runFrame(t, gb); err != nil {
			t.Fatal(err)
		}
	}
	if len(c.saves.saves) != 1 {
		t.Fatalf("persisted %d saves, want 1", len(c.saves.saves))
	}
	if got := c.saves.saves[0]; len(got) != 0x2000 || got[0] != 0x42 {
		t.Errorf("save = %d bytes, first %02X", len(got), got[0])
	}
}

func TestTimerInterrupt(t *testing.T) {
	rom := makeROM(0x00, 0,
		0x3E, 0x05, // LD A,$05
		0xE0, 0x07, // LDH (TAC),A
		0x3E, 0x04, // LD A,$04
		0xE0, 0xFF, // LDH (IE),A
		0xFB, // EI
		0x76, // HALT
		0x18, 0xFE,
	)
	copy(rom[0x50:], []uint8{
		0x3E, 0x99, // LD A,$99
		0x18, 0xFE,
	})
	gb := newTestGB(t, rom)

	var c collaborators
	for range 2000 {
		if _, err := gb.Tick(&c.renderer, &c.audio, &c.saves); err != nil {
			t.Fatal(err)
		}
	}
	if gb.CPU.Regs.A != 0x99 {
		t.Errorf("timer interrupt handler not executed, A = %02X", gb.CPU.Regs.A)
	}
	if gb.CPU.Regs.SP != 0xFFFC {
		t.Errorf("SP = %04X, want FFFC", gb.CPU.Regs.SP)
	}
}

func TestTimerRegisters(t *testing.T) {
	gb := newTestGB(t, makeROM(0x00, 0))

	gb.Write(0xFF06, 0x80) // TMA
	gb.Write(0xFF05, 0xFE) // TIMA
	gb.Write(0xFF07, 0x05) // 262144Hz
	for range 20 {
		gb.Idle()
	}
	if gb.IF.Value&0x04 == 0 {
		t.Errorf("timer interrupt not requested")
	}
	if got := gb.Peek8(0xFF05); got < 0x80 {
		t.Errorf("TIMA = %02X, want reloaded from TMA", got)
	}
	if got := gb.Peek8(0xFF07); got != 0xFD {
		t.Errorf("TAC = %02X, want FD", got)
	}

	gb.Write(0xFF04, 0x12)
	if got := gb.Peek8(0xFF04); got != 0 {
		t.Errorf("DIV = %02X after write, want 0", got)
	}
}

func TestAPUFrameSequencerFollowsDIV(t *testing.T) {
	gb := newTestGB(t, makeROM(0x00, 0))
	step := func() uint8 { return gb.APU.State().SeqStep }

	gb.Write(0xFF04, 0)
	start := step()
	// Bit 12 of the divider falls every 2048 M-cycles.
	for range 2047 {
		gb.Idle()
	}
	if got := step(); got != start {
		t.Fatalf("step = %d before the divider edge, want %d", got, start)
	}
	gb.Idle()
	if got, want := step(), (start+1)&7; got != want {
		t.Fatalf("step = %d after the divider edge, want %d", got, want)
	}

	// Writing DIV while bit 12 is set is a falling edge and restarts the
	// 2048 M-cycles period.
	for range 1500 {
		gb.Idle()
	}
	start = step()
	gb.Write(0xFF04, 0)
	if got, want := step(), (start+1)&7; got != want {
		t.Fatalf("step = %d after DIV write, want %d", got, want)
	}
	for range 2047 {
		gb.Idle()
	}
	if got, want := step(), (start+1)&7; got != want {
		t.Errorf("step = %d before the divider edge, want %d", got, want)
	}
	gb.Idle()
	if got, want := step(), (start+2)&7; got != want {
		t.Errorf("step = %d after the divider edge, want %d", got, want)
	}
}

func TestSerialOutput(t *testing.T) {
	var prog []uint8
	for _, c := range []byte("Hi") {
		prog = append(prog,
			0x3E, c, // LD A,c
			0xE0, 0x01, // LDH (SB),A
			0x3E, 0x81, // LD A,$81
			0xE0, 0x02, // LDH (SC),A
		)
	}
	prog = append(prog, loop...)
	gb := newTestGB(t, makeROM(0x00, 0, prog...))

	var c collaborators
	for range 100 {
		if _, err := gb.Tick(&c.renderer, &c.audio, &c.saves); err != nil {
			t.Fatal(err)
		}
	}
	if got := string(gb.SerialOutput()); got != "Hi" {
		t.Errorf("serial output = %q, want %q", got, "Hi")
	}
	if got := gb.Peek8(0xFF02); got != 0x7F {
		t.Errorf("SC = %02X, want 7F", got)
	}
	if gb.IF.Value&0x08 == 0 {
		t.Errorf("serial interrupt not requested")
	}
}

func TestJoypad(t *testing.T) {
	gb := newTestGB(t, makeROM(0x00, 0))
	gb.IF.Value = 0

	gb.SetButtons(ButtonRight | ButtonA)
	if gb.IF.Value&0x10 == 0 {
		t.Errorf("joypad interrupt not requested")
	}

	gb.Write(0xFF00, 0x20) // select directions
	if got := gb.Peek8(0xFF00); got != 0xEE {
		t.Errorf("P1 directions = %02X, want EE", got)
	}
	gb.Write(0xFF00, 0x10) // select buttons
	if got := gb.Peek8(0xFF00); got != 0xDE {
		t.Errorf("P1 buttons = %02X, want DE", got)
	}
	gb.Write(0xFF00, 0x30)
	if got := gb.Peek8(0xFF00); got != 0xFF {
		t.Errorf("P1 nothing selected = %02X, want FF", got)
	}

	gb.IF.Value = 0
	gb.SetButtons(ButtonA)
	if gb.IF.Value != 0 {
		t.Errorf("releasing a button requested an interrupt")
	}
}

func TestMemoryMirrors(t *testing.T) {
	gb := newTestGB(t, makeROM(0x00, 0))

	gb.Write(0xC123, 0x5A)
	if got := gb.Peek8(0xE123); got != 0x5A {
		t.Errorf("echo RAM = %02X, want 5A", got)
	}
	gb.Write(0xFF80, 0x11)
	gb.Write(0xFFFF, 0x1F)
	if got := gb.Peek8(0xFF80); got != 0x11 {
		t.Errorf("HRAM = %02X, want 11", got)
	}
	if got := gb.Peek8(0xFF0F); got&0xE0 != 0xE0 {
		t.Errorf("IF upper bits = %02X, want set", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	prog := []uint8{
		0x3E, 0x0A, // LD A,$0A
		0xEA, 0x00, 0x00, // LD ($0000),A
		0x21, 0x00, 0xC0, // LD HL,$C000
		0x22,       // LD (HL+),A
		0x3C,       // INC A
		0x18, 0xFC, // JR -4
	}
	rom := makeROM(0x03, 0x02, prog...)
	gb1 := newTestGB(t, rom)

	var c collaborators
	if err := c.runFrame(t, gb1); err != nil {
		t.Fatal(err)
	}
	state := gb1.State()

	gb2 := newTestGB(t, rom)
	if err := gb2.SetState(state); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(state, gb2.State()); diff != "" {
		t.Fatalf("state mismatch after SetState (-want +got):\n%s", diff)
	}

	for range 1000 {
		gb1.Tick(&c.renderer, &c.audio, &c.saves)
		gb2.Tick(&c.renderer, &c.audio, &c.saves)
	}
	if diff := cmp.Diff(gb1.State(), gb2.State()); diff != "" {
		t.Errorf("consoles diverged (-gb1 +gb2):\n%s", diff)
	}

	state.Version = 99
	if err := gb2.SetState(state); err == nil {
		t.Errorf("SetState accepted an unknown version")
	}
}
