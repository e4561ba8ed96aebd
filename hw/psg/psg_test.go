package psg

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"retrocore/hw/snapshot"
)

// clock runs n internal clocks.
func clock(p *PSG, n int) {
	for range n * clockDivider {
		p.Tick()
	}
}

func TestPowerOnSilent(t *testing.T) {
	p := New()
	for ch, v := range p.volume {
		if v != 0x0F {
			t.Errorf("volume[%d] = %#x, want 0x0f", ch, v)
		}
	}
	if l, r := p.Sample(); l != 0 || r != 0 {
		t.Errorf("Sample() = (%v, %v), want silence", l, r)
	}
	if p.lfsr != lfsrReset {
		t.Errorf("lfsr = %#04x, want %#04x", p.lfsr, lfsrReset)
	}
}

func TestLatchData(t *testing.T) {
	p := New()

	p.Write(0x80 | 0x0E) // channel 0 tone, low nibble
	p.Write(0x3F)        // high 6 bits
	if p.tone[0] != 0x3FE {
		t.Fatalf("tone[0] = %#x, want 0x3fe", p.tone[0])
	}

	// The latch persists across data bytes.
	p.Write(0x01)
	if p.tone[0] != 0x01E {
		t.Errorf("tone[0] = %#x, want 0x01e", p.tone[0])
	}

	p.Write(0xA0 | 0x05) // channel 1 tone
	if p.tone[1] != 0x005 || p.tone[0] != 0x01E {
		t.Errorf("tone = %#x, want [0x01e 0x005 0]", p.tone)
	}

	p.Write(0xD0 | 0x03) // channel 2 volume
	if p.volume[2] != 3 {
		t.Errorf("volume[2] = %d, want 3", p.volume[2])
	}
	p.Write(0x07)
	if p.volume[2] != 7 || p.tone[2] != 0 {
		t.Errorf("volume[2] = %d tone[2] = %#x, want 7 and 0", p.volume[2], p.tone[2])
	}

	p.Write(0xF0 | 0x02) // noise volume
	if p.volume[noise] != 2 {
		t.Errorf("volume[noise] = %d, want 2", p.volume[noise])
	}
}

func TestNoiseWriteResetsLFSR(t *testing.T) {
	p := New()
	p.noise = 4
	for range 20 {
		p.shiftLFSR()
	}
	if p.lfsr == lfsrReset {
		t.Fatal("lfsr didn't move")
	}

	p.Write(0xE0 | 0x05)
	if p.noise != 5 {
		t.Errorf("noise = %d, want 5", p.noise)
	}
	if p.lfsr != lfsrReset {
		t.Errorf("lfsr = %#04x, want %#04x", p.lfsr, lfsrReset)
	}

	// Data bytes also write the noise register.
	p.shiftLFSR()
	p.Write(0x02)
	if p.noise != 2 || p.lfsr != lfsrReset {
		t.Errorf("noise = %d lfsr = %#04x, want 2 and %#04x", p.noise, p.lfsr, lfsrReset)
	}
}

func TestTickDivider(t *testing.T) {
	p := New()
	for i := range clockDivider - 1 {
		if got := p.Tick(); got != None {
			t.Fatalf("Tick #%d = %v, want None", i, got)
		}
	}
	if got := p.Tick(); got != Clocked {
		t.Fatalf("Tick #%d = %v, want Clocked", clockDivider-1, got)
	}
	if got := p.Tick(); got != None {
		t.Fatalf("Tick after Clocked = %v, want None", got)
	}
}

func TestToneSquareWave(t *testing.T) {
	p := New()
	p.Write(0x80 | 0x02)
	p.Write(0x00)

	var got []bool
	for range 6 {
		clock(p, 1)
		got = append(got, p.outputs[0])
	}
	want := []bool{false, false, true, true, false, false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tone 0 output mismatch (-want +got):\n%s", diff)
	}
}

func TestToneHeldHigh(t *testing.T) {
	for _, period := range []uint8{0, 1} {
		p := New()
		p.Write(0x80 | period)
		p.Write(0x00)
		for i := range 8 {
			clock(p, 1)
			if !p.outputs[0] {
				t.Fatalf("period %d: output low after %d clocks", period, i+1)
			}
		}
	}
}

func TestWhiteNoiseSequence(t *testing.T) {
	p := New()
	p.noise = 4

	want := []uint16{
		0x4000, 0x2000, 0x1000, 0x0800, 0x0400, 0x0200, 0x0100,
		0x0080, 0x0040, 0x0020, 0x0010, 0x0008, 0x8004, 0x4002,
	}
	var got []uint16
	for range want {
		p.shiftLFSR()
		got = append(got, p.lfsr)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lfsr sequence mismatch (-want +got):\n%s", diff)
	}

	// Full period of the Sega white noise.
	p.lfsr = lfsrReset
	n := 0
	for {
		p.shiftLFSR()
		n++
		if p.lfsr == lfsrReset {
			break
		}
	}
	if n != 57337 {
		t.Errorf("white noise period = %d, want 57337", n)
	}
}

func TestPeriodicNoise(t *testing.T) {
	p := New()
	p.noise = 0

	for i := 1; i <= 16; i++ {
		p.shiftLFSR()
		wantBit := i == 15
		if got := p.lfsr&1 != 0; got != wantBit {
			t.Errorf("shift %d: output = %t, want %t", i, got, wantBit)
		}
	}
	if p.lfsr != lfsrReset {
		t.Errorf("lfsr = %#04x after 16 shifts, want %#04x", p.lfsr, lfsrReset)
	}
}

func TestNoisePeriod(t *testing.T) {
	tests := []struct {
		noise uint8
		want  uint16
	}{
		{0, 0x10},
		{1, 0x20},
		{2, 0x40},
		{3, 0x123},
		{4, 0x10},
		{7, 0x123},
	}
	for _, tt := range tests {
		p := New()
		p.tone[2] = 0x123
		p.noise = tt.noise
		if got := p.noisePeriod(); got != tt.want {
			t.Errorf("noise=%d: noisePeriod() = %#x, want %#x", tt.noise, got, tt.want)
		}
	}
}

func TestNoiseShiftsEveryOtherExpiry(t *testing.T) {
	p := New()
	p.Write(0xE4) // white noise, period 0x10

	// The first expiry happens on the first clock.
	clock(p, 1)
	if p.lfsr != 0x4000 {
		t.Fatalf("lfsr = %#04x, want 0x4000", p.lfsr)
	}
	clock(p, 0x10)
	if p.lfsr != 0x4000 {
		t.Fatalf("lfsr = %#04x, want 0x4000", p.lfsr)
	}
	clock(p, 0x10)
	if p.lfsr != 0x2000 {
		t.Fatalf("lfsr = %#04x, want 0x2000", p.lfsr)
	}
}

func TestVolumeTable(t *testing.T) {
	if volumeTable[0] != 1 {
		t.Errorf("volumeTable[0] = %v, want 1", volumeTable[0])
	}
	if volumeTable[15] != 0 {
		t.Errorf("volumeTable[15] = %v, want 0", volumeTable[15])
	}
	for i := 1; i < 15; i++ {
		db := 20 * math.Log10(volumeTable[i-1]/volumeTable[i])
		if math.Abs(db-2) > 1e-9 {
			t.Errorf("step %d = %vdB, want 2dB", i, db)
		}
	}
}

func TestSample(t *testing.T) {
	p := New()
	p.Write(0x90) // channel 0 at full volume, output high
	if l, r := p.Sample(); l != 0.25 || r != 0.25 {
		t.Errorf("Sample() = (%v, %v), want (0.25, 0.25)", l, r)
	}

	p.outputs[0] = false
	if l, _ := p.Sample(); l != -0.25 {
		t.Errorf("Sample() = %v, want -0.25", l)
	}
}

func TestStereo(t *testing.T) {
	p := New()
	p.Write(0x90) // channel 0 at full volume
	p.Write(0xB0) // channel 1 at full volume

	p.WriteStereo(0x21) // channel 1 left, channel 0 right
	p.outputs[1] = false
	if l, r := p.Sample(); l != -0.25 || r != 0.25 {
		t.Errorf("Sample() = (%v, %v), want (-0.25, 0.25)", l, r)
	}

	p.WriteStereo(0x00)
	if l, r := p.Sample(); l != 0 || r != 0 {
		t.Errorf("Sample() = (%v, %v), want silence with all channels off", l, r)
	}

	p.Reset()
	if p.stereo != 0xFF {
		t.Errorf("stereo = %02X after reset, want FF", p.stereo)
	}
}

func TestStateRoundTrip(t *testing.T) {
	p := New()
	for _, b := range []uint8{0x85, 0x12, 0x92, 0xE7, 0xF4, 0xC3, 0x3F} {
		p.Write(b)
	}
	p.WriteStereo(0x5A)
	clock(p, 37)
	p.Tick()

	buf, err := snapshot.Marshal(p.State())
	if err != nil {
		t.Fatal(err)
	}
	var state snapshot.PSG
	if err := snapshot.Unmarshal(buf, &state); err != nil {
		t.Fatal(err)
	}

	restored := New()
	restored.SetState(&state)
	if diff := cmp.Diff(p.State(), restored.State()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	for i := range 1000 {
		p.Tick()
		restored.Tick()
		l1, _ := p.Sample()
		l2, _ := restored.Sample()
		if l1 != l2 {
			t.Fatalf("tick %d: sample %v != %v", i, l1, l2)
		}
	}
}
