package gbapu

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"retrocore/hw/hwio"
)

type testAPU struct {
	*APU
	bus *hwio.Table
}

func newTestAPU(tb testing.TB) testAPU {
	tb.Helper()

	a := New(48000)
	bus := hwio.NewTable("apu")
	a.Map(bus)
	return testAPU{APU: a, bus: bus}
}

func (ta testAPU) write(regs ...uint16) {
	for _, r := range regs {
		ta.bus.Write8(0xFF00|uint32(r>>8), uint8(r))
	}
}

func (ta testAPU) wantRead8(tb testing.TB, addr uint32, want uint8) {
	tb.Helper()
	if got := ta.bus.Read8(addr, false); got != want {
		tb.Errorf("Read8(%04X) = %02X, want %02X", addr, got, want)
	}
}

// reg encodes a register write: low byte of the address in the high byte.
func reg(addr uint8, val uint8) uint16 {
	return uint16(addr)<<8 | uint16(val)
}

func TestRegisterReadMasks(t *testing.T) {
	ta := newTestAPU(t)

	tests := []struct {
		addr uint32
		want uint8
	}{
		{0xFF10, 0x80},
		{0xFF11, 0x3F},
		{0xFF12, 0x00},
		{0xFF13, 0xFF},
		{0xFF14, 0xBF},
		{0xFF15, 0xFF},
		{0xFF16, 0x3F},
		{0xFF18, 0xFF},
		{0xFF1A, 0x7F},
		{0xFF1B, 0xFF},
		{0xFF1C, 0x9F},
		{0xFF1E, 0xBF},
		{0xFF1F, 0xFF},
		{0xFF20, 0xFF},
		{0xFF23, 0xBF},
		{0xFF26, 0xF0},
		{0xFF27, 0xFF},
		{0xFF2F, 0xFF},
	}
	for _, tt := range tests {
		ta.wantRead8(t, tt.addr, tt.want)
	}

	ta.write(reg(0x10, 0x7B), reg(0x11, 0x80), reg(0x12, 0xA5), reg(0x14, 0x40))
	ta.wantRead8(t, 0xFF10, 0xFB)
	ta.wantRead8(t, 0xFF11, 0xBF)
	ta.wantRead8(t, 0xFF12, 0xA5)
	ta.wantRead8(t, 0xFF14, 0xFF)
}

func TestPulseDutyWaveform(t *testing.T) {
	ta := newTestAPU(t)

	// 50% duty, constant volume 15, frequency 2044: the waveform phase
	// steps every 4 timer clocks.
	ta.write(reg(0x16, 0x80), reg(0x17, 0xF0), reg(0x18, 0xFC), reg(0x19, 0x87))

	ch := &ta.Pulse2
	sample := func() uint8 {
		amp, ok := ch.Sample()
		if !ok {
			t.Fatalf("DAC unexpectedly off")
		}
		return amp
	}

	if got := sample(); got != 15 {
		t.Fatalf("initial sample = %d, want 15", got)
	}

	var got []uint8
	prev := sample()
	for range 16 {
		for range 3 {
			ch.ClockTimer()
			if s := sample(); s != prev {
				t.Fatalf("sample changed before the timer underflow")
			}
		}
		ch.ClockTimer()
		prev = sample()
		got = append(got, prev)
	}

	want := []uint8{0, 0, 0, 0, 15, 15, 15, 15, 0, 0, 0, 0, 15, 15, 15, 15}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("waveform mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleDAC(t *testing.T) {
	ta := newTestAPU(t)

	if _, ok := ta.Pulse1.Sample(); ok {
		t.Errorf("DAC should be off at power on")
	}

	// Volume 0 increasing: DAC on but channel not triggered.
	ta.write(reg(0x12, 0x08))
	if amp, ok := ta.Pulse1.Sample(); !ok || amp != 0 {
		t.Errorf("Sample() = %d, %t, want 0, true", amp, ok)
	}

	ta.write(reg(0x12, 0xF0), reg(0x14, 0x80))
	if !ta.Pulse1.Enabled() {
		t.Fatalf("channel should be enabled after trigger")
	}

	// Turning the DAC off disables the channel.
	ta.write(reg(0x12, 0x00))
	if ta.Pulse1.Enabled() {
		t.Errorf("channel still enabled after DAC off")
	}
	if _, ok := ta.Pulse1.Sample(); ok {
		t.Errorf("DAC off should not produce a sample")
	}

	// Triggering with the DAC off doesn't enable the channel.
	ta.write(reg(0x14, 0x80))
	if ta.Pulse1.Enabled() {
		t.Errorf("channel enabled by trigger while DAC off")
	}
}

// trigger sets up pulse 1 with the given sweep register and frequency, at
// full volume, and triggers it.
func (ta testAPU) trigger(nr10 uint8, freq uint16) {
	ta.write(
		reg(0x10, nr10),
		reg(0x12, 0xF0),
		reg(0x13, uint8(freq)),
		reg(0x14, 0x80|uint8(freq>>8)&0x07),
	)
}

func TestSweep(t *testing.T) {
	t.Run("overflow on next clock", func(t *testing.T) {
		ta := newTestAPU(t)
		// Shift 0 at trigger: no overflow check.
		ta.trigger(0x10, 1792)
		ta.write(reg(0x10, 0x11))
		if !ta.Pulse1.Enabled() {
			t.Fatalf("channel should be enabled before the sweep clock")
		}

		// 1792 + 1792>>1 = 2688 > 2047
		ta.Pulse1.ClockSweep()
		if ta.Pulse1.Enabled() {
			t.Errorf("channel should be disabled after overflow")
		}
		if got := ta.Pulse1.Frequency(); got != 1792 {
			t.Errorf("frequency = %d, want 1792", got)
		}
	})

	t.Run("second overflow check", func(t *testing.T) {
		ta := newTestAPU(t)
		// 1280 + 640 = 1920 at trigger, ok.
		ta.trigger(0x11, 1280)
		if !ta.Pulse1.Enabled() {
			t.Fatalf("channel disabled at trigger")
		}

		// 1920 is written, then 1920 + 960 overflows.
		ta.Pulse1.ClockSweep()
		if got := ta.Pulse1.Frequency(); got != 1920 {
			t.Errorf("frequency = %d, want 1920", got)
		}
		if ta.Pulse1.Enabled() {
			t.Errorf("channel should be disabled by the second check")
		}
	})

	t.Run("negate subtracts", func(t *testing.T) {
		ta := newTestAPU(t)
		ta.trigger(0x19, 1280)

		ta.Pulse1.ClockSweep()
		if got := ta.Pulse1.Frequency(); got != 640 {
			t.Errorf("frequency = %d, want 640", got)
		}
		if !ta.Pulse1.Enabled() {
			t.Errorf("subtraction should never overflow")
		}
	})

	t.Run("trigger overflow", func(t *testing.T) {
		ta := newTestAPU(t)
		// Period 0, shift 1: 2032 + 1016 overflows right away.
		ta.trigger(0x01, 2032)
		if ta.Pulse1.Enabled() {
			t.Errorf("channel should be disabled at trigger")
		}
		ta.wantRead8(t, 0xFF26, 0xF0)
	})

	t.Run("clearing negate after use", func(t *testing.T) {
		ta := newTestAPU(t)
		ta.trigger(0x19, 1280)
		if !ta.Pulse1.Enabled() {
			t.Fatalf("channel disabled at trigger")
		}
		ta.write(reg(0x10, 0x11))
		if ta.Pulse1.Enabled() {
			t.Errorf("clearing negate should disable the channel")
		}
	})

	t.Run("clearing negate before use", func(t *testing.T) {
		ta := newTestAPU(t)
		// Shift 0: no computation at trigger.
		ta.trigger(0x18, 1280)
		ta.write(reg(0x10, 0x10))
		if !ta.Pulse1.Enabled() {
			t.Errorf("channel should stay enabled")
		}
	})

	t.Run("period 0 doesn't update", func(t *testing.T) {
		ta := newTestAPU(t)
		ta.trigger(0x01, 1000)
		for range 16 {
			ta.Pulse1.ClockSweep()
		}
		if got := ta.Pulse1.Frequency(); got != 1000 {
			t.Errorf("frequency = %d, want 1000", got)
		}
	})
}

func TestLengthCounter(t *testing.T) {
	t.Run("disables on next length clock", func(t *testing.T) {
		ta := newTestAPU(t)
		// Length 1, enabled, triggered while the next step clocks length.
		ta.write(reg(0x11, 0x3F), reg(0x12, 0xF0), reg(0x14, 0xC0))

		for range 5000 {
			ta.Tick()
		}
		if !ta.Pulse1.Enabled() {
			t.Fatalf("channel disabled without a frame sequencer clock")
		}
		ta.ClockFrameSequencer()
		if ta.Pulse1.Enabled() {
			t.Errorf("channel should be disabled after the length clock")
		}
		ta.wantRead8(t, 0xFF26, 0xF0)
	})

	t.Run("enable glitch", func(t *testing.T) {
		ta := newTestAPU(t)
		ta.seq.step = 1
		ta.write(reg(0x11, 0x3F), reg(0x12, 0xF0), reg(0x14, 0x80))
		if !ta.Pulse1.Enabled() {
			t.Fatalf("channel should be enabled")
		}

		// Enabling length without trigger gives an extra clock.
		ta.write(reg(0x14, 0x40))
		if ta.Pulse1.Enabled() {
			t.Errorf("extra length clock should have disabled the channel")
		}
	})

	t.Run("no glitch on length steps", func(t *testing.T) {
		ta := newTestAPU(t)
		ta.seq.step = 2
		ta.write(reg(0x11, 0x3F), reg(0x12, 0xF0), reg(0x14, 0x80), reg(0x14, 0x40))
		if !ta.Pulse1.Enabled() {
			t.Errorf("channel should be enabled")
		}
	})

	t.Run("trigger reload", func(t *testing.T) {
		ta := newTestAPU(t)
		ta.write(reg(0x12, 0xF0), reg(0x14, 0xC0))
		if got := ta.Pulse1.length.counter; got != 64 {
			t.Errorf("counter = %d, want 64", got)
		}

		ta = newTestAPU(t)
		ta.seq.step = 5
		ta.write(reg(0x12, 0xF0), reg(0x14, 0xC0))
		if got := ta.Pulse1.length.counter; got != 63 {
			t.Errorf("counter = %d, want 63", got)
		}
	})

	t.Run("wave channel", func(t *testing.T) {
		ta := newTestAPU(t)
		ta.write(reg(0x1A, 0x80), reg(0x1B, 0x00), reg(0x1E, 0x80))
		if got := ta.Wave.length.counter; got != 256 {
			t.Errorf("counter = %d, want 256", got)
		}
		if !ta.Wave.Enabled() {
			t.Errorf("wave channel should be enabled")
		}
	})
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		nr12  uint8
		steps int
		want  uint8
	}{
		{"decrease", 0xF1, 3, 12},
		{"clamp at 0", 0x21, 5, 0},
		{"increase", 0x09, 4, 4},
		{"clamp at 15", 0xE9, 4, 15},
		{"period 0 freezes", 0xA0, 8, 10},
		{"period 2", 0xF2, 4, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestAPU(t)
			ta.write(reg(0x12, tt.nr12), reg(0x14, 0x80))
			for range tt.steps {
				ta.Pulse1.ClockEnvelope()
			}
			if got := ta.Pulse1.envelope.volume; got != tt.want {
				t.Errorf("volume = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNoiseLFSR(t *testing.T) {
	ta := newTestAPU(t)
	ta.write(reg(0x21, 0xF0), reg(0x22, 0x00), reg(0x23, 0x80))

	// Divisor 8 T-cycles: one LFSR step every 2 M-cycles.
	ta.Noise.ClockTimer()
	if got := ta.Noise.lfsr; got != 0x7FFF {
		t.Fatalf("lfsr = %04X, want 7FFF", got)
	}
	ta.Noise.ClockTimer()
	if got := ta.Noise.lfsr; got != 0x3FFF {
		t.Fatalf("lfsr = %04X, want 3FFF", got)
	}
	if amp, ok := ta.Noise.Sample(); !ok || amp != 0 {
		t.Errorf("Sample() = %d, %t, want 0, true", amp, ok)
	}

	ta.write(reg(0x22, 0x08))
	ta.Noise.lfsr = 0x7FFF
	ta.Noise.step()
	if got := ta.Noise.lfsr; got != 0x3FBF {
		t.Errorf("short mode lfsr = %04X, want 3FBF", got)
	}
}

func TestWaveSample(t *testing.T) {
	ta := newTestAPU(t)
	ta.write(reg(0x30, 0x1F), reg(0x31, 0x2E))
	ta.write(reg(0x1A, 0x80), reg(0x1C, 0x20), reg(0x1D, 0xFF), reg(0x1E, 0x87))

	tests := []struct {
		pos  uint8
		code uint8
		want uint8
	}{
		{0, 1, 0x1},
		{1, 1, 0xF},
		{1, 2, 0x7},
		{1, 3, 0x3},
		{2, 1, 0x2},
		{3, 1, 0xE},
		{3, 0, 0x0},
	}
	for _, tt := range tests {
		ta.Wave.position = tt.pos
		ta.Wave.volumeCode = tt.code
		if amp, ok := ta.Wave.Sample(); !ok || amp != tt.want {
			t.Errorf("pos=%d code=%d: Sample() = %X, %t, want %X", tt.pos, tt.code, amp, ok, tt.want)
		}
	}
}

func TestPowerOff(t *testing.T) {
	ta := newTestAPU(t)
	ta.write(reg(0x30, 0xAB), reg(0x24, 0x77), reg(0x12, 0xF0), reg(0x14, 0x80))

	ta.write(reg(0x26, 0x00))
	ta.wantRead8(t, 0xFF26, 0x70)
	ta.wantRead8(t, 0xFF24, 0x00)
	ta.wantRead8(t, 0xFF12, 0x00)
	ta.wantRead8(t, 0xFF30, 0xAB)

	// Writes are ignored while off.
	ta.write(reg(0x24, 0x55), reg(0x12, 0xF0))
	ta.wantRead8(t, 0xFF24, 0x00)
	ta.wantRead8(t, 0xFF12, 0x00)

	ta.write(reg(0x26, 0x80), reg(0x24, 0x55))
	ta.wantRead8(t, 0xFF24, 0x55)
	ta.wantRead8(t, 0xFF26, 0xF0)
}

func TestFrameSequencerClock(t *testing.T) {
	ta := newTestAPU(t)
	for range 10000 {
		ta.Tick()
	}
	if ta.seq.step != 0 {
		t.Fatalf("step = %d after ticks alone, want 0", ta.seq.step)
	}

	ta.ClockFrameSequencer()
	ta.ClockFrameSequencer()
	if ta.seq.step != 2 {
		t.Errorf("step = %d, want 2", ta.seq.step)
	}

	// Powered off, the sequencer is stopped and restarts from step 0.
	ta.write(reg(0x26, 0x00))
	ta.ClockFrameSequencer()
	ta.write(reg(0x26, 0x80))
	if ta.seq.step != 0 {
		t.Errorf("step = %d after power cycle, want 0", ta.seq.step)
	}
}

type pcm [][2]float64

func (p *pcm) PushSample(l, r float64) error {
	*p = append(*p, [2]float64{l, r})
	return nil
}

func TestStateRoundTrip(t *testing.T) {
	ta := newTestAPU(t)
	ta.write(reg(0x24, 0x77), reg(0x25, 0xFF))
	ta.write(reg(0x10, 0x21), reg(0x11, 0x80), reg(0x12, 0xF3), reg(0x13, 0x40), reg(0x14, 0xC5))
	ta.write(reg(0x21, 0x20), reg(0x22, 0xA1), reg(0x23, 0x12), reg(0x23, 0x80))

	// Snapshot in the middle of the second audio frame.
	var discard pcm
	for range 17556 {
		ta.Tick()
	}
	if err := ta.EndFrame(&discard); err != nil {
		t.Fatal(err)
	}
	for i := range 7000 {
		if i%2048 == 0 {
			ta.ClockFrameSequencer()
		}
		ta.Tick()
	}

	tb := newTestAPU(t)
	if err := tb.SetState(ta.State()); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	for i := range 20000 {
		if i%2048 == 0 {
			ta.ClockFrameSequencer()
			tb.ClockFrameSequencer()
		}
		ta.Tick()
		tb.Tick()
		la, ra := ta.output()
		lb, rb := tb.output()
		if la != lb || ra != rb {
			t.Fatalf("cycle %d: output (%d,%d), restored (%d,%d)", i, la, ra, lb, rb)
		}
	}
	if diff := cmp.Diff(ta.State(), tb.State()); diff != "" {
		t.Errorf("state mismatch (-orig +restored):\n%s", diff)
	}

	var pa, pb pcm
	if err := ta.EndFrame(&pa); err != nil {
		t.Fatal(err)
	}
	if err := tb.EndFrame(&pb); err != nil {
		t.Fatal(err)
	}
	if len(pa) == 0 {
		t.Fatalf("no samples")
	}
	if diff := cmp.Diff(pa, pb); diff != "" {
		t.Errorf("audio mismatch (-orig +restored):\n%s", diff)
	}
}

func TestSetStateSampleRateMismatch(t *testing.T) {
	ta := newTestAPU(t)
	ta.write(reg(0x24, 0x77))

	other := New(44100)
	other.NR50.Value = 0x12
	if err := other.SetState(ta.State()); err == nil {
		t.Fatalf("SetState accepted a state recorded at another sample rate")
	}
	if other.NR50.Value != 0x12 {
		t.Errorf("NR50 = %02X after a failed SetState, want 12", other.NR50.Value)
	}
}
