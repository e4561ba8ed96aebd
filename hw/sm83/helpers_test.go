package sm83

import (
	"math/bits"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testBus is a flat 64K memory with IE/IF registers that counts M-cycles.
type testBus struct {
	mem    [0x10000]uint8
	cycles int
	ie     uint8
	iflag  uint8
	acked  []Interrupt
}

func (b *testBus) Read(addr uint16) uint8 {
	b.cycles++
	switch addr {
	case 0xFFFF:
		return b.ie
	case 0xFF0F:
		return b.iflag | 0xE0
	}
	return b.mem[addr]
}

func (b *testBus) Write(addr uint16, val uint8) {
	b.cycles++
	switch addr {
	case 0xFFFF:
		b.ie = val
	case 0xFF0F:
		b.iflag = val & 0x1F
	default:
		b.mem[addr] = val
	}
}

func (b *testBus) Idle() { b.cycles++ }

func (b *testBus) HighestPriorityInterrupt() (Interrupt, bool) {
	pending := b.ie & b.iflag & 0x1F
	if pending == 0 {
		return 0, false
	}
	return Interrupt(bits.TrailingZeros8(pending)), true
}

func (b *testBus) AcknowledgeInterrupt(i Interrupt) {
	b.iflag &^= 1 << i
	b.acked = append(b.acked, i)
}

// load copies prog at $0100, the post boot-rom PC.
func newTestCPU(prog ...uint8) (*CPU, *testBus) {
	bus := &testBus{}
	copy(bus.mem[0x100:], prog)
	return New(), bus
}

// step executes n instructions and returns the M-cycles they took.
func step(cpu *CPU, bus *testBus, n int) int {
	start := bus.cycles
	for range n {
		cpu.ExecuteInstruction(bus)
	}
	return bus.cycles - start
}

func wantRegs(t *testing.T, got, want Registers) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("registers mismatch (-want +got):\n%s", diff)
	}
}
