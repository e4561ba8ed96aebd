package z80

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testBus is a flat 64K memory with a recording I/O space and settable
// input lines.
type testBus struct {
	mem [0x10000]uint8

	ioIn   uint8
	inPort uint16
	outs   []ioWrite

	nmi, irq, busreq, reset bool
}

type ioWrite struct {
	Port uint16
	Val  uint8
}

func (b *testBus) ReadMemory(addr uint16) uint8       { return b.mem[addr] }
func (b *testBus) WriteMemory(addr uint16, val uint8) { b.mem[addr] = val }

func (b *testBus) ReadIO(port uint16) uint8 {
	b.inPort = port
	return b.ioIn
}

func (b *testBus) WriteIO(port uint16, val uint8) {
	b.outs = append(b.outs, ioWrite{port, val})
}

func (b *testBus) NMI() bool    { return b.nmi }
func (b *testBus) INT() bool    { return b.irq }
func (b *testBus) BusReq() bool { return b.busreq }
func (b *testBus) Reset() bool  { return b.reset }

// newTestCPU loads prog at address 0, where the CPU starts after reset.
func newTestCPU(prog ...uint8) (*CPU, *testBus) {
	bus := &testBus{}
	copy(bus.mem[:], prog)
	return New(), bus
}

// step executes n instructions and returns the total T-states.
func step(cpu *CPU, bus *testBus, n int) uint32 {
	var cycles uint32
	for range n {
		cycles += cpu.ExecuteInstruction(bus)
	}
	return cycles
}

func wantReg[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %#x, want %#x", name, got, want)
	}
}

func wantFlags(t *testing.T, cpu *CPU, want uint8) {
	t.Helper()
	if got := cpu.Regs.F; got != want {
		t.Errorf("F = %08b, want %08b", got, want)
	}
}

func wantDiff(t *testing.T, what string, got, want any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", what, diff)
	}
}
