package m68k

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	testSSP  = 0x8000
	testPC   = 0x1000
	testAddr = 0x2000 // scratch data
)

// testBus is a flat 64K memory, mirrored over the 24-bit address space, with
// a settable interrupt level.
type testBus struct {
	mem   [0x10000]uint8
	level uint8
	acked []uint8
}

func (b *testBus) ReadByte(addr uint32) uint8 { return b.mem[addr&0xFFFF] }

func (b *testBus) ReadWord(addr uint32) uint16 {
	return binary.BigEndian.Uint16(b.mem[addr&0xFFFE:])
}

func (b *testBus) WriteByte(addr uint32, val uint8) { b.mem[addr&0xFFFF] = val }

func (b *testBus) WriteWord(addr uint32, val uint16) {
	binary.BigEndian.PutUint16(b.mem[addr&0xFFFE:], val)
}

func (b *testBus) InterruptLevel() uint8 { return b.level }

// AcknowledgeInterrupt records the level but leaves it asserted, like a
// level-triggered line held by a device.
func (b *testBus) AcknowledgeInterrupt(level uint8) {
	b.acked = append(b.acked, level)
}

func (b *testBus) long(addr uint32) uint32 {
	return binary.BigEndian.Uint32(b.mem[addr&0xFFFF:])
}

func (b *testBus) setLong(addr, val uint32) {
	binary.BigEndian.PutUint32(b.mem[addr&0xFFFF:], val)
}

// setVector points exception vector n at handler, where a NOP sits.
func (b *testBus) setVector(n uint8, handler uint32) {
	b.setLong(uint32(n)*4, handler)
	b.WriteWord(handler, 0x4E71)
}

// newTestCPU loads prog at testPC and resets the CPU through the reset
// vectors.
func newTestCPU(prog ...uint16) (*CPU, *testBus) {
	bus := &testBus{}
	bus.setLong(0, testSSP)
	bus.setLong(4, testPC)
	for i, w := range prog {
		bus.WriteWord(testPC+uint32(2*i), w)
	}
	cpu := New()
	cpu.Reset(bus)
	return cpu, bus
}

// step executes n instructions and returns the cycles taken by the last one.
func step(cpu *CPU, bus *testBus, n int) uint32 {
	var cycles uint32
	for range n {
		cycles = cpu.ExecuteInstruction(bus)
	}
	return cycles
}

func wantRegs(t *testing.T, got, want Registers) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("registers mismatch (-want +got):\n%s", diff)
	}
}

func wantCCR(t *testing.T, cpu *CPU, want uint16) {
	t.Helper()
	if got := cpu.Regs.SR & 0x1F; got != want {
		t.Errorf("CCR = %05b, want %05b", got, want)
	}
}
