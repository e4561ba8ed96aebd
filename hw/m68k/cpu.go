// Package m68k implements a Motorola 68000 CPU core.
//
// ExecuteInstruction runs one instruction and returns the number of CPU
// cycles it took. Cycles are counted per bus access (4 per word) plus the
// documented internal cycles of each instruction, so the totals match the
// 68000 timing tables.
package m68k

import (
	"retrocore/emu/log"
)

var modM68K = log.NewModule("m68k")

// Bus is the 68000 view of the system. Addresses are 24-bit, word accesses
// are always even.
type Bus interface {
	ReadByte(addr uint32) uint8
	ReadWord(addr uint32) uint16
	WriteByte(addr uint32, val uint8)
	WriteWord(addr uint32, val uint16)

	// InterruptLevel returns the highest pending interrupt level (1-7), 0
	// when no interrupt is pending.
	InterruptLevel() uint8
	AcknowledgeInterrupt(level uint8)
}

// Status register bits.
const (
	FlagC uint16 = 1 << 0
	FlagV uint16 = 1 << 1
	FlagZ uint16 = 1 << 2
	FlagN uint16 = 1 << 3
	FlagX uint16 = 1 << 4

	srIPL = 0x0700
	srS   = 1 << 13
	srT   = 1 << 15

	srMask = 0xA71F
)

// Exception vector numbers.
const (
	vecResetSSP        = 0
	vecResetPC         = 1
	vecIllegal         = 4
	vecZeroDivide      = 5
	vecCHK             = 6
	vecTRAPV           = 7
	vecPrivilege       = 8
	vecLineA           = 10
	vecLineF           = 11
	vecAutoVectorBase  = 24
	vecTrapBase        = 32
	exceptionFrameTime = 28 // stack frame, vector fetch and prefetch refill
)

type Registers struct {
	D   [8]uint32
	A   [7]uint32 // A7 is USP or SSP, depending on the S flag
	USP uint32
	SSP uint32
	PC  uint32
	SR  uint16
}

type CPU struct {
	Regs Registers

	// Stopped is set by STOP, the CPU does nothing until an interrupt.
	Stopped bool

	// DisableTASWrite suppresses the write cycle of TAS (Genesis).
	DisableTASWrite bool

	prevIntLevel uint8 // level 7 is edge triggered
	instrPC      uint32
	cycles       uint32
}

func New() *CPU {
	return &CPU{Regs: Registers{SR: srS | srIPL}}
}

// AddLogContext stamps log entries with the address of the instruction
// being executed.
func (cpu *CPU) AddLogContext(z *log.EntryZ) {
	z.Hex32("pc", cpu.instrPC)
}

// Reset loads the supervisor stack pointer and the program counter from the
// reset vectors and enters supervisor mode with all interrupts masked.
func (cpu *CPU) Reset(bus Bus) {
	cpu.Regs.SR = srS | srIPL
	cpu.Stopped = false
	cpu.prevIntLevel = 0
	cpu.Regs.SSP = cpu.read(bus, vecResetSSP*4, Long)
	cpu.Regs.PC = cpu.read(bus, vecResetPC*4, Long)

	modM68K.InfoZ("reset").Hex32("pc", cpu.Regs.PC).Hex32("ssp", cpu.Regs.SSP).End()
}

func (cpu *CPU) supervisor() bool   { return cpu.Regs.SR&srS != 0 }
func (cpu *CPU) flag(f uint16) bool { return cpu.Regs.SR&f != 0 }

func (cpu *CPU) setFlag(f uint16, v bool) {
	if v {
		cpu.Regs.SR |= f
	} else {
		cpu.Regs.SR &^= f
	}
}

// setSR sets the status register. The active stack pointer follows S.
func (cpu *CPU) setSR(v uint16) { cpu.Regs.SR = v & srMask }

func (cpu *CPU) setCCR(v uint8) { cpu.Regs.SR = cpu.Regs.SR&0xFF00 | uint16(v)&0x1F }

// a returns a pointer to address register n, A7 being the active stack
// pointer.
func (cpu *CPU) a(n uint8) *uint32 {
	if n == 7 {
		if cpu.supervisor() {
			return &cpu.Regs.SSP
		}
		return &cpu.Regs.USP
	}
	return &cpu.Regs.A[n]
}

// SP returns the active stack pointer.
func (cpu *CPU) SP() uint32 { return *cpu.a(7) }

// A returns the value of address register n.
func (cpu *CPU) A(n uint8) uint32 { return *cpu.a(n) }

func (cpu *CPU) internal(n uint32) { cpu.cycles += n }

// ExecuteInstruction services a pending interrupt or runs one instruction,
// and returns the number of elapsed CPU cycles.
func (cpu *CPU) ExecuteInstruction(bus Bus) uint32 {
	cpu.cycles = 0

	if cpu.pollInterrupt(bus) {
		return cpu.cycles
	}
	if cpu.Stopped {
		return 4
	}

	cpu.instrPC = cpu.Regs.PC
	op := cpu.fetch(bus)
	cpu.execute(bus, Decode(op), op)
	return cpu.cycles
}

// pollInterrupt services the pending interrupt if its level is above the
// interrupt mask. Level 7 is non-maskable and serviced on its rising edge.
func (cpu *CPU) pollInterrupt(bus Bus) bool {
	level := bus.InterruptLevel()
	prev := cpu.prevIntLevel
	cpu.prevIntLevel = level

	mask := uint8(cpu.Regs.SR & srIPL >> 8)
	switch {
	case level == 0:
		return false
	case level == 7 && prev != 7:
	case level > mask:
	default:
		return false
	}

	cpu.Stopped = false
	cpu.internal(16) // interrupt acknowledge cycle
	cpu.exception(bus, vecAutoVectorBase+level)
	cpu.Regs.SR = cpu.Regs.SR&^srIPL | uint16(level)<<8
	bus.AcknowledgeInterrupt(level)
	return true
}

// exception enters supervisor mode, pushes PC and SR and jumps through the
// given vector.
func (cpu *CPU) exception(bus Bus, vector uint8) {
	sr := cpu.Regs.SR
	cpu.Regs.SR = (sr | srS) &^ srT
	cpu.push(bus, cpu.Regs.PC, Long)
	cpu.push(bus, uint32(sr), Word)
	cpu.Regs.PC = cpu.read(bus, uint32(vector)*4, Long)
	cpu.internal(exceptionFrameTime - 20)
}

// illegal raises an exception for an opcode that can't be executed, with the
// stacked PC pointing at the opcode.
func (cpu *CPU) illegal(bus Bus, vector uint8, op uint16) {
	modM68K.WarnZ("illegal instruction").
		Hex16("op", op).
		Hex32("pc", cpu.instrPC).
		Uint8("vector", vector).
		End()
	cpu.Regs.PC = cpu.instrPC
	cpu.exception(bus, vector)
	cpu.internal(2)
}

// privileged reports whether the CPU is in supervisor mode, raising a
// privilege violation if not.
func (cpu *CPU) privileged(bus Bus, op uint16) bool {
	if cpu.supervisor() {
		return true
	}
	cpu.illegal(bus, vecPrivilege, op)
	return false
}

// Bus accesses, counting cycles.

func (cpu *CPU) read(bus Bus, addr uint32, size Size) uint32 {
	addr &= 0xFFFFFF
	switch size {
	case Byte:
		cpu.cycles += 4
		return uint32(bus.ReadByte(addr))
	case Word:
		cpu.cycles += 4
		return uint32(bus.ReadWord(addr &^ 1))
	}
	cpu.cycles += 8
	addr &^= 1
	hi := uint32(bus.ReadWord(addr))
	lo := uint32(bus.ReadWord((addr + 2) & 0xFFFFFF))
	return hi<<16 | lo
}

func (cpu *CPU) write(bus Bus, addr uint32, size Size, val uint32) {
	addr &= 0xFFFFFF
	switch size {
	case Byte:
		cpu.cycles += 4
		bus.WriteByte(addr, uint8(val))
		return
	case Word:
		cpu.cycles += 4
		bus.WriteWord(addr&^1, uint16(val))
		return
	}
	cpu.cycles += 8
	addr &^= 1
	bus.WriteWord(addr, uint16(val>>16))
	bus.WriteWord((addr+2)&0xFFFFFF, uint16(val))
}

func (cpu *CPU) fetch(bus Bus) uint16 {
	v := cpu.read(bus, cpu.Regs.PC, Word)
	cpu.Regs.PC += 2
	return uint16(v)
}

func (cpu *CPU) fetchLong(bus Bus) uint32 {
	hi := uint32(cpu.fetch(bus))
	return hi<<16 | uint32(cpu.fetch(bus))
}

func (cpu *CPU) push(bus Bus, val uint32, size Size) {
	sp := cpu.a(7)
	*sp -= uint32(max(size, Word))
	cpu.write(bus, *sp, size, val)
}

func (cpu *CPU) pop(bus Bus, size Size) uint32 {
	sp := cpu.a(7)
	v := cpu.read(bus, *sp, size)
	*sp += uint32(max(size, Word))
	return v
}
