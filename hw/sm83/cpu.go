// Package sm83 implements the Sharp SM83, the Game Boy CPU.
package sm83

import (
	"retrocore/emu/log"
)

// Bus is the view the CPU has of the rest of the system. Every Read, Write
// and Idle call takes exactly one M-cycle (4 clock cycles).
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
	Idle()

	// HighestPriorityInterrupt returns the pending and enabled interrupt
	// with the highest priority, if any.
	HighestPriorityInterrupt() (Interrupt, bool)
	AcknowledgeInterrupt(Interrupt)
}

type Interrupt uint8

// Interrupts, by decreasing priority.
const (
	VBlank Interrupt = iota
	LCDStatus
	Timer
	Serial
	Joypad
)

func (i Interrupt) Vector() uint16 {
	return 0x0040 + 8*uint16(i)
}

func (i Interrupt) String() string {
	switch i {
	case VBlank:
		return "vblank"
	case LCDStatus:
		return "lcdstat"
	case Timer:
		return "timer"
	case Serial:
		return "serial"
	case Joypad:
		return "joypad"
	}
	return "unknown"
}

// Flags register bits.
const (
	FlagZ uint8 = 1 << 7
	FlagN uint8 = 1 << 6
	FlagH uint8 = 1 << 5
	FlagC uint8 = 1 << 4
)

type Registers struct {
	A, F       uint8
	B, C, D, E uint8
	H, L       uint8
	SP, PC     uint16
	IME        bool
}

func (r *Registers) BC() uint16 { return uint16(r.B)<<8 | uint16(r.C) }
func (r *Registers) DE() uint16 { return uint16(r.D)<<8 | uint16(r.E) }
func (r *Registers) HL() uint16 { return uint16(r.H)<<8 | uint16(r.L) }
func (r *Registers) AF() uint16 { return uint16(r.A)<<8 | uint16(r.F) }

func (r *Registers) SetBC(v uint16) { r.B, r.C = uint8(v>>8), uint8(v) }
func (r *Registers) SetDE(v uint16) { r.D, r.E = uint8(v>>8), uint8(v) }
func (r *Registers) SetHL(v uint16) { r.H, r.L = uint8(v>>8), uint8(v) }

// SetAF sets A and F. The low nibble of F always reads back as 0.
func (r *Registers) SetAF(v uint16) { r.A, r.F = uint8(v>>8), uint8(v)&0xF0 }

func (r *Registers) flag(f uint8) bool { return r.F&f != 0 }

func (r *Registers) setFlag(f uint8, v bool) {
	if v {
		r.F |= f
	} else {
		r.F &^= f
	}
}

// State holds the execution state that isn't visible in registers.
type State struct {
	PendingIMESet     bool // EI executed, IME is set after the next instruction
	HandlingInterrupt bool // next call services an interrupt
	Halted            bool
	HaltBug           bool // next opcode fetch doesn't increment PC
	Stopped           bool
	Locked            bool // an invalid opcode has been executed
}

type CPU struct {
	Regs  Registers
	State State
}

func New() *CPU {
	cpu := &CPU{}
	cpu.Reset()
	return cpu
}

func (cpu *CPU) AddLogContext(z *log.EntryZ) {
	z.Hex16("pc", cpu.Regs.PC)
}

// Reset sets registers to their post boot-rom values.
func (cpu *CPU) Reset() {
	cpu.Regs = Registers{
		A: 0x01, F: FlagZ,
		B: 0x00, C: 0x13,
		D: 0x00, E: 0xD8,
		H: 0x01, L: 0x4D,
		SP: 0xFFFE,
		PC: 0x0100,
	}
	cpu.State = State{}
}

// ExecuteInstruction runs one instruction, or services one interrupt, or
// idles for one M-cycle if the CPU is halted, stopped or locked.
func (cpu *CPU) ExecuteInstruction(bus Bus) {
	if cpu.State.Locked {
		bus.Idle()
		return
	}

	if cpu.State.Halted || cpu.State.Stopped {
		if _, ok := bus.HighestPriorityInterrupt(); !ok {
			bus.Idle()
			return
		}
		// IME isn't checked to exit halt, the interrupt isn't necessarily
		// serviced.
		cpu.State.Halted = false
		cpu.State.Stopped = false
		if cpu.Regs.IME {
			cpu.State.HandlingInterrupt = true
		}
	}

	if cpu.State.HandlingInterrupt {
		cpu.serviceInterrupt(bus)
		cpu.State.HandlingInterrupt = false
		return
	}

	if cpu.State.PendingIMESet {
		cpu.Regs.IME = true
		cpu.State.PendingIMESet = false
	}

	op := cpu.fetchOpcode(bus)
	cpu.execute(bus, Decode(op), op)

	cpu.State.HandlingInterrupt = cpu.Regs.IME && cpu.interruptPending(bus)
}

func (cpu *CPU) interruptPending(bus Bus) bool {
	_, ok := bus.HighestPriorityInterrupt()
	return ok
}

func (cpu *CPU) serviceInterrupt(bus Bus) {
	bus.Idle()
	bus.Idle()

	cpu.push16(bus, cpu.Regs.PC)

	// Pushing PC may have overwritten IE (SP=$0000), in which case the
	// CPU jumps to $0000.
	intr, ok := bus.HighestPriorityInterrupt()
	if ok {
		bus.AcknowledgeInterrupt(intr)
		cpu.Regs.PC = intr.Vector()
	} else {
		cpu.Regs.PC = 0x0000
	}
	cpu.Regs.IME = false

	bus.Idle()
}

func (cpu *CPU) lock(op uint8) {
	log.ModCPU.ErrorZ("invalid opcode, cpu locked").
		Hex8("op", op).
		Hex16("pc", cpu.Regs.PC-1).
		End()
	cpu.State.Locked = true
}

func (cpu *CPU) fetchOpcode(bus Bus) uint8 {
	op := bus.Read(cpu.Regs.PC)
	if cpu.State.HaltBug {
		cpu.State.HaltBug = false
	} else {
		cpu.Regs.PC++
	}
	return op
}

func (cpu *CPU) fetch8(bus Bus) uint8 {
	v := bus.Read(cpu.Regs.PC)
	cpu.Regs.PC++
	return v
}

func (cpu *CPU) fetch16(bus Bus) uint16 {
	lo := cpu.fetch8(bus)
	hi := cpu.fetch8(bus)
	return uint16(hi)<<8 | uint16(lo)
}

func (cpu *CPU) push8(bus Bus, v uint8) {
	cpu.Regs.SP--
	bus.Write(cpu.Regs.SP, v)
}

func (cpu *CPU) push16(bus Bus, v uint16) {
	cpu.push8(bus, uint8(v>>8))
	cpu.push8(bus, uint8(v))
}

func (cpu *CPU) pop8(bus Bus) uint8 {
	v := bus.Read(cpu.Regs.SP)
	cpu.Regs.SP++
	return v
}

func (cpu *CPU) pop16(bus Bus) uint16 {
	lo := cpu.pop8(bus)
	hi := cpu.pop8(bus)
	return uint16(hi)<<8 | uint16(lo)
}

// readReg reads an 8-bit register by selector, RegHLInd reads memory.
func (cpu *CPU) readReg(bus Bus, r uint8) uint8 {
	switch r {
	case RegB:
		return cpu.Regs.B
	case RegC:
		return cpu.Regs.C
	case RegD:
		return cpu.Regs.D
	case RegE:
		return cpu.Regs.E
	case RegH:
		return cpu.Regs.H
	case RegL:
		return cpu.Regs.L
	case RegHLInd:
		return bus.Read(cpu.Regs.HL())
	}
	return cpu.Regs.A
}

func (cpu *CPU) writeReg(bus Bus, r uint8, v uint8) {
	switch r {
	case RegB:
		cpu.Regs.B = v
	case RegC:
		cpu.Regs.C = v
	case RegD:
		cpu.Regs.D = v
	case RegE:
		cpu.Regs.E = v
	case RegH:
		cpu.Regs.H = v
	case RegL:
		cpu.Regs.L = v
	case RegHLInd:
		bus.Write(cpu.Regs.HL(), v)
	default:
		cpu.Regs.A = v
	}
}

// pair reads BC, DE, HL or SP.
func (cpu *CPU) pair(p uint8) uint16 {
	switch p {
	case 0:
		return cpu.Regs.BC()
	case 1:
		return cpu.Regs.DE()
	case 2:
		return cpu.Regs.HL()
	}
	return cpu.Regs.SP
}

func (cpu *CPU) setPair(p uint8, v uint16) {
	switch p {
	case 0:
		cpu.Regs.SetBC(v)
	case 1:
		cpu.Regs.SetDE(v)
	case 2:
		cpu.Regs.SetHL(v)
	default:
		cpu.Regs.SP = v
	}
}

func (cpu *CPU) cond(c uint8) bool {
	switch c {
	case CondNZ:
		return !cpu.Regs.flag(FlagZ)
	case CondZ:
		return cpu.Regs.flag(FlagZ)
	case CondNC:
		return !cpu.Regs.flag(FlagC)
	}
	return cpu.Regs.flag(FlagC)
}
