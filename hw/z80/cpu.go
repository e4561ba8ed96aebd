// Package z80 implements a Zilog Z80 CPU core, including the undocumented
// IXH/IXL/IYH/IYL forms, the DDCB/FDCB register copies and the X/Y flags.
//
// ExecuteInstruction runs one instruction, services an interrupt or idles,
// and returns the number of elapsed T-states.
package z80

import "retrocore/emu/log"

var modZ80 = log.NewModule("z80")

// Bus is the Z80 view of the system: memory and I/O spaces plus the state of
// the input lines, sampled at instruction boundaries.
type Bus interface {
	ReadMemory(addr uint16) uint8
	WriteMemory(addr uint16, val uint8)
	ReadIO(port uint16) uint8
	WriteIO(port uint16, val uint8)

	NMI() bool    // NMI line asserted, edge triggered
	INT() bool    // INT line asserted, level triggered
	BusReq() bool // BUSREQ asserted, the CPU doesn't execute
	Reset() bool  // RESET asserted, the CPU is held in reset
}

// Flag register bits.
const (
	FlagC  uint8 = 1 << 0
	FlagN  uint8 = 1 << 1
	FlagPV uint8 = 1 << 2
	FlagX  uint8 = 1 << 3
	FlagH  uint8 = 1 << 4
	FlagY  uint8 = 1 << 5
	FlagZ  uint8 = 1 << 6
	FlagS  uint8 = 1 << 7
)

const (
	nmiVector  = 0x0066
	im1Vector  = 0x0038
	idleCycles = 1 // returned while held by BUSREQ or RESET
)

type Registers struct {
	A, F, B, C, D, E, H, L         uint8
	A2, F2, B2, C2, D2, E2, H2, L2 uint8 // alternate set

	IX, IY uint16
	SP, PC uint16
	I, R   uint8
	WZ     uint16 // internal MEMPTR

	IFF1, IFF2 bool
	IM         uint8
}

func (r *Registers) BC() uint16 { return uint16(r.B)<<8 | uint16(r.C) }
func (r *Registers) DE() uint16 { return uint16(r.D)<<8 | uint16(r.E) }
func (r *Registers) HL() uint16 { return uint16(r.H)<<8 | uint16(r.L) }
func (r *Registers) AF() uint16 { return uint16(r.A)<<8 | uint16(r.F) }

func (r *Registers) SetBC(v uint16) { r.B, r.C = uint8(v>>8), uint8(v) }
func (r *Registers) SetDE(v uint16) { r.D, r.E = uint8(v>>8), uint8(v) }
func (r *Registers) SetHL(v uint16) { r.H, r.L = uint8(v>>8), uint8(v) }
func (r *Registers) SetAF(v uint16) { r.A, r.F = uint8(v>>8), uint8(v) }

func (r *Registers) flag(f uint8) bool { return r.F&f != 0 }

func (r *Registers) setFlag(f uint8, v bool) {
	if v {
		r.F |= f
	} else {
		r.F &^= f
	}
}

type CPU struct {
	Regs   Registers
	Halted bool

	eiDelay    bool // EI was the last instruction, INT isn't sampled
	prevNMI    bool
	nmiPending bool

	// index is the register replacing HL after a DD/FD prefix.
	index  *uint16
	cycles uint32
}

func New() *CPU {
	cpu := &CPU{}
	cpu.Reset()
	return cpu
}

func (cpu *CPU) AddLogContext(z *log.EntryZ) {
	z.Hex16("z80pc", cpu.Regs.PC)
}

// Reset puts the CPU in its power-on state: PC, I, R cleared, interrupts
// disabled in mode 0, AF and SP set to $FFFF.
func (cpu *CPU) Reset() {
	cpu.Regs = Registers{
		A: 0xFF, F: 0xFF,
		SP: 0xFFFF,
		IX: 0xFFFF, IY: 0xFFFF,
	}
	cpu.Halted = false
	cpu.eiDelay = false
	cpu.prevNMI = false
	cpu.nmiPending = false
	cpu.index = nil
}

// ExecuteInstruction services a pending interrupt or runs one instruction
// and returns the elapsed T-states. While RESET is asserted the CPU is reset
// and idles, while BUSREQ is asserted it only idles.
func (cpu *CPU) ExecuteInstruction(bus Bus) uint32 {
	if bus.Reset() {
		cpu.Reset()
		return idleCycles
	}
	if bus.BusReq() {
		return idleCycles
	}

	cpu.cycles = 0

	nmi := bus.NMI()
	if nmi && !cpu.prevNMI {
		cpu.nmiPending = true
	}
	cpu.prevNMI = nmi

	switch {
	case cpu.nmiPending:
		cpu.nmiPending = false
		cpu.serviceNMI(bus)
	case cpu.Regs.IFF1 && !cpu.eiDelay && bus.INT():
		cpu.serviceINT(bus)
	case cpu.Halted:
		// HALT executes NOPs until an interrupt.
		cpu.incR()
		cpu.cycles = 4
	default:
		cpu.eiDelay = false
		cpu.step(bus)
	}
	return cpu.cycles
}

func (cpu *CPU) serviceNMI(bus Bus) {
	cpu.Halted = false
	cpu.incR()
	cpu.Regs.IFF1 = false
	cpu.cycles += 5
	cpu.push(bus, cpu.Regs.PC)
	cpu.Regs.PC = nmiVector
	cpu.Regs.WZ = nmiVector
}

// serviceINT accepts a maskable interrupt. Nothing drives the data bus
// during the acknowledge cycle, it reads $FF: mode 0 executes RST $38 and
// mode 2 reads the vector at I<<8|$FF.
func (cpu *CPU) serviceINT(bus Bus) {
	cpu.Halted = false
	cpu.incR()
	cpu.Regs.IFF1, cpu.Regs.IFF2 = false, false

	cpu.cycles += 7
	cpu.push(bus, cpu.Regs.PC)
	if cpu.Regs.IM == 2 {
		cpu.Regs.PC = cpu.read16(bus, uint16(cpu.Regs.I)<<8|0xFF)
	} else {
		cpu.Regs.PC = im1Vector
	}
	cpu.Regs.WZ = cpu.Regs.PC
}

func (cpu *CPU) incR() {
	cpu.Regs.R = cpu.Regs.R&0x80 | (cpu.Regs.R+1)&0x7F
}

func (cpu *CPU) internal(n uint32) { cpu.cycles += n }

// Bus accesses, counting T-states.

func (cpu *CPU) fetchOpcode(bus Bus) uint8 {
	cpu.cycles += 4
	cpu.incR()
	op := bus.ReadMemory(cpu.Regs.PC)
	cpu.Regs.PC++
	return op
}

func (cpu *CPU) read(bus Bus, addr uint16) uint8 {
	cpu.cycles += 3
	return bus.ReadMemory(addr)
}

func (cpu *CPU) write(bus Bus, addr uint16, val uint8) {
	cpu.cycles += 3
	bus.WriteMemory(addr, val)
}

func (cpu *CPU) read16(bus Bus, addr uint16) uint16 {
	lo := cpu.read(bus, addr)
	hi := cpu.read(bus, addr+1)
	return uint16(hi)<<8 | uint16(lo)
}

func (cpu *CPU) write16(bus Bus, addr, val uint16) {
	cpu.write(bus, addr, uint8(val))
	cpu.write(bus, addr+1, uint8(val>>8))
}

func (cpu *CPU) in(bus Bus, port uint16) uint8 {
	cpu.cycles += 4
	return bus.ReadIO(port)
}

func (cpu *CPU) out(bus Bus, port uint16, val uint8) {
	cpu.cycles += 4
	bus.WriteIO(port, val)
}

func (cpu *CPU) fetch(bus Bus) uint8 {
	v := cpu.read(bus, cpu.Regs.PC)
	cpu.Regs.PC++
	return v
}

func (cpu *CPU) fetch16(bus Bus) uint16 {
	v := cpu.read16(bus, cpu.Regs.PC)
	cpu.Regs.PC += 2
	return v
}

func (cpu *CPU) push(bus Bus, v uint16) {
	cpu.Regs.SP--
	cpu.write(bus, cpu.Regs.SP, uint8(v>>8))
	cpu.Regs.SP--
	cpu.write(bus, cpu.Regs.SP, uint8(v))
}

func (cpu *CPU) pop(bus Bus) uint16 {
	v := cpu.read16(bus, cpu.Regs.SP)
	cpu.Regs.SP += 2
	return v
}
