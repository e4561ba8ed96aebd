package m68k

// location is a resolved effective address: a register, a memory address or
// an immediate value. Extension words have been fetched and address
// register side effects ((An)+, -(An)) applied.
type location struct {
	mode Mode
	reg  uint8
	addr uint32
	imm  uint32
}

func signExtend(v uint32, size Size) uint32 {
	switch size {
	case Byte:
		return uint32(int32(int8(v)))
	case Word:
		return uint32(int32(int16(v)))
	}
	return v
}

// incr is the (An)+/-(An) step, the stack pointer stays word aligned.
func incr(reg uint8, size Size) uint32 {
	if reg == 7 && size == Byte {
		return 2
	}
	return uint32(size)
}

// index computes base + Xn + d8 from a brief extension word.
func (cpu *CPU) index(bus Bus, base uint32) uint32 {
	ext := cpu.fetch(bus)
	r := uint8(ext >> 12 & 7)

	var x uint32
	if ext&0x8000 != 0 {
		x = *cpu.a(r)
	} else {
		x = cpu.Regs.D[r]
	}
	if ext&0x0800 == 0 {
		x = signExtend(x, Word)
	}
	cpu.internal(2)
	return base + x + signExtend(uint32(ext), Byte)
}

// resolve computes the effective address of op.
func (cpu *CPU) resolve(bus Bus, op Operand, size Size) location {
	loc := location{mode: op.Mode, reg: op.Reg}

	switch op.Mode {
	case DataReg, AddrReg:
	case AddrInd:
		loc.addr = *cpu.a(op.Reg)
	case PostInc:
		an := cpu.a(op.Reg)
		loc.addr = *an
		*an += incr(op.Reg, size)
	case PreDec:
		cpu.internal(2)
		an := cpu.a(op.Reg)
		*an -= incr(op.Reg, size)
		loc.addr = *an
	case Disp:
		base := *cpu.a(op.Reg)
		loc.addr = base + signExtend(uint32(cpu.fetch(bus)), Word)
	case Index:
		loc.addr = cpu.index(bus, *cpu.a(op.Reg))
	case AbsShort:
		loc.addr = signExtend(uint32(cpu.fetch(bus)), Word)
	case AbsLong:
		loc.addr = cpu.fetchLong(bus)
	case PCDisp:
		base := cpu.Regs.PC
		loc.addr = base + signExtend(uint32(cpu.fetch(bus)), Word)
	case PCIndex:
		loc.addr = cpu.index(bus, cpu.Regs.PC)
	case Immediate:
		if size == Long {
			loc.imm = cpu.fetchLong(bus)
		} else {
			loc.imm = uint32(cpu.fetch(bus)) & size.mask()
		}
	}
	return loc
}

func (cpu *CPU) load(bus Bus, loc location, size Size) uint32 {
	switch loc.mode {
	case DataReg:
		return cpu.Regs.D[loc.reg] & size.mask()
	case AddrReg:
		return *cpu.a(loc.reg) & size.mask()
	case Immediate:
		return loc.imm
	}
	return cpu.read(bus, loc.addr, size)
}

// store writes v to loc. Writing a data register only changes the low byte
// or word; address registers are always written whole.
func (cpu *CPU) store(bus Bus, loc location, size Size, v uint32) {
	switch loc.mode {
	case DataReg:
		d := &cpu.Regs.D[loc.reg]
		*d = *d&^size.mask() | v&size.mask()
	case AddrReg:
		*cpu.a(loc.reg) = signExtend(v, size)
	default:
		cpu.write(bus, loc.addr, size, v)
	}
}

// readEA resolves and reads op.
func (cpu *CPU) readEA(bus Bus, op Operand, size Size) uint32 {
	return cpu.load(bus, cpu.resolve(bus, op, size), size)
}

// modify reads op, applies fn and writes the result back.
func (cpu *CPU) modify(bus Bus, op Operand, size Size, fn func(uint32) uint32) {
	loc := cpu.resolve(bus, op, size)
	cpu.store(bus, loc, size, fn(cpu.load(bus, loc, size)))
}

// jumpTime is the extra time taken by JMP/JSR/LEA/PEA-like instructions
// for each control addressing mode, beyond the extension word fetches.
var jumpTime = [...]uint32{
	AddrInd:  4,
	Disp:     2,
	Index:    4,
	AbsShort: 2,
	AbsLong:  0,
	PCDisp:   2,
	PCIndex:  4,
}
