package m68k

import "math/bits"

func regOrImm(o Operand) bool {
	return o.Mode == DataReg || o.Mode == AddrReg || o.Mode == Immediate
}

func (cpu *CPU) execute(bus Bus, in Instruction, op uint16) {
	switch in.Kind {
	case Illegal:
		cpu.illegal(bus, vecIllegal, op)
	case Unimplemented:
		modM68K.WarnZ("unimplemented instruction").Hex16("op", op).End()
		cpu.illegal(bus, vecIllegal, op)
	case LineA:
		cpu.illegal(bus, vecLineA, op)
	case LineF:
		cpu.illegal(bus, vecLineF, op)

	case ORI, ANDI, EORI, SUBI, ADDI, CMPI:
		src := cpu.readEA(bus, in.Src, in.Size)
		if in.Dst.Mode == DataReg && in.Size == Long {
			if in.Kind == CMPI {
				cpu.internal(2)
			} else {
				cpu.internal(4)
			}
		}
		cpu.binary(bus, in.Kind, in.Size, src, in.Dst)
	case ORI_CCR, ANDI_CCR, EORI_CCR:
		src := cpu.readEA(bus, in.Src, Byte)
		ccr := uint8(cpu.Regs.SR)
		cpu.setCCR(uint8(logic(in.Kind, uint32(ccr), src)))
		cpu.internal(12)
	case ORI_SR, ANDI_SR, EORI_SR:
		if !cpu.privileged(bus, op) {
			return
		}
		src := cpu.readEA(bus, in.Src, Word)
		cpu.setSR(uint16(logic(in.Kind, uint32(cpu.Regs.SR), src)))
		cpu.internal(12)

	case BTST, BCHG, BCLR, BSET:
		cpu.bitOp(bus, in)

	case MOVE:
		v := cpu.readEA(bus, in.Src, in.Size)
		if in.Dst.Mode == PreDec {
			cpu.cycles -= 2 // no predecrement penalty on MOVE destination
		}
		cpu.store(bus, cpu.resolve(bus, in.Dst, in.Size), in.Size, v)
		cpu.setLogic(in.Size, v)
	case MOVEA:
		v := signExtend(cpu.readEA(bus, in.Src, in.Size), in.Size)
		*cpu.a(in.Dst.Reg) = v
	case MOVEQ:
		v := signExtend(uint32(in.Data), Byte)
		cpu.Regs.D[in.Dst.Reg] = v
		cpu.setLogic(Long, v)
	case MOVE_FROM_SR:
		loc := cpu.resolve(bus, in.Dst, Word)
		if loc.mode == DataReg {
			cpu.internal(2)
		} else {
			cpu.load(bus, loc, Word)
		}
		cpu.store(bus, loc, Word, uint32(cpu.Regs.SR))
	case MOVE_TO_CCR:
		v := cpu.readEA(bus, in.Src, Word)
		cpu.setCCR(uint8(v))
		cpu.internal(8)
	case MOVE_TO_SR:
		if !cpu.privileged(bus, op) {
			return
		}
		v := cpu.readEA(bus, in.Src, Word)
		cpu.setSR(uint16(v))
		cpu.internal(8)
	case MOVE_USP:
		if !cpu.privileged(bus, op) {
			return
		}
		if in.Data == 0 {
			cpu.Regs.USP = *cpu.a(in.Src.Reg)
		} else {
			*cpu.a(in.Dst.Reg) = cpu.Regs.USP
		}
	case MOVEM:
		cpu.movem(bus, in)

	case NEGX, NEG:
		cpu.unaryTime(in)
		cpu.modify(bus, in.Dst, in.Size, func(v uint32) uint32 {
			x := in.Kind == NEGX && cpu.flag(FlagX)
			res, c, ov := sub(in.Size, v, 0, x)
			if in.Kind == NEGX {
				cpu.setArithX(in.Size, res, c, ov)
			} else {
				cpu.setArith(in.Size, res, c, ov)
			}
			return res
		})
	case NOT:
		cpu.unaryTime(in)
		cpu.modify(bus, in.Dst, in.Size, func(v uint32) uint32 {
			res := ^v & in.Size.mask()
			cpu.setLogic(in.Size, res)
			return res
		})
	case CLR:
		cpu.unaryTime(in)
		// The 68000 reads the operand before clearing it.
		cpu.modify(bus, in.Dst, in.Size, func(uint32) uint32 {
			cpu.setLogic(in.Size, 0)
			return 0
		})
	case TST:
		cpu.setLogic(in.Size, cpu.readEA(bus, in.Dst, in.Size))
	case EXT:
		d := &cpu.Regs.D[in.Dst.Reg]
		if in.Size == Word {
			v := signExtend(*d, Byte) & 0xFFFF
			*d = *d&0xFFFF0000 | v
			cpu.setLogic(Word, v)
		} else {
			*d = signExtend(*d, Word)
			cpu.setLogic(Long, *d)
		}
	case SWAP:
		d := &cpu.Regs.D[in.Dst.Reg]
		*d = bits.RotateLeft32(*d, 16)
		cpu.setLogic(Long, *d)
	case TAS:
		loc := cpu.resolve(bus, in.Dst, Byte)
		v := cpu.load(bus, loc, Byte)
		cpu.setLogic(Byte, v)
		switch {
		case loc.mode == DataReg:
			cpu.store(bus, loc, Byte, v|0x80)
		case cpu.DisableTASWrite:
			cpu.internal(6 + 4)
		default:
			cpu.internal(6)
			cpu.store(bus, loc, Byte, v|0x80)
		}

	case LEA:
		loc := cpu.resolve(bus, in.Src, Long)
		*cpu.a(in.Dst.Reg) = loc.addr
		if in.Src.Mode == Index || in.Src.Mode == PCIndex {
			cpu.internal(2)
		}
	case PEA:
		loc := cpu.resolve(bus, in.Src, Long)
		if in.Src.Mode == Index || in.Src.Mode == PCIndex {
			cpu.internal(2)
		}
		cpu.push(bus, loc.addr, Long)
	case CHK:
		bound := signExtend(cpu.readEA(bus, in.Src, Word), Word)
		v := int32(signExtend(cpu.Regs.D[in.Dst.Reg], Word))
		cpu.internal(6)
		switch {
		case v < 0:
			cpu.setFlag(FlagN, true)
		case v > int32(bound):
			cpu.setFlag(FlagN, false)
		default:
			return
		}
		cpu.exception(bus, vecCHK)
		cpu.internal(2)
	case LINK:
		an := cpu.a(in.Dst.Reg)
		cpu.push(bus, *an, Long)
		*an = cpu.SP()
		disp := signExtend(uint32(cpu.fetch(bus)), Word)
		*cpu.a(7) += disp
	case UNLK:
		*cpu.a(7) = *cpu.a(in.Dst.Reg)
		*cpu.a(in.Dst.Reg) = cpu.pop(bus, Long)
	case EXG:
		x, y := cpu.exgReg(in.Src), cpu.exgReg(in.Dst)
		*x, *y = *y, *x
		cpu.internal(2)

	case TRAP:
		cpu.exception(bus, vecTrapBase+in.Data)
		cpu.internal(2)
	case TRAPV:
		if cpu.flag(FlagV) {
			cpu.exception(bus, vecTRAPV)
			cpu.internal(2)
		}
	case RESET:
		if !cpu.privileged(bus, op) {
			return
		}
		modM68K.DebugZ("RESET instruction").Hex32("pc", cpu.instrPC).End()
		cpu.internal(128)
	case NOP:
	case STOP:
		if !cpu.privileged(bus, op) {
			return
		}
		cpu.setSR(uint16(cpu.fetch(bus)))
		cpu.Stopped = true
	case RTE:
		if !cpu.privileged(bus, op) {
			return
		}
		sr := uint16(cpu.pop(bus, Word))
		cpu.Regs.PC = cpu.pop(bus, Long)
		cpu.setSR(sr)
		cpu.internal(4)
	case RTS:
		cpu.Regs.PC = cpu.pop(bus, Long)
		cpu.internal(4)
	case RTR:
		ccr := cpu.pop(bus, Word)
		cpu.Regs.PC = cpu.pop(bus, Long)
		cpu.setCCR(uint8(ccr))
		cpu.internal(4)
	case JMP:
		loc := cpu.resolve(bus, in.Src, Long)
		cpu.internal(jumpTime[in.Src.Mode])
		cpu.Regs.PC = loc.addr
	case JSR:
		loc := cpu.resolve(bus, in.Src, Long)
		cpu.internal(jumpTime[in.Src.Mode])
		cpu.push(bus, cpu.Regs.PC, Long)
		cpu.Regs.PC = loc.addr

	case ADDQ, SUBQ:
		cpu.quick(bus, in)
	case Scc:
		loc := cpu.resolve(bus, in.Dst, Byte)
		v := uint32(0)
		if cpu.cond(in.Cond) {
			v = 0xFF
			if loc.mode == DataReg {
				cpu.internal(2)
			}
		}
		if loc.mode != DataReg {
			cpu.load(bus, loc, Byte)
		}
		cpu.store(bus, loc, Byte, v)
	case DBcc:
		cpu.dbcc(bus, in)
	case BRA, BSR, Bcc:
		cpu.branch(bus, in)

	case OR, AND, EOR, ADD, SUB, CMP:
		cpu.arith(bus, in)
	case ADDA, SUBA, CMPA:
		loc := cpu.resolve(bus, in.Src, in.Size)
		src := signExtend(cpu.load(bus, loc, in.Size), in.Size)
		an := cpu.a(in.Dst.Reg)
		switch {
		case in.Kind == CMPA:
			res, c, v := sub(Long, src, *an, false)
			cpu.setNZ(Long, res)
			cpu.setFlag(FlagC, c)
			cpu.setFlag(FlagV, v)
			cpu.internal(2)
			return
		case in.Kind == ADDA:
			*an += src
		default:
			*an -= src
		}
		switch {
		case in.Size == Word || regOrImm(in.Src):
			cpu.internal(4)
		default:
			cpu.internal(2)
		}
	case ADDX, SUBX:
		src := cpu.readEA(bus, in.Src, in.Size)
		dst := cpu.resolve(bus, in.Dst, in.Size)
		d := cpu.load(bus, dst, in.Size)
		fn := add
		if in.Kind == SUBX {
			fn = sub
		}
		res, c, v := fn(in.Size, src, d, cpu.flag(FlagX))
		cpu.setArithX(in.Size, res, c, v)
		cpu.store(bus, dst, in.Size, res)
		switch {
		case in.Src.Mode == PreDec:
			cpu.cycles -= 2
		case in.Size == Long:
			cpu.internal(4)
		}
	case CMPM:
		src := cpu.readEA(bus, in.Src, in.Size)
		dst := cpu.readEA(bus, in.Dst, in.Size)
		res, c, v := sub(in.Size, src, dst, false)
		cpu.setNZ(in.Size, res)
		cpu.setFlag(FlagC, c)
		cpu.setFlag(FlagV, v)
	case MULU, MULS:
		cpu.mul(bus, in)
	case DIVU, DIVS:
		cpu.div(bus, in, op)

	case ASL, ASR, LSL, LSR, ROXL, ROXR, ROL, ROR:
		if in.Dst.Mode != DataReg {
			cpu.modify(bus, in.Dst, Word, func(v uint32) uint32 {
				return cpu.shift(in.Kind, Word, v, 1)
			})
			return
		}
		count := uint32(in.Data)
		if in.Src.Mode == DataReg {
			count = cpu.Regs.D[in.Src.Reg] & 63
		}
		d := &cpu.Regs.D[in.Dst.Reg]
		res := cpu.shift(in.Kind, in.Size, *d, count)
		*d = *d&^in.Size.mask() | res
		cpu.internal(2 + 2*count)
		if in.Size == Long {
			cpu.internal(2)
		}
	}
}

func logic(k Kind, src, dst uint32) uint32 {
	switch k {
	case OR, ORI, ORI_CCR, ORI_SR:
		return dst | src
	case AND, ANDI, ANDI_CCR, ANDI_SR:
		return dst & src
	}
	return dst ^ src
}

// binary applies an ALU operation with src to dst, storing the result
// unless it's a comparison.
func (cpu *CPU) binary(bus Bus, k Kind, size Size, src uint32, dst Operand) {
	loc := cpu.resolve(bus, dst, size)
	d := cpu.load(bus, loc, size)

	var res uint32
	switch k {
	case ADD, ADDI:
		var c, v bool
		res, c, v = add(size, src, d, false)
		cpu.setArith(size, res, c, v)
	case SUB, SUBI:
		var c, v bool
		res, c, v = sub(size, src, d, false)
		cpu.setArith(size, res, c, v)
	case CMP, CMPI:
		r, c, v := sub(size, src, d, false)
		cpu.setNZ(size, r)
		cpu.setFlag(FlagC, c)
		cpu.setFlag(FlagV, v)
		return
	default:
		res = logic(k, src, d) & size.mask()
		cpu.setLogic(size, res)
	}
	cpu.store(bus, loc, size, res)
}

// arith executes OR/AND/EOR/ADD/SUB/CMP in both <ea>,Dn and Dn,<ea> forms.
func (cpu *CPU) arith(bus Bus, in Instruction) {
	src := cpu.readEA(bus, in.Src, in.Size)
	if in.Dst.Mode == DataReg && in.Size == Long {
		switch {
		case in.Kind == CMP:
			cpu.internal(2)
		case regOrImm(in.Src):
			cpu.internal(4)
		default:
			cpu.internal(2)
		}
	}
	cpu.binary(bus, in.Kind, in.Size, src, in.Dst)
}

// unaryTime adds the internal time of NEG/NEGX/NOT/CLR on a data register.
func (cpu *CPU) unaryTime(in Instruction) {
	if in.Dst.Mode == DataReg && in.Size == Long {
		cpu.internal(2)
	}
}

func (cpu *CPU) quick(bus Bus, in Instruction) {
	data := uint32(in.Data)
	if in.Dst.Mode == AddrReg {
		// Address registers are always modified whole, without flags.
		an := cpu.a(in.Dst.Reg)
		if in.Kind == ADDQ {
			*an += data
		} else {
			*an -= data
		}
		cpu.internal(4)
		return
	}
	if in.Dst.Mode == DataReg && in.Size == Long {
		cpu.internal(4)
	}
	k := ADD
	if in.Kind == SUBQ {
		k = SUB
	}
	cpu.binary(bus, k, in.Size, data, in.Dst)
}

func (cpu *CPU) exgReg(o Operand) *uint32 {
	if o.Mode == AddrReg {
		return cpu.a(o.Reg)
	}
	return &cpu.Regs.D[o.Reg]
}

func (cpu *CPU) bitOp(bus Bus, in Instruction) {
	var bit uint32
	if in.Src.Mode == Immediate {
		bit = uint32(cpu.fetch(bus))
	} else {
		bit = cpu.Regs.D[in.Src.Reg]
	}
	if in.Size == Long {
		bit &= 31
	} else {
		bit &= 7
	}

	loc := cpu.resolve(bus, in.Dst, in.Size)
	v := cpu.load(bus, loc, in.Size)
	cpu.setFlag(FlagZ, v&(1<<bit) == 0)

	reg := loc.mode == DataReg
	switch in.Kind {
	case BTST:
		if reg {
			cpu.internal(2)
		}
		return
	case BCHG:
		v ^= 1 << bit
	case BCLR:
		v &^= 1 << bit
		if reg {
			cpu.internal(2)
		}
	case BSET:
		v |= 1 << bit
	}
	if reg {
		cpu.internal(4)
	}
	cpu.store(bus, loc, in.Size, v)
}

// movem moves a list of registers to or from memory. The mask bit order is
// D0-D7/A0-A7, reversed for -(An).
func (cpu *CPU) movem(bus Bus, in Instruction) {
	mask := cpu.fetch(bus)
	size := in.Size
	step := uint32(size)

	reg := func(i int) *uint32 {
		if i < 8 {
			return &cpu.Regs.D[i]
		}
		return cpu.a(uint8(i - 8))
	}

	if in.Data == 0 {
		if in.Dst.Mode == PreDec {
			an := cpu.a(in.Dst.Reg)
			addr := *an
			for i := 15; i >= 0; i-- {
				if mask&(1<<(15-i)) == 0 {
					continue
				}
				addr -= step
				cpu.write(bus, addr, size, *reg(i))
			}
			*an = addr
			return
		}
		addr := cpu.resolve(bus, in.Dst, size).addr
		for i := range 16 {
			if mask&(1<<i) != 0 {
				cpu.write(bus, addr, size, *reg(i))
				addr += step
			}
		}
		return
	}

	var addr uint32
	if in.Src.Mode == PostInc {
		addr = *cpu.a(in.Src.Reg)
	} else {
		addr = cpu.resolve(bus, in.Src, size).addr
	}
	for i := range 16 {
		if mask&(1<<i) != 0 {
			*reg(i) = signExtend(cpu.read(bus, addr, size), size)
			addr += step
		}
	}
	if in.Src.Mode == PostInc {
		*cpu.a(in.Src.Reg) = addr
	}
	// Extra prefetch read.
	cpu.internal(4)
}

func (cpu *CPU) dbcc(bus Bus, in Instruction) {
	base := cpu.Regs.PC
	disp := signExtend(uint32(cpu.fetch(bus)), Word)
	if cpu.cond(in.Cond) {
		cpu.internal(4)
		return
	}
	d := &cpu.Regs.D[in.Dst.Reg]
	counter := uint16(*d) - 1
	*d = *d&0xFFFF0000 | uint32(counter)
	if counter == 0xFFFF {
		cpu.internal(6)
		return
	}
	cpu.Regs.PC = base + disp
	cpu.internal(2)
}

func (cpu *CPU) branch(bus Bus, in Instruction) {
	base := cpu.Regs.PC
	disp := signExtend(uint32(in.Data), Byte)
	short := in.Data != 0
	if !short {
		disp = signExtend(uint32(cpu.fetch(bus)), Word)
	}

	if in.Kind == Bcc && !cpu.cond(in.Cond) {
		cpu.internal(4)
		return
	}
	if in.Kind == BSR {
		cpu.push(bus, cpu.Regs.PC, Long)
	}
	cpu.Regs.PC = base + disp
	if short {
		cpu.internal(6)
	} else {
		cpu.internal(2)
	}
}

func (cpu *CPU) mul(bus Bus, in Instruction) {
	src := cpu.readEA(bus, in.Src, Word)
	d := &cpu.Regs.D[in.Dst.Reg]

	var res uint32
	if in.Kind == MULU {
		res = src * (*d & 0xFFFF)
		cpu.internal(34 + 2*uint32(bits.OnesCount16(uint16(src))))
	} else {
		res = uint32(int32(int16(src)) * int32(int16(*d)))
		cpu.internal(34 + 2*mulsTime(uint16(src)))
	}
	*d = res
	cpu.setLogic(Long, res)
}

func (cpu *CPU) div(bus Bus, in Instruction, op uint16) {
	src := cpu.readEA(bus, in.Src, Word)
	d := &cpu.Regs.D[in.Dst.Reg]

	if src == 0 {
		cpu.setFlag(FlagC, false)
		cpu.exception(bus, vecZeroDivide)
		cpu.internal(6)
		return
	}

	var quot, rem uint32
	if in.Kind == DIVU {
		q := *d / src
		if q > 0xFFFF {
			cpu.divOverflow(6)
			return
		}
		quot, rem = q, *d%src
		cpu.internal(136)
	} else {
		dividend := int64(int32(*d))
		divisor := int64(int16(src))
		q := dividend / divisor
		if q < -0x8000 || q > 0x7FFF {
			cpu.divOverflow(12)
			return
		}
		quot, rem = uint32(q), uint32(dividend%divisor)
		cpu.internal(154)
	}
	*d = rem<<16 | quot&0xFFFF
	cpu.setLogic(Word, quot)
}

// divOverflow leaves the destination unchanged and sets V.
func (cpu *CPU) divOverflow(cycles uint32) {
	cpu.setFlag(FlagV, true)
	cpu.setFlag(FlagN, true)
	cpu.setFlag(FlagC, false)
	cpu.internal(cycles)
}
