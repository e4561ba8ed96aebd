package m68k

import "math/bits"

// add returns dst+src+x, truncated to size, with carry and overflow.
func add(size Size, src, dst uint32, x bool) (res uint32, c, v bool) {
	m, msb := size.mask(), size.msb()
	s, d := src&m, dst&m
	sum := uint64(s) + uint64(d)
	if x {
		sum++
	}
	res = uint32(sum) & m
	c = sum > uint64(m)
	v = ^(s^d)&(s^res)&msb != 0
	return res, c, v
}

// sub returns dst-src-x, truncated to size, with borrow and overflow.
func sub(size Size, src, dst uint32, x bool) (res uint32, c, v bool) {
	m, msb := size.mask(), size.msb()
	s, d := src&m, dst&m
	sv := uint64(s)
	if x {
		sv++
	}
	res = (d - uint32(sv)) & m
	c = sv > uint64(d)
	v = (s^d)&(res^d)&msb != 0
	return res, c, v
}

func (cpu *CPU) setNZ(size Size, res uint32) {
	res &= size.mask()
	cpu.setFlag(FlagN, res&size.msb() != 0)
	cpu.setFlag(FlagZ, res == 0)
}

// setLogic sets flags after a logical operation: N and Z from the result,
// V and C cleared, X unchanged.
func (cpu *CPU) setLogic(size Size, res uint32) {
	cpu.setNZ(size, res)
	cpu.Regs.SR &^= FlagV | FlagC
}

// setArith sets all flags after an addition or subtraction.
func (cpu *CPU) setArith(size Size, res uint32, c, v bool) {
	cpu.setNZ(size, res)
	cpu.setFlag(FlagC, c)
	cpu.setFlag(FlagX, c)
	cpu.setFlag(FlagV, v)
}

// setArithX is setArith for ADDX/SUBX/NEGX: Z is only ever cleared.
func (cpu *CPU) setArithX(size Size, res uint32, c, v bool) {
	z := cpu.flag(FlagZ)
	cpu.setArith(size, res, c, v)
	cpu.setFlag(FlagZ, z && res&size.mask() == 0)
}

// cond evaluates a condition code.
func (cpu *CPU) cond(cc uint8) bool {
	c, v, z, n := cpu.flag(FlagC), cpu.flag(FlagV), cpu.flag(FlagZ), cpu.flag(FlagN)
	switch cc & 0xF {
	case 0x0:
		return true
	case 0x1:
		return false
	case 0x2:
		return !c && !z
	case 0x3:
		return c || z
	case 0x4:
		return !c
	case 0x5:
		return c
	case 0x6:
		return !z
	case 0x7:
		return z
	case 0x8:
		return !v
	case 0x9:
		return v
	case 0xA:
		return !n
	case 0xB:
		return n
	case 0xC:
		return n == v
	case 0xD:
		return n != v
	case 0xE:
		return n == v && !z
	}
	return z || n != v
}

// shift performs count steps of a shift or rotate on v and sets the flags.
func (cpu *CPU) shift(k Kind, size Size, v uint32, count uint32) uint32 {
	m, msb := size.mask(), size.msb()
	v &= m

	c := false
	overflow := false
	x := cpu.flag(FlagX)
	for range count {
		switch k {
		case ASL, LSL, ROL, ROXL:
			c = v&msb != 0
			v = v << 1 & m
			switch k {
			case ROL:
				if c {
					v |= 1
				}
			case ROXL:
				if x {
					v |= 1
				}
				x = c
			case ASL:
				if (v&msb != 0) != c {
					overflow = true
				}
			}
		default:
			c = v&1 != 0
			top := v & msb
			v >>= 1
			switch k {
			case ASR:
				v |= top
			case ROR:
				if c {
					v |= msb
				}
			case ROXR:
				if x {
					v |= msb
				}
				x = c
			}
		}
	}

	cpu.setNZ(size, v)
	cpu.setFlag(FlagV, overflow)
	switch {
	case k == ROXL || k == ROXR:
		// C is X when count is 0.
		cpu.setFlag(FlagX, x)
		cpu.setFlag(FlagC, x)
	case count == 0:
		cpu.setFlag(FlagC, false)
	case k == ROL || k == ROR:
		cpu.setFlag(FlagC, c)
	default:
		cpu.setFlag(FlagC, c)
		cpu.setFlag(FlagX, c)
	}
	return v
}

// mulsTime returns the number of 01/10 transitions in src (with an implicit
// 0 below bit 0), which drives MULS timing.
func mulsTime(src uint16) uint32 {
	return uint32(bits.OnesCount16(src ^ src<<1))
}
