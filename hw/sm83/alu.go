package sm83

func (cpu *CPU) alu(op uint8, v uint8) {
	r := &cpu.Regs
	switch op {
	case AluADD, AluADC:
		var carry uint8
		if op == AluADC && r.flag(FlagC) {
			carry = 1
		}
		sum := uint16(r.A) + uint16(v) + uint16(carry)
		r.F = 0
		r.setFlag(FlagH, (r.A&0x0F)+(v&0x0F)+carry > 0x0F)
		r.setFlag(FlagC, sum > 0xFF)
		r.A = uint8(sum)
		r.setFlag(FlagZ, r.A == 0)
	case AluSUB, AluSBC, AluCP:
		var carry uint8
		if op == AluSBC && r.flag(FlagC) {
			carry = 1
		}
		res := r.A - v - carry
		r.F = FlagN
		r.setFlag(FlagH, uint16(r.A&0x0F) < uint16(v&0x0F)+uint16(carry))
		r.setFlag(FlagC, uint16(r.A) < uint16(v)+uint16(carry))
		r.setFlag(FlagZ, res == 0)
		if op != AluCP {
			r.A = res
		}
	case AluAND:
		r.A &= v
		r.F = FlagH
		r.setFlag(FlagZ, r.A == 0)
	case AluXOR:
		r.A ^= v
		r.F = 0
		r.setFlag(FlagZ, r.A == 0)
	case AluOR:
		r.A |= v
		r.F = 0
		r.setFlag(FlagZ, r.A == 0)
	}
}

// rotate applies a rotate/shift op to v and sets N, H and C. Z is left to
// the caller since RLCA & co always clear it.
func (cpu *CPU) rotate(op uint8, v uint8) uint8 {
	r := &cpu.Regs
	var res uint8
	var carry bool

	switch op {
	case RotRLC:
		carry = v&0x80 != 0
		res = v<<1 | v>>7
	case RotRRC:
		carry = v&0x01 != 0
		res = v>>1 | v<<7
	case RotRL:
		carry = v&0x80 != 0
		res = v << 1
		if r.flag(FlagC) {
			res |= 0x01
		}
	case RotRR:
		carry = v&0x01 != 0
		res = v >> 1
		if r.flag(FlagC) {
			res |= 0x80
		}
	case RotSLA:
		carry = v&0x80 != 0
		res = v << 1
	case RotSRA:
		carry = v&0x01 != 0
		res = v>>1 | v&0x80
	case RotSWAP:
		res = v<<4 | v>>4
	case RotSRL:
		carry = v&0x01 != 0
		res = v >> 1
	}

	r.setFlag(FlagN, false)
	r.setFlag(FlagH, false)
	r.setFlag(FlagC, carry)
	return res
}

// addSPSigned computes SP+e. H and C come from the unsigned addition of the
// low byte.
func (cpu *CPU) addSPSigned(e uint8) uint16 {
	r := &cpu.Regs
	sp := r.SP
	r.F = 0
	r.setFlag(FlagH, (sp&0x0F)+uint16(e&0x0F) > 0x0F)
	r.setFlag(FlagC, (sp&0xFF)+uint16(e) > 0xFF)
	return uint16(int32(sp) + int32(int8(e)))
}

func (cpu *CPU) daa() {
	r := &cpu.Regs
	a := r.A
	carry := r.flag(FlagC)
	if !r.flag(FlagN) {
		if carry || a > 0x99 {
			a += 0x60
			carry = true
		}
		if r.flag(FlagH) || a&0x0F > 0x09 {
			a += 0x06
		}
	} else {
		if carry {
			a -= 0x60
		}
		if r.flag(FlagH) {
			a -= 0x06
		}
	}
	r.A = a
	r.setFlag(FlagZ, a == 0)
	r.setFlag(FlagH, false)
	r.setFlag(FlagC, carry)
}
