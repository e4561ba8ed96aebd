package z80

import "math/bits"

// szxy holds S, Z, Y and X for each 8-bit result, szpxy adds parity.
var szxy, szpxy [256]uint8

func init() {
	for i := range 256 {
		v := uint8(i)
		f := v & (FlagS | FlagY | FlagX)
		if v == 0 {
			f |= FlagZ
		}
		szxy[i] = f
		szpxy[i] = f
		if bits.OnesCount8(v)%2 == 0 {
			szpxy[i] |= FlagPV
		}
	}
}

// ALU operations, in opcode order.
const (
	aluADD = iota
	aluADC
	aluSUB
	aluSBC
	aluAND
	aluXOR
	aluOR
	aluCP
)

func (cpu *CPU) alu(op uint8, v uint8) {
	r := &cpu.Regs
	a := r.A
	switch op {
	case aluADD, aluADC:
		var c uint16
		if op == aluADC && r.flag(FlagC) {
			c = 1
		}
		sum := uint16(a) + uint16(v) + c
		res := uint8(sum)
		r.F = szxy[res] | (a^v^res)&FlagH
		r.setFlag(FlagPV, (a^res)&(v^res)&0x80 != 0)
		r.setFlag(FlagC, sum > 0xFF)
		r.A = res
	case aluSUB, aluSBC, aluCP:
		var c uint16
		if op == aluSBC && r.flag(FlagC) {
			c = 1
		}
		diff := uint16(a) - uint16(v) - c
		res := uint8(diff)
		r.F = szxy[res]&(FlagS|FlagZ) | (a^v^res)&FlagH | FlagN
		r.setFlag(FlagPV, (a^v)&(a^res)&0x80 != 0)
		r.setFlag(FlagC, diff > 0xFF)
		if op == aluCP {
			// X and Y come from the operand.
			r.F |= v & (FlagX | FlagY)
			return
		}
		r.F |= res & (FlagX | FlagY)
		r.A = res
	case aluAND:
		r.A &= v
		r.F = szpxy[r.A] | FlagH
	case aluXOR:
		r.A ^= v
		r.F = szpxy[r.A]
	case aluOR:
		r.A |= v
		r.F = szpxy[r.A]
	}
}

func (cpu *CPU) inc8(v uint8) uint8 {
	res := v + 1
	r := &cpu.Regs
	r.F = r.F&FlagC | szxy[res]
	r.setFlag(FlagH, v&0x0F == 0x0F)
	r.setFlag(FlagPV, v == 0x7F)
	return res
}

func (cpu *CPU) dec8(v uint8) uint8 {
	res := v - 1
	r := &cpu.Regs
	r.F = r.F&FlagC | szxy[res] | FlagN
	r.setFlag(FlagH, v&0x0F == 0)
	r.setFlag(FlagPV, v == 0x80)
	return res
}

// add16 is ADD HL,rr: S, Z and P/V are preserved.
func (cpu *CPU) add16(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b)
	res := uint16(sum)
	r := &cpu.Regs
	r.F = r.F&(FlagS|FlagZ|FlagPV) | uint8(res>>8)&(FlagX|FlagY)
	r.setFlag(FlagH, (a^b^res)&0x1000 != 0)
	r.setFlag(FlagC, sum > 0xFFFF)
	r.WZ = a + 1
	return res
}

// adc16 and sbc16 are the ED-prefixed HL forms, setting all flags.
func (cpu *CPU) adc16(a, b uint16) uint16 {
	r := &cpu.Regs
	var c uint32
	if r.flag(FlagC) {
		c = 1
	}
	sum := uint32(a) + uint32(b) + c
	res := uint16(sum)
	r.F = uint8(res>>8) & (FlagS | FlagX | FlagY)
	r.setFlag(FlagZ, res == 0)
	r.setFlag(FlagH, (a^b^res)&0x1000 != 0)
	r.setFlag(FlagPV, (a^res)&(b^res)&0x8000 != 0)
	r.setFlag(FlagC, sum > 0xFFFF)
	r.WZ = a + 1
	return res
}

func (cpu *CPU) sbc16(a, b uint16) uint16 {
	r := &cpu.Regs
	var c uint32
	if r.flag(FlagC) {
		c = 1
	}
	diff := uint32(a) - uint32(b) - c
	res := uint16(diff)
	r.F = uint8(res>>8)&(FlagS|FlagX|FlagY) | FlagN
	r.setFlag(FlagZ, res == 0)
	r.setFlag(FlagH, (a^b^res)&0x1000 != 0)
	r.setFlag(FlagPV, (a^b)&(a^res)&0x8000 != 0)
	r.setFlag(FlagC, diff > 0xFFFF)
	r.WZ = a + 1
	return res
}

// Rotate and shift operations of the CB page, in opcode order.
const (
	rotRLC = iota
	rotRRC
	rotRL
	rotRR
	rotSLA
	rotSRA
	rotSLL // undocumented, shifts a 1 in
	rotSRL
)

// rotate applies a CB rotate/shift to v, setting S, Z, P, X, Y and C.
func (cpu *CPU) rotate(op uint8, v uint8) uint8 {
	var res uint8
	var c bool
	carry := cpu.Regs.F & FlagC

	switch op {
	case rotRLC:
		c = v&0x80 != 0
		res = v<<1 | v>>7
	case rotRRC:
		c = v&1 != 0
		res = v>>1 | v<<7
	case rotRL:
		c = v&0x80 != 0
		res = v<<1 | carry
	case rotRR:
		c = v&1 != 0
		res = v>>1 | carry<<7
	case rotSLA:
		c = v&0x80 != 0
		res = v << 1
	case rotSRA:
		c = v&1 != 0
		res = v>>1 | v&0x80
	case rotSLL:
		c = v&0x80 != 0
		res = v<<1 | 1
	case rotSRL:
		c = v&1 != 0
		res = v >> 1
	}
	cpu.Regs.F = szpxy[res]
	cpu.Regs.setFlag(FlagC, c)
	return res
}

// rotateA is RLCA/RRCA/RLA/RRA: like rotate but S, Z and P/V are preserved.
func (cpu *CPU) rotateA(op uint8) {
	r := &cpu.Regs
	f := r.F & (FlagS | FlagZ | FlagPV)
	r.A = cpu.rotate(op, r.A)
	r.F = f | r.F&FlagC | r.A&(FlagX|FlagY)
}

// bit is BIT b,v. X and Y are copied from xy.
func (cpu *CPU) bit(b uint8, v uint8, xy uint8) {
	r := &cpu.Regs
	res := v & (1 << b)
	r.F = r.F&FlagC | FlagH | res&FlagS | xy&(FlagX|FlagY)
	if res == 0 {
		r.F |= FlagZ | FlagPV
	}
}

func (cpu *CPU) daa() {
	r := &cpu.Regs
	a := r.A
	var adjust uint8
	c := r.flag(FlagC)
	if r.flag(FlagH) || a&0x0F > 9 {
		adjust |= 0x06
	}
	if c || a > 0x99 {
		adjust |= 0x60
		c = true
	}

	var res uint8
	if r.flag(FlagN) {
		res = a - adjust
	} else {
		res = a + adjust
	}
	r.F = r.F&FlagN | szpxy[res] | (a^res)&FlagH
	r.setFlag(FlagC, c)
	r.A = res
}
