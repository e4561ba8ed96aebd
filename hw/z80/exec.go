package z80

// Opcodes are decoded from their x/y/z/p/q fields:
//
//	x = op[7:6]  y = op[5:3]  z = op[2:0]  p = y>>1  q = y&1
func fields(op uint8) (x, y, z, p, q uint8) {
	x, y, z = op>>6, op>>3&7, op&7
	return x, y, z, y >> 1, y & 1
}

func (cpu *CPU) step(bus Bus) {
	op := cpu.fetchOpcode(bus)
	switch op {
	case 0xCB:
		cpu.executeCB(bus)
	case 0xED:
		cpu.executeED(bus)
	case 0xDD:
		cpu.executeIndexed(bus, &cpu.Regs.IX)
	case 0xFD:
		cpu.executeIndexed(bus, &cpu.Regs.IY)
	default:
		cpu.execute(bus, op)
	}
}

func (cpu *CPU) executeIndexed(bus Bus, index *uint16) {
	op := cpu.fetchOpcode(bus)
	switch op {
	case 0xDD, 0xFD, 0xED:
		// The prefix was a NOP, the next one starts a new instruction.
		cpu.Regs.PC--
		cpu.Regs.R = cpu.Regs.R&0x80 | (cpu.Regs.R-1)&0x7F
		cpu.cycles -= 4
		return
	case 0xCB:
		cpu.executeIndexedCB(bus, index)
		return
	}

	cpu.index = index
	cpu.execute(bus, op)
	cpu.index = nil
}

// hl returns HL, or IX/IY after a prefix.
func (cpu *CPU) hl() uint16 {
	if cpu.index != nil {
		return *cpu.index
	}
	return cpu.Regs.HL()
}

func (cpu *CPU) setHL(v uint16) {
	if cpu.index != nil {
		*cpu.index = v
		return
	}
	cpu.Regs.SetHL(v)
}

// hlAddr returns the address of the (HL) operand, (IX+d) or (IY+d) after a
// prefix, in which case the displacement is fetched.
func (cpu *CPU) hlAddr(bus Bus) uint16 {
	if cpu.index == nil {
		return cpu.Regs.HL()
	}
	d := int8(cpu.fetch(bus))
	cpu.internal(5)
	addr := *cpu.index + uint16(int16(d))
	cpu.Regs.WZ = addr
	return addr
}

// reg8 returns the register encoded by r (B, C, D, E, H, L, -, A). When idx
// is set and a prefix is active, H and L stand for the index register halves.
func (cpu *CPU) reg8(r uint8, idx bool) uint8 {
	regs := &cpu.Regs
	switch r {
	case 0:
		return regs.B
	case 1:
		return regs.C
	case 2:
		return regs.D
	case 3:
		return regs.E
	case 4:
		if idx && cpu.index != nil {
			return uint8(*cpu.index >> 8)
		}
		return regs.H
	case 5:
		if idx && cpu.index != nil {
			return uint8(*cpu.index)
		}
		return regs.L
	case 7:
		return regs.A
	}
	panic("z80: reg8 called with (HL)")
}

func (cpu *CPU) setReg8(r uint8, v uint8, idx bool) {
	regs := &cpu.Regs
	switch r {
	case 0:
		regs.B = v
	case 1:
		regs.C = v
	case 2:
		regs.D = v
	case 3:
		regs.E = v
	case 4:
		if idx && cpu.index != nil {
			*cpu.index = *cpu.index&0x00FF | uint16(v)<<8
			return
		}
		regs.H = v
	case 5:
		if idx && cpu.index != nil {
			*cpu.index = *cpu.index&0xFF00 | uint16(v)
			return
		}
		regs.L = v
	case 7:
		regs.A = v
	default:
		panic("z80: setReg8 called with (HL)")
	}
}

// rp returns the register pair encoded by p (BC, DE, HL, SP).
func (cpu *CPU) rp(p uint8) uint16 {
	switch p {
	case 0:
		return cpu.Regs.BC()
	case 1:
		return cpu.Regs.DE()
	case 2:
		return cpu.hl()
	}
	return cpu.Regs.SP
}

func (cpu *CPU) setRP(p uint8, v uint16) {
	switch p {
	case 0:
		cpu.Regs.SetBC(v)
	case 1:
		cpu.Regs.SetDE(v)
	case 2:
		cpu.setHL(v)
	default:
		cpu.Regs.SP = v
	}
}

// rp2 is rp with AF in place of SP, for PUSH and POP.
func (cpu *CPU) rp2(p uint8) uint16 {
	if p == 3 {
		return cpu.Regs.AF()
	}
	return cpu.rp(p)
}

func (cpu *CPU) setRP2(p uint8, v uint16) {
	if p == 3 {
		cpu.Regs.SetAF(v)
		return
	}
	cpu.setRP(p, v)
}

// cond evaluates condition code y: NZ, Z, NC, C, PO, PE, P, M.
func (cpu *CPU) cond(y uint8) bool {
	var f uint8
	switch y >> 1 {
	case 0:
		f = FlagZ
	case 1:
		f = FlagC
	case 2:
		f = FlagPV
	case 3:
		f = FlagS
	}
	return cpu.Regs.flag(f) == (y&1 == 1)
}

func (cpu *CPU) jr(bus Bus, taken bool) {
	d := int8(cpu.fetch(bus))
	if !taken {
		return
	}
	cpu.internal(5)
	cpu.Regs.PC += uint16(int16(d))
	cpu.Regs.WZ = cpu.Regs.PC
}

func (cpu *CPU) call(bus Bus, addr uint16) {
	cpu.internal(1)
	cpu.push(bus, cpu.Regs.PC)
	cpu.Regs.PC = addr
	cpu.Regs.WZ = addr
}

func (cpu *CPU) ret(bus Bus) {
	cpu.Regs.PC = cpu.pop(bus)
	cpu.Regs.WZ = cpu.Regs.PC
}

// execute runs an unprefixed opcode, or a DD/FD prefixed one when cpu.index
// is set.
func (cpu *CPU) execute(bus Bus, op uint8) {
	x, y, z, p, q := fields(op)

	switch x {
	case 0:
		cpu.executeX0(bus, y, z, p, q)

	case 1:
		switch {
		case y == 6 && z == 6:
			cpu.Halted = true
		case z == 6:
			// LD r,(HL): r is never an index half.
			addr := cpu.hlAddr(bus)
			cpu.setReg8(y, cpu.read(bus, addr), false)
		case y == 6:
			addr := cpu.hlAddr(bus)
			cpu.write(bus, addr, cpu.reg8(z, false))
		default:
			cpu.setReg8(y, cpu.reg8(z, true), true)
		}

	case 2:
		if z == 6 {
			addr := cpu.hlAddr(bus)
			cpu.alu(y, cpu.read(bus, addr))
		} else {
			cpu.alu(y, cpu.reg8(z, true))
		}

	case 3:
		cpu.executeX3(bus, y, z, p, q)
	}
}

func (cpu *CPU) executeX0(bus Bus, y, z, p, q uint8) {
	r := &cpu.Regs

	switch z {
	case 0:
		switch y {
		case 0: // NOP
		case 1: // EX AF,AF'
			r.A, r.A2 = r.A2, r.A
			r.F, r.F2 = r.F2, r.F
		case 2: // DJNZ
			cpu.internal(1)
			r.B--
			cpu.jr(bus, r.B != 0)
		case 3:
			cpu.jr(bus, true)
		default:
			cpu.jr(bus, cpu.cond(y-4))
		}

	case 1:
		if q == 0 {
			cpu.setRP(p, cpu.fetch16(bus))
		} else {
			cpu.internal(7)
			cpu.setHL(cpu.add16(cpu.hl(), cpu.rp(p)))
		}

	case 2:
		switch p {
		case 0, 1:
			addr := r.BC()
			if p == 1 {
				addr = r.DE()
			}
			if q == 0 {
				cpu.write(bus, addr, r.A)
				r.WZ = uint16(r.A)<<8 | (addr+1)&0xFF
			} else {
				r.A = cpu.read(bus, addr)
				r.WZ = addr + 1
			}
		case 2:
			addr := cpu.fetch16(bus)
			if q == 0 {
				cpu.write16(bus, addr, cpu.hl())
			} else {
				cpu.setHL(cpu.read16(bus, addr))
			}
			r.WZ = addr + 1
		case 3:
			addr := cpu.fetch16(bus)
			if q == 0 {
				cpu.write(bus, addr, r.A)
				r.WZ = uint16(r.A)<<8 | (addr+1)&0xFF
			} else {
				r.A = cpu.read(bus, addr)
				r.WZ = addr + 1
			}
		}

	case 3:
		cpu.internal(2)
		if q == 0 {
			cpu.setRP(p, cpu.rp(p)+1)
		} else {
			cpu.setRP(p, cpu.rp(p)-1)
		}

	case 4, 5:
		op := cpu.inc8
		if z == 5 {
			op = cpu.dec8
		}
		if y == 6 {
			addr := cpu.hlAddr(bus)
			v := cpu.read(bus, addr)
			cpu.internal(1)
			cpu.write(bus, addr, op(v))
		} else {
			cpu.setReg8(y, op(cpu.reg8(y, true)), true)
		}

	case 6:
		if y != 6 {
			cpu.setReg8(y, cpu.fetch(bus), true)
			break
		}
		if cpu.index == nil {
			cpu.write(bus, r.HL(), cpu.fetch(bus))
			break
		}
		// LD (IX+d),n: the displacement and the immediate are both fetched
		// before the address is computed.
		d := int8(cpu.fetch(bus))
		n := cpu.fetch(bus)
		cpu.internal(2)
		addr := *cpu.index + uint16(int16(d))
		r.WZ = addr
		cpu.write(bus, addr, n)

	case 7:
		switch y {
		case 0:
			cpu.rotateA(rotRLC)
		case 1:
			cpu.rotateA(rotRRC)
		case 2:
			cpu.rotateA(rotRL)
		case 3:
			cpu.rotateA(rotRR)
		case 4:
			cpu.daa()
		case 5: // CPL
			r.A = ^r.A
			r.F = r.F&(FlagS|FlagZ|FlagPV|FlagC) | FlagH | FlagN | r.A&(FlagX|FlagY)
		case 6: // SCF
			r.F = r.F&(FlagS|FlagZ|FlagPV) | FlagC | r.A&(FlagX|FlagY)
		case 7: // CCF
			c := r.F & FlagC
			r.F = r.F&(FlagS|FlagZ|FlagPV) | c<<4 | r.A&(FlagX|FlagY)
			r.setFlag(FlagC, c == 0)
		}
	}
}

func (cpu *CPU) executeX3(bus Bus, y, z, p, q uint8) {
	r := &cpu.Regs

	switch z {
	case 0: // RET cc
		cpu.internal(1)
		if cpu.cond(y) {
			cpu.ret(bus)
		}

	case 1:
		if q == 0 {
			cpu.setRP2(p, cpu.pop(bus))
			break
		}
		switch p {
		case 0:
			cpu.ret(bus)
		case 1: // EXX
			r.B, r.B2 = r.B2, r.B
			r.C, r.C2 = r.C2, r.C
			r.D, r.D2 = r.D2, r.D
			r.E, r.E2 = r.E2, r.E
			r.H, r.H2 = r.H2, r.H
			r.L, r.L2 = r.L2, r.L
		case 2: // JP (HL)
			r.PC = cpu.hl()
		case 3: // LD SP,HL
			cpu.internal(2)
			r.SP = cpu.hl()
		}

	case 2: // JP cc,nn
		addr := cpu.fetch16(bus)
		r.WZ = addr
		if cpu.cond(y) {
			r.PC = addr
		}

	case 3:
		switch y {
		case 0: // JP nn
			r.PC = cpu.fetch16(bus)
			r.WZ = r.PC
		case 2: // OUT (n),A
			n := cpu.fetch(bus)
			cpu.out(bus, uint16(r.A)<<8|uint16(n), r.A)
			r.WZ = uint16(r.A)<<8 | uint16(n+1)
		case 3: // IN A,(n)
			port := uint16(r.A)<<8 | uint16(cpu.fetch(bus))
			r.A = cpu.in(bus, port)
			r.WZ = port + 1
		case 4: // EX (SP),HL
			v := cpu.read16(bus, r.SP)
			cpu.internal(1)
			cpu.write(bus, r.SP+1, uint8(cpu.hl()>>8))
			cpu.write(bus, r.SP, uint8(cpu.hl()))
			cpu.internal(2)
			cpu.setHL(v)
			r.WZ = v
		case 5: // EX DE,HL, never indexed
			de := r.DE()
			r.SetDE(r.HL())
			r.SetHL(de)
		case 6: // DI
			r.IFF1, r.IFF2 = false, false
		case 7: // EI
			r.IFF1, r.IFF2 = true, true
			cpu.eiDelay = true
		}

	case 4: // CALL cc,nn
		addr := cpu.fetch16(bus)
		r.WZ = addr
		if cpu.cond(y) {
			cpu.call(bus, addr)
		}

	case 5:
		if q == 0 {
			cpu.internal(1)
			cpu.push(bus, cpu.rp2(p))
		} else {
			// p == 0, the other slots are prefixes handled by step.
			cpu.call(bus, cpu.fetch16(bus))
		}

	case 6:
		cpu.alu(y, cpu.fetch(bus))

	case 7: // RST
		cpu.call(bus, uint16(y)*8)
	}
}
