package z80

import "math/bits"

var interruptModes = [8]uint8{0, 0, 1, 2, 0, 0, 1, 2}

func (cpu *CPU) executeED(bus Bus) {
	r := &cpu.Regs
	op := cpu.fetchOpcode(bus)
	x, y, z, p, q := fields(op)

	switch {
	case x == 1:
		cpu.executeEDX1(bus, y, z, p, q)
	case x == 2 && z <= 3 && y >= 4:
		cpu.executeBlock(bus, y, z)
	default:
		// Undefined, behaves as two NOPs.
		modZ80.DebugZ("invalid ED opcode").Hex8("op", op).Hex16("pc", r.PC-2).End()
	}
}

func (cpu *CPU) executeEDX1(bus Bus, y, z, p, q uint8) {
	r := &cpu.Regs

	switch z {
	case 0: // IN r,(C)
		v := cpu.in(bus, r.BC())
		r.WZ = r.BC() + 1
		r.F = r.F&FlagC | szpxy[v]
		if y != 6 {
			cpu.setReg8(y, v, false)
		}

	case 1: // OUT (C),r
		var v uint8
		if y != 6 {
			v = cpu.reg8(y, false)
		}
		cpu.out(bus, r.BC(), v)
		r.WZ = r.BC() + 1

	case 2:
		cpu.internal(7)
		if q == 0 {
			r.SetHL(cpu.sbc16(r.HL(), cpu.rp(p)))
		} else {
			r.SetHL(cpu.adc16(r.HL(), cpu.rp(p)))
		}

	case 3:
		addr := cpu.fetch16(bus)
		if q == 0 {
			cpu.write16(bus, addr, cpu.rp(p))
		} else {
			cpu.setRP(p, cpu.read16(bus, addr))
		}
		r.WZ = addr + 1

	case 4: // NEG
		a := r.A
		r.A = 0
		cpu.alu(aluSUB, a)

	case 5: // RETN, RETI
		r.IFF1 = r.IFF2
		cpu.ret(bus)

	case 6:
		r.IM = interruptModes[y]

	case 7:
		switch y {
		case 0: // LD I,A
			cpu.internal(1)
			r.I = r.A
		case 1: // LD R,A
			cpu.internal(1)
			r.R = r.A
		case 2, 3: // LD A,I and LD A,R
			cpu.internal(1)
			if y == 2 {
				r.A = r.I
			} else {
				r.A = r.R
			}
			r.F = r.F&FlagC | szxy[r.A]
			r.setFlag(FlagPV, r.IFF2)
		case 4, 5: // RRD, RLD
			addr := r.HL()
			v := cpu.read(bus, addr)
			cpu.internal(4)
			var res uint8
			if y == 4 {
				res = r.A<<4 | v>>4
				r.A = r.A&0xF0 | v&0x0F
			} else {
				res = v<<4 | r.A&0x0F
				r.A = r.A&0xF0 | v>>4
			}
			cpu.write(bus, addr, res)
			r.F = r.F&FlagC | szpxy[r.A]
			r.WZ = addr + 1
		}
	}
}

// executeBlock runs LDI/CPI/INI/OUTI and their decrementing and repeating
// forms. Bit 0 of y selects the direction, bit 1 the repetition.
func (cpu *CPU) executeBlock(bus Bus, y, z uint8) {
	r := &cpu.Regs
	delta := uint16(1)
	if y&1 == 1 {
		delta = 0xFFFF
	}
	repeat := y&2 != 0

	var again bool
	switch z {
	case 0: // LDI
		v := cpu.read(bus, r.HL())
		cpu.write(bus, r.DE(), v)
		cpu.internal(2)
		r.SetHL(r.HL() + delta)
		r.SetDE(r.DE() + delta)
		r.SetBC(r.BC() - 1)

		n := v + r.A
		r.F = r.F&(FlagS|FlagZ|FlagC) | n&FlagX | n<<4&FlagY
		r.setFlag(FlagPV, r.BC() != 0)
		again = r.BC() != 0

	case 1: // CPI
		v := cpu.read(bus, r.HL())
		cpu.internal(5)
		r.SetHL(r.HL() + delta)
		r.SetBC(r.BC() - 1)
		r.WZ += delta

		res := r.A - v
		h := (r.A ^ v ^ res) & FlagH
		n := res
		if h != 0 {
			n--
		}
		r.F = r.F&FlagC | FlagN | szxy[res]&(FlagS|FlagZ) | h | n&FlagX | n<<4&FlagY
		r.setFlag(FlagPV, r.BC() != 0)
		again = r.BC() != 0 && res != 0

	case 2: // INI
		cpu.internal(1)
		v := cpu.in(bus, r.BC())
		r.WZ = r.BC() + delta
		cpu.write(bus, r.HL(), v)
		r.B--
		r.SetHL(r.HL() + delta)
		cpu.blockIOFlags(v, uint16(uint8(uint16(r.C)+delta)))
		again = r.B != 0

	case 3: // OUTI
		cpu.internal(1)
		v := cpu.read(bus, r.HL())
		r.B--
		r.WZ = r.BC() + delta
		cpu.out(bus, r.BC(), v)
		r.SetHL(r.HL() + delta)
		cpu.blockIOFlags(v, uint16(r.L))
		again = r.B != 0
	}

	if repeat && again {
		cpu.internal(5)
		r.PC -= 2
		r.WZ = r.PC + 1
	}
}

func (cpu *CPU) blockIOFlags(v uint8, k uint16) {
	r := &cpu.Regs
	k += uint16(v)
	r.F = szxy[r.B]
	r.setFlag(FlagN, v&0x80 != 0)
	r.setFlag(FlagH|FlagC, k > 0xFF)
	r.setFlag(FlagPV, bits.OnesCount8(uint8(k)&7^r.B)%2 == 0)
}
