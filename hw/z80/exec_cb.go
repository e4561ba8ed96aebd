package z80

// cbOp applies the CB-page operation (x, y) to v. ok is false for BIT, which
// doesn't write back.
func (cpu *CPU) cbOp(x, y uint8, v uint8) (res uint8, ok bool) {
	switch x {
	case 0:
		return cpu.rotate(y, v), true
	case 2: // RES
		return v &^ (1 << y), true
	case 3: // SET
		return v | 1<<y, true
	}
	return 0, false
}

func (cpu *CPU) executeCB(bus Bus) {
	op := cpu.fetchOpcode(bus)
	x, y, z, _, _ := fields(op)

	if z != 6 {
		v := cpu.reg8(z, false)
		if x == 1 {
			cpu.bit(y, v, v)
			return
		}
		res, _ := cpu.cbOp(x, y, v)
		cpu.setReg8(z, res, false)
		return
	}

	addr := cpu.Regs.HL()
	v := cpu.read(bus, addr)
	cpu.internal(1)
	if x == 1 {
		// X and Y leak from the internal MEMPTR.
		cpu.bit(y, v, uint8(cpu.Regs.WZ>>8))
		return
	}
	res, _ := cpu.cbOp(x, y, v)
	cpu.write(bus, addr, res)
}

// executeIndexedCB runs DDCB/FDCB d op. The operand is always (IX+d), and
// for register encodings the result is also copied to that register.
func (cpu *CPU) executeIndexedCB(bus Bus, index *uint16) {
	d := int8(cpu.fetch(bus))
	op := cpu.fetch(bus)
	cpu.internal(2)

	addr := *index + uint16(int16(d))
	cpu.Regs.WZ = addr
	v := cpu.read(bus, addr)
	cpu.internal(1)

	x, y, z, _, _ := fields(op)
	res, ok := cpu.cbOp(x, y, v)
	if !ok {
		cpu.bit(y, v, uint8(addr>>8))
		return
	}
	cpu.write(bus, addr, res)
	if z != 6 {
		cpu.setReg8(z, res, false)
	}
}
