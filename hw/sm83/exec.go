package sm83

func (cpu *CPU) execute(bus Bus, in Instruction, op uint8) {
	r := &cpu.Regs

	switch in.Kind {
	case NOP:
	case STOP:
		// STOP is a 2-byte instruction, the second byte is ignored.
		cpu.fetch8(bus)
		if !cpu.interruptPending(bus) {
			cpu.State.Stopped = true
		}
	case HALT:
		cpu.halt(bus)
	case DI:
		r.IME = false
		cpu.State.PendingIMESet = false
	case EI:
		cpu.State.PendingIMESet = true

	case LD_R_R:
		cpu.writeReg(bus, in.R1, cpu.readReg(bus, in.R2))
	case LD_R_N:
		cpu.writeReg(bus, in.R1, cpu.fetch8(bus))
	case LD_RR_NN:
		cpu.setPair(in.R1, cpu.fetch16(bus))
	case LD_IND_A:
		bus.Write(cpu.indirect(in.R1), r.A)
	case LD_A_IND:
		r.A = bus.Read(cpu.indirect(in.R1))
	case LD_NN_SP:
		addr := cpu.fetch16(bus)
		bus.Write(addr, uint8(r.SP))
		bus.Write(addr+1, uint8(r.SP>>8))
	case LD_NN_A:
		bus.Write(cpu.fetch16(bus), r.A)
	case LD_A_NN:
		r.A = bus.Read(cpu.fetch16(bus))
	case LDH_N_A:
		bus.Write(0xFF00|uint16(cpu.fetch8(bus)), r.A)
	case LDH_A_N:
		r.A = bus.Read(0xFF00 | uint16(cpu.fetch8(bus)))
	case LDH_C_A:
		bus.Write(0xFF00|uint16(r.C), r.A)
	case LDH_A_C:
		r.A = bus.Read(0xFF00 | uint16(r.C))
	case LD_SP_HL:
		bus.Idle()
		r.SP = r.HL()
	case LD_HL_SPE:
		e := cpu.fetch8(bus)
		bus.Idle()
		r.SetHL(cpu.addSPSigned(e))
	case ADD_SP_E:
		e := cpu.fetch8(bus)
		bus.Idle()
		bus.Idle()
		r.SP = cpu.addSPSigned(e)

	case INC_RR:
		bus.Idle()
		cpu.setPair(in.R1, cpu.pair(in.R1)+1)
	case DEC_RR:
		bus.Idle()
		cpu.setPair(in.R1, cpu.pair(in.R1)-1)
	case ADD_HL_RR:
		bus.Idle()
		hl, rr := r.HL(), cpu.pair(in.R1)
		sum := uint32(hl) + uint32(rr)
		r.setFlag(FlagN, false)
		r.setFlag(FlagH, (hl&0x0FFF)+(rr&0x0FFF) > 0x0FFF)
		r.setFlag(FlagC, sum > 0xFFFF)
		r.SetHL(uint16(sum))
	case INC_R:
		v := cpu.readReg(bus, in.R1)
		res := v + 1
		r.setFlag(FlagZ, res == 0)
		r.setFlag(FlagN, false)
		r.setFlag(FlagH, v&0x0F == 0x0F)
		cpu.writeReg(bus, in.R1, res)
	case DEC_R:
		v := cpu.readReg(bus, in.R1)
		res := v - 1
		r.setFlag(FlagZ, res == 0)
		r.setFlag(FlagN, true)
		r.setFlag(FlagH, v&0x0F == 0)
		cpu.writeReg(bus, in.R1, res)

	case ALU_R:
		cpu.alu(in.R1, cpu.readReg(bus, in.R2))
	case ALU_N:
		cpu.alu(in.R1, cpu.fetch8(bus))

	case RLCA:
		r.A = cpu.rotate(RotRLC, r.A)
		r.setFlag(FlagZ, false)
	case RRCA:
		r.A = cpu.rotate(RotRRC, r.A)
		r.setFlag(FlagZ, false)
	case RLA:
		r.A = cpu.rotate(RotRL, r.A)
		r.setFlag(FlagZ, false)
	case RRA:
		r.A = cpu.rotate(RotRR, r.A)
		r.setFlag(FlagZ, false)
	case DAA:
		cpu.daa()
	case CPL:
		r.A = ^r.A
		r.setFlag(FlagN, true)
		r.setFlag(FlagH, true)
	case SCF:
		r.setFlag(FlagN, false)
		r.setFlag(FlagH, false)
		r.setFlag(FlagC, true)
	case CCF:
		r.setFlag(FlagN, false)
		r.setFlag(FlagH, false)
		r.setFlag(FlagC, !r.flag(FlagC))

	case JR:
		e := int8(cpu.fetch8(bus))
		bus.Idle()
		r.PC = uint16(int32(r.PC) + int32(e))
	case JR_CC:
		e := int8(cpu.fetch8(bus))
		if cpu.cond(in.R1) {
			bus.Idle()
			r.PC = uint16(int32(r.PC) + int32(e))
		}
	case JP:
		addr := cpu.fetch16(bus)
		bus.Idle()
		r.PC = addr
	case JP_CC:
		addr := cpu.fetch16(bus)
		if cpu.cond(in.R1) {
			bus.Idle()
			r.PC = addr
		}
	case JP_HL:
		r.PC = r.HL()
	case CALL:
		addr := cpu.fetch16(bus)
		bus.Idle()
		cpu.push16(bus, r.PC)
		r.PC = addr
	case CALL_CC:
		addr := cpu.fetch16(bus)
		if cpu.cond(in.R1) {
			bus.Idle()
			cpu.push16(bus, r.PC)
			r.PC = addr
		}
	case RET:
		r.PC = cpu.pop16(bus)
		bus.Idle()
	case RET_CC:
		bus.Idle()
		if cpu.cond(in.R1) {
			r.PC = cpu.pop16(bus)
			bus.Idle()
		}
	case RETI:
		r.PC = cpu.pop16(bus)
		bus.Idle()
		r.IME = true
	case RST:
		bus.Idle()
		cpu.push16(bus, r.PC)
		r.PC = uint16(in.R1) * 8
	case PUSH:
		bus.Idle()
		cpu.push16(bus, cpu.stackPair(in.R1))
	case POP:
		cpu.setStackPair(in.R1, cpu.pop16(bus))

	case PREFIX_CB:
		cb := cpu.fetch8(bus)
		cpu.executeCB(bus, DecodeCB(cb))

	case Invalid:
		cpu.lock(op)
	}
}

func (cpu *CPU) executeCB(bus Bus, in Instruction) {
	r := &cpu.Regs
	switch in.Kind {
	case ROT:
		v := cpu.rotate(in.R1, cpu.readReg(bus, in.R2))
		r.setFlag(FlagZ, v == 0)
		cpu.writeReg(bus, in.R2, v)
	case BIT:
		v := cpu.readReg(bus, in.R2)
		r.setFlag(FlagZ, v&(1<<in.R1) == 0)
		r.setFlag(FlagN, false)
		r.setFlag(FlagH, true)
	case RES:
		cpu.writeReg(bus, in.R2, cpu.readReg(bus, in.R2)&^(1<<in.R1))
	case SET:
		cpu.writeReg(bus, in.R2, cpu.readReg(bus, in.R2)|(1<<in.R1))
	}
}

// halt enters the halted state, unless IME is off and an interrupt is
// already pending: in that case the CPU doesn't halt and fails to increment
// PC on the next fetch (halt bug).
func (cpu *CPU) halt(bus Bus) {
	if !cpu.Regs.IME && cpu.interruptPending(bus) {
		cpu.State.HaltBug = true
		return
	}
	cpu.State.Halted = true
}

// indirect returns the address for LD (rr),A / LD A,(rr), applying HL
// post-increment/decrement.
func (cpu *CPU) indirect(sel uint8) uint16 {
	r := &cpu.Regs
	switch sel {
	case 0:
		return r.BC()
	case 1:
		return r.DE()
	case 2:
		hl := r.HL()
		r.SetHL(hl + 1)
		return hl
	}
	hl := r.HL()
	r.SetHL(hl - 1)
	return hl
}

// stackPair is like pair but selects AF instead of SP.
func (cpu *CPU) stackPair(p uint8) uint16 {
	if p == 3 {
		return cpu.Regs.AF()
	}
	return cpu.pair(p)
}

func (cpu *CPU) setStackPair(p uint8, v uint16) {
	if p == 3 {
		cpu.Regs.SetAF(v)
		return
	}
	cpu.setPair(p, v)
}
