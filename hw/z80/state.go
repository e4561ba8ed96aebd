package z80

import "retrocore/hw/snapshot"

func (cpu *CPU) State() snapshot.Z80 {
	r := &cpu.Regs
	return snapshot.Z80{
		AF:  r.AF(),
		BC:  r.BC(),
		DE:  r.DE(),
		HL:  r.HL(),
		AF2: uint16(r.A2)<<8 | uint16(r.F2),
		BC2: uint16(r.B2)<<8 | uint16(r.C2),
		DE2: uint16(r.D2)<<8 | uint16(r.E2),
		HL2: uint16(r.H2)<<8 | uint16(r.L2),
		IX:  r.IX,
		IY:  r.IY,
		SP:  r.SP,
		PC:  r.PC,
		I:   r.I,
		R:   r.R,
		WZ:  r.WZ,

		IFF1: r.IFF1,
		IFF2: r.IFF2,
		IM:   r.IM,

		Halted:     cpu.Halted,
		EIDelay:    cpu.eiDelay,
		PrevNMI:    cpu.prevNMI,
		NMIPending: cpu.nmiPending,
	}
}

func (cpu *CPU) SetState(state *snapshot.Z80) {
	r := &cpu.Regs
	r.SetAF(state.AF)
	r.SetBC(state.BC)
	r.SetDE(state.DE)
	r.SetHL(state.HL)
	r.A2, r.F2 = uint8(state.AF2>>8), uint8(state.AF2)
	r.B2, r.C2 = uint8(state.BC2>>8), uint8(state.BC2)
	r.D2, r.E2 = uint8(state.DE2>>8), uint8(state.DE2)
	r.H2, r.L2 = uint8(state.HL2>>8), uint8(state.HL2)
	r.IX, r.IY = state.IX, state.IY
	r.SP, r.PC = state.SP, state.PC
	r.I, r.R = state.I, state.R
	r.WZ = state.WZ
	r.IFF1, r.IFF2 = state.IFF1, state.IFF2
	r.IM = state.IM & 3

	cpu.Halted = state.Halted
	cpu.eiDelay = state.EIDelay
	cpu.prevNMI = state.PrevNMI
	cpu.nmiPending = state.NMIPending
	cpu.index = nil
}
