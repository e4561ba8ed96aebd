package sm83

import "retrocore/hw/snapshot"

func (cpu *CPU) SaveState() *snapshot.SM83 {
	return &snapshot.SM83{
		A: cpu.Regs.A, F: cpu.Regs.F,
		B: cpu.Regs.B, C: cpu.Regs.C,
		D: cpu.Regs.D, E: cpu.Regs.E,
		H: cpu.Regs.H, L: cpu.Regs.L,
		SP:  cpu.Regs.SP,
		PC:  cpu.Regs.PC,
		IME: cpu.Regs.IME,

		PendingIMESet:     cpu.State.PendingIMESet,
		HandlingInterrupt: cpu.State.HandlingInterrupt,
		Halted:            cpu.State.Halted,
		HaltBug:           cpu.State.HaltBug,
		Stopped:           cpu.State.Stopped,
		Locked:            cpu.State.Locked,
	}
}

func (cpu *CPU) SetState(state *snapshot.SM83) {
	cpu.Regs = Registers{
		A: state.A, F: state.F & 0xF0,
		B: state.B, C: state.C,
		D: state.D, E: state.E,
		H: state.H, L: state.L,
		SP:  state.SP,
		PC:  state.PC,
		IME: state.IME,
	}
	cpu.State = State{
		PendingIMESet:     state.PendingIMESet,
		HandlingInterrupt: state.HandlingInterrupt,
		Halted:            state.Halted,
		HaltBug:           state.HaltBug,
		Stopped:           state.Stopped,
		Locked:            state.Locked,
	}
}
