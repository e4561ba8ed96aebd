package m68k

import "retrocore/hw/snapshot"

func (cpu *CPU) State() snapshot.M68K {
	return snapshot.M68K{
		D:            cpu.Regs.D,
		A:            cpu.Regs.A,
		USP:          cpu.Regs.USP,
		SSP:          cpu.Regs.SSP,
		PC:           cpu.Regs.PC,
		SR:           cpu.Regs.SR,
		Stopped:      cpu.Stopped,
		PrevIntLevel: cpu.prevIntLevel,
	}
}

func (cpu *CPU) SetState(state *snapshot.M68K) {
	cpu.Regs = Registers{
		D:   state.D,
		A:   state.A,
		USP: state.USP,
		SSP: state.SSP,
		PC:  state.PC,
		SR:  state.SR & srMask,
	}
	cpu.Stopped = state.Stopped
	cpu.prevIntLevel = state.PrevIntLevel
}
