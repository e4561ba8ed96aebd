package z80

import (
	"fmt"
	"testing"

	"retrocore/hw/snapshot"
)

func TestExecuteAllOpcodes(t *testing.T) {
	prefixes := [][]uint8{nil, {0xCB}, {0xED}, {0xDD}, {0xFD}, {0xDD, 0xCB, 0x05}, {0xFD, 0xCB, 0xFB}}
	for _, prefix := range prefixes {
		for op := range 256 {
			prog := append(append([]uint8{}, prefix...), uint8(op), 0x01, 0x02)
			cpu, bus := newTestCPU(prog...)
			if cycles := cpu.ExecuteInstruction(bus); cycles < 4 {
				t.Errorf("% X %02X: %d cycles", prefix, op, cycles)
			}
			if cpu.index != nil {
				t.Fatalf("% X %02X: index register left selected", prefix, op)
			}
		}
	}
}

func TestReset(t *testing.T) {
	cpu, _ := newTestCPU()
	r := cpu.Regs
	wantReg(t, "AF", r.AF(), 0xFFFF)
	wantReg(t, "SP", r.SP, 0xFFFF)
	wantReg(t, "PC", r.PC, 0)
	wantReg(t, "IM", r.IM, 0)
	if r.IFF1 || r.IFF2 {
		t.Errorf("interrupts enabled after reset")
	}
}

func TestTimings(t *testing.T) {
	// After reset all flags are set and BC is 0.
	tests := []struct {
		name   string
		prog   []uint8
		cycles uint32
	}{
		{"NOP", []uint8{0x00}, 4},
		{"LD BC,nn", []uint8{0x01, 0x34, 0x12}, 10},
		{"ADD HL,BC", []uint8{0x09}, 11},
		{"INC BC", []uint8{0x03}, 6},
		{"LD A,(BC)", []uint8{0x0A}, 7},
		{"LD A,n", []uint8{0x3E, 0x42}, 7},
		{"LD (HL),n", []uint8{0x36, 0x42}, 10},
		{"INC (HL)", []uint8{0x34}, 11},
		{"LD (nn),HL", []uint8{0x22, 0x00, 0x20}, 16},
		{"LD (nn),A", []uint8{0x32, 0x00, 0x20}, 13},
		{"EX AF,AF'", []uint8{0x08}, 4},
		{"DJNZ taken", []uint8{0x10, 0x00}, 13},
		{"JR", []uint8{0x18, 0x00}, 12},
		{"JR NZ not taken", []uint8{0x20, 0x00}, 7},
		{"JR Z taken", []uint8{0x28, 0x00}, 12},
		{"HALT", []uint8{0x76}, 4},
		{"RET NZ not taken", []uint8{0xC0}, 5},
		{"RET Z taken", []uint8{0xC8}, 11},
		{"POP BC", []uint8{0xC1}, 10},
		{"RET", []uint8{0xC9}, 10},
		{"EXX", []uint8{0xD9}, 4},
		{"LD SP,HL", []uint8{0xF9}, 6},
		{"JP NZ", []uint8{0xC2, 0x00, 0x20}, 10},
		{"JP", []uint8{0xC3, 0x00, 0x20}, 10},
		{"OUT (n),A", []uint8{0xD3, 0x10}, 11},
		{"IN A,(n)", []uint8{0xDB, 0x10}, 11},
		{"EX (SP),HL", []uint8{0xE3}, 19},
		{"CALL NZ not taken", []uint8{0xC4, 0x00, 0x20}, 10},
		{"CALL Z taken", []uint8{0xCC, 0x00, 0x20}, 17},
		{"PUSH BC", []uint8{0xC5}, 11},
		{"CALL", []uint8{0xCD, 0x00, 0x20}, 17},
		{"RST 38", []uint8{0xFF}, 11},
		{"RLC B", []uint8{0xCB, 0x00}, 8},
		{"RLC (HL)", []uint8{0xCB, 0x06}, 15},
		{"BIT 0,(HL)", []uint8{0xCB, 0x46}, 12},
		{"IN B,(C)", []uint8{0xED, 0x40}, 12},
		{"OUT (C),B", []uint8{0xED, 0x41}, 12},
		{"ADC HL,BC", []uint8{0xED, 0x4A}, 15},
		{"LD (nn),BC", []uint8{0xED, 0x43, 0x00, 0x20}, 20},
		{"NEG", []uint8{0xED, 0x44}, 8},
		{"RETN", []uint8{0xED, 0x45}, 14},
		{"IM 1", []uint8{0xED, 0x56}, 8},
		{"LD I,A", []uint8{0xED, 0x47}, 9},
		{"LD A,I", []uint8{0xED, 0x57}, 9},
		{"RLD", []uint8{0xED, 0x6F}, 18},
		{"LDI", []uint8{0xED, 0xA0}, 16},
		{"LDIR repeat", []uint8{0xED, 0xB0}, 21},
		{"CPI", []uint8{0xED, 0xA1}, 16},
		{"INI", []uint8{0xED, 0xA2}, 16},
		{"INIR repeat", []uint8{0xED, 0xB2}, 21},
		{"invalid ED", []uint8{0xED, 0x00}, 8},
		{"LD IX,nn", []uint8{0xDD, 0x21, 0x00, 0x00}, 14},
		{"ADD IX,BC", []uint8{0xDD, 0x09}, 15},
		{"LD A,IXH", []uint8{0xDD, 0x7C}, 8},
		{"LD A,(IX+d)", []uint8{0xDD, 0x7E, 0x05}, 19},
		{"ADD A,(IX+d)", []uint8{0xDD, 0x86, 0x05}, 19},
		{"LD (IX+d),n", []uint8{0xDD, 0x36, 0x05, 0x42}, 19},
		{"INC (IX+d)", []uint8{0xDD, 0x34, 0x05}, 23},
		{"PUSH IX", []uint8{0xDD, 0xE5}, 15},
		{"POP IX", []uint8{0xDD, 0xE1}, 14},
		{"JP (IX)", []uint8{0xDD, 0xE9}, 8},
		{"RLC (IX+d)", []uint8{0xDD, 0xCB, 0x05, 0x06}, 23},
		{"BIT 0,(IX+d)", []uint8{0xDD, 0xCB, 0x05, 0x46}, 20},
		{"DD NOP", []uint8{0xDD, 0x00}, 8},
		{"DD DD", []uint8{0xDD, 0xDD, 0x00}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, bus := newTestCPU(tt.prog...)
			if got := cpu.ExecuteInstruction(bus); got != tt.cycles {
				t.Errorf("cycles = %d, want %d", got, tt.cycles)
			}
		})
	}
}

func TestRefreshRegister(t *testing.T) {
	cpu, bus := newTestCPU(0x00, 0xDD, 0x21, 0x00, 0x00, 0xCB, 0x00)
	cpu.Regs.R = 0xFF
	step(cpu, bus, 3)
	// Bit 7 is kept, the low 7 bits count opcode fetches.
	wantReg(t, "R", cpu.Regs.R, 0x84)
}

func TestALU(t *testing.T) {
	ops := map[string]uint8{
		"ADD": 0xC6, "ADC": 0xCE, "SUB": 0xD6, "SBC": 0xDE,
		"AND": 0xE6, "XOR": 0xEE, "OR": 0xF6, "CP": 0xFE,
	}
	tests := []struct {
		op      string
		a, v, f uint8
		wantA   uint8
		wantF   uint8
	}{
		{"ADD", 0x0F, 0x01, 0x00, 0x10, FlagH},
		{"ADD", 0x7F, 0x01, 0x00, 0x80, FlagS | FlagH | FlagPV},
		{"ADD", 0xFF, 0x01, 0x00, 0x00, FlagZ | FlagH | FlagC},
		{"ADC", 0x01, 0x01, FlagC, 0x03, 0x00},
		{"SUB", 0x00, 0x01, 0x00, 0xFF, FlagS | FlagY | FlagH | FlagX | FlagN | FlagC},
		{"SUB", 0x80, 0x01, 0x00, 0x7F, FlagY | FlagH | FlagX | FlagPV | FlagN},
		{"SBC", 0x05, 0x02, FlagC, 0x02, FlagN},
		{"CP", 0x10, 0x28, 0x00, 0x10, FlagS | FlagY | FlagH | FlagX | FlagN | FlagC},
		{"AND", 0xF0, 0x3C, 0x00, 0x30, FlagY | FlagH | FlagPV},
		{"XOR", 0xFF, 0xFF, 0x00, 0x00, FlagZ | FlagPV},
		{"OR", 0x01, 0x02, 0x00, 0x03, FlagPV},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %02X,%02X", tt.op, tt.a, tt.v), func(t *testing.T) {
			cpu, bus := newTestCPU(ops[tt.op], tt.v)
			cpu.Regs.A, cpu.Regs.F = tt.a, tt.f
			step(cpu, bus, 1)
			wantReg(t, "A", cpu.Regs.A, tt.wantA)
			wantFlags(t, cpu, tt.wantF)
		})
	}
}

func TestIncDec(t *testing.T) {
	tests := []struct {
		name  string
		op    uint8
		a, f  uint8
		wantA uint8
		wantF uint8
	}{
		{"INC overflow", 0x3C, 0x7F, FlagC, 0x80, FlagS | FlagH | FlagPV | FlagC},
		{"DEC overflow", 0x3D, 0x80, 0x00, 0x7F, FlagY | FlagH | FlagX | FlagPV | FlagN},
		{"DEC zero", 0x3D, 0x01, 0x00, 0x00, FlagZ | FlagN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, bus := newTestCPU(tt.op)
			cpu.Regs.A, cpu.Regs.F = tt.a, tt.f
			step(cpu, bus, 1)
			wantReg(t, "A", cpu.Regs.A, tt.wantA)
			wantFlags(t, cpu, tt.wantF)
		})
	}
}

func TestDAA(t *testing.T) {
	// ADD A,$27; DAA
	cpu, bus := newTestCPU(0xC6, 0x27, 0x27)
	cpu.Regs.A, cpu.Regs.F = 0x15, 0
	step(cpu, bus, 2)
	wantReg(t, "A", cpu.Regs.A, 0x42)
	wantFlags(t, cpu, FlagH|FlagPV)
}

func TestArithmetic16(t *testing.T) {
	t.Run("ADD HL,DE", func(t *testing.T) {
		cpu, bus := newTestCPU(0x19)
		cpu.Regs.SetHL(0x0FFF)
		cpu.Regs.SetDE(0x0001)
		cpu.Regs.F = FlagZ
		step(cpu, bus, 1)
		wantReg(t, "HL", cpu.Regs.HL(), 0x1000)
		wantFlags(t, cpu, FlagZ|FlagH)
	})
	t.Run("SBC HL,DE", func(t *testing.T) {
		cpu, bus := newTestCPU(0xED, 0x52)
		cpu.Regs.SetHL(0x0000)
		cpu.Regs.SetDE(0x0001)
		cpu.Regs.F = 0
		step(cpu, bus, 1)
		wantReg(t, "HL", cpu.Regs.HL(), 0xFFFF)
		wantFlags(t, cpu, FlagS|FlagY|FlagH|FlagX|FlagN|FlagC)
	})
}

func TestIndexRegisters(t *testing.T) {
	cpu, bus := newTestCPU(
		0xDD, 0x21, 0x34, 0x12, // LD IX,$1234
		0xDD, 0x26, 0x55,       // LD IXH,$55
		0xDD, 0x7E, 0x02,       // LD A,(IX+2)
		0xDD, 0x66, 0x02,       // LD H,(IX+2)
		0xDD, 0xCB, 0x02, 0x06, // RLC (IX+2)
		0xDD, 0xCB, 0x02, 0x00, // RLC (IX+2),B
		0xFD, 0x21, 0x00, 0x60, // LD IY,$6000
		0xFD, 0x36, 0xFF, 0x99, // LD (IY-1),$99
		0xDD, 0xFD, 0x2E, 0x11, // DD ignored, LD IYL,$11
	)
	bus.mem[0x5536] = 0x77
	step(cpu, bus, 10)

	r := cpu.Regs
	wantReg(t, "IX", r.IX, 0x5534)
	wantReg(t, "IY", r.IY, 0x6011)
	wantReg(t, "A", r.A, 0x77)
	wantReg(t, "H", r.H, 0x77)
	wantReg(t, "B", r.B, 0xDD)
	wantReg(t, "PC", r.PC, 33)
	wantReg(t, "(IX+2)", bus.mem[0x5536], 0xDD)
	wantReg(t, "(IY-1)", bus.mem[0x5FFF], 0x99)
}

func TestBlockInstructions(t *testing.T) {
	t.Run("LDIR", func(t *testing.T) {
		cpu, bus := newTestCPU(
			0x21, 0x00, 0x40, // LD HL,$4000
			0x11, 0x00, 0x50, // LD DE,$5000
			0x01, 0x04, 0x00, // LD BC,4
			0xED, 0xB0,       // LDIR
		)
		copy(bus.mem[0x4000:], []uint8{1, 2, 3, 4})
		step(cpu, bus, 3)

		var cycles []uint32
		for range 4 {
			cycles = append(cycles, cpu.ExecuteInstruction(bus))
		}
		wantDiff(t, "cycles", cycles, []uint32{21, 21, 21, 16})
		wantDiff(t, "copy", bus.mem[0x5000:0x5005], []uint8{1, 2, 3, 4, 0})
		wantReg(t, "BC", cpu.Regs.BC(), 0)
		wantReg(t, "HL", cpu.Regs.HL(), 0x4004)
		wantReg(t, "DE", cpu.Regs.DE(), 0x5004)
		wantReg(t, "PC", cpu.Regs.PC, 11)
		if cpu.Regs.flag(FlagPV) {
			t.Errorf("P/V set with BC = 0")
		}
	})
	t.Run("CPIR", func(t *testing.T) {
		cpu, bus := newTestCPU(
			0x21, 0x00, 0x40, // LD HL,$4000
			0x01, 0x04, 0x00, // LD BC,4
			0x3E, 0x33,       // LD A,$33
			0xED, 0xB1,       // CPIR
		)
		copy(bus.mem[0x4000:], []uint8{0x11, 0x22, 0x33, 0x44})
		step(cpu, bus, 3)

		var cycles []uint32
		for range 3 {
			cycles = append(cycles, cpu.ExecuteInstruction(bus))
		}
		wantDiff(t, "cycles", cycles, []uint32{21, 21, 16})
		wantReg(t, "BC", cpu.Regs.BC(), 1)
		wantReg(t, "HL", cpu.Regs.HL(), 0x4003)
		wantReg(t, "PC", cpu.Regs.PC, 10)
		if !cpu.Regs.flag(FlagZ) || !cpu.Regs.flag(FlagPV) {
			t.Errorf("F = %08b, want Z and P/V set", cpu.Regs.F)
		}
	})
	t.Run("OTIR", func(t *testing.T) {
		cpu, bus := newTestCPU(
			0x21, 0x00, 0x40, // LD HL,$4000
			0x01, 0x7F, 0x02, // LD BC,$027F
			0xED, 0xB3,       // OTIR
		)
		copy(bus.mem[0x4000:], []uint8{0xAA, 0xBB})
		step(cpu, bus, 4)
		wantDiff(t, "writes", bus.outs, []ioWrite{{0x017F, 0xAA}, {0x007F, 0xBB}})
		wantReg(t, "B", cpu.Regs.B, 0)
		if !cpu.Regs.flag(FlagZ) {
			t.Errorf("Z clear with B = 0")
		}
	})
}

func TestIO(t *testing.T) {
	// LD A,$12; IN A,($34); LD BC,$5678; OUT (C),A
	cpu, bus := newTestCPU(0x3E, 0x12, 0xDB, 0x34, 0x01, 0x78, 0x56, 0xED, 0x79)
	bus.ioIn = 0x9A
	step(cpu, bus, 4)
	wantReg(t, "in port", bus.inPort, 0x1234)
	wantReg(t, "A", cpu.Regs.A, 0x9A)
	wantDiff(t, "writes", bus.outs, []ioWrite{{0x5678, 0x9A}})
}

func TestSubroutines(t *testing.T) {
	cpu, bus := newTestCPU(
		0x31, 0x00, 0x80, // LD SP,$8000
		0xCD, 0x00, 0x10, // CALL $1000
		0x76,             // HALT
	)
	copy(bus.mem[0x1000:], []uint8{
		0x01, 0x34, 0x12, // LD BC,$1234
		0xC5,             // PUSH BC
		0xE1,             // POP HL
		0xC9,             // RET
	})
	step(cpu, bus, 7)

	wantReg(t, "HL", cpu.Regs.HL(), 0x1234)
	wantReg(t, "SP", cpu.Regs.SP, 0x8000)
	wantReg(t, "PC", cpu.Regs.PC, 7)
	wantReg(t, "return address", bus.mem[0x7FFE], 6)
	if !cpu.Halted {
		t.Errorf("CPU not halted")
	}
}

func TestInterrupts(t *testing.T) {
	t.Run("mode 1 after EI delay", func(t *testing.T) {
		// IM 1; EI; NOP; NOP
		cpu, bus := newTestCPU(0xED, 0x56, 0xFB, 0x00, 0x00)
		bus.irq = true
		step(cpu, bus, 3)
		wantReg(t, "PC", cpu.Regs.PC, 4)

		wantReg(t, "cycles", cpu.ExecuteInstruction(bus), 13)
		wantReg(t, "PC", cpu.Regs.PC, 0x38)
		wantReg(t, "SP", cpu.Regs.SP, 0xFFFD)
		wantReg(t, "return address", bus.mem[0xFFFD], 4)
		if cpu.Regs.IFF1 || cpu.Regs.IFF2 {
			t.Errorf("interrupts still enabled")
		}
	})
	t.Run("mode 2", func(t *testing.T) {
		// LD A,$20; LD I,A; IM 2; EI; NOP
		cpu, bus := newTestCPU(0x3E, 0x20, 0xED, 0x47, 0xED, 0x5E, 0xFB, 0x00)
		bus.mem[0x20FF], bus.mem[0x2100] = 0x34, 0x12
		bus.irq = true
		step(cpu, bus, 5)

		wantReg(t, "cycles", cpu.ExecuteInstruction(bus), 19)
		wantReg(t, "PC", cpu.Regs.PC, 0x1234)
	})
	t.Run("masked", func(t *testing.T) {
		cpu, bus := newTestCPU()
		bus.irq = true
		step(cpu, bus, 2)
		wantReg(t, "PC", cpu.Regs.PC, 2)
	})
	t.Run("wakes from HALT", func(t *testing.T) {
		// EI; HALT
		cpu, bus := newTestCPU(0xFB, 0x76)
		step(cpu, bus, 3)
		wantReg(t, "PC", cpu.Regs.PC, 2)
		if !cpu.Halted {
			t.Fatalf("CPU not halted")
		}

		bus.irq = true
		wantReg(t, "cycles", cpu.ExecuteInstruction(bus), 13)
		wantReg(t, "PC", cpu.Regs.PC, 0x38)
		wantReg(t, "return address", bus.mem[0xFFFD], 2)
		if cpu.Halted {
			t.Errorf("CPU still halted")
		}
	})
	t.Run("NMI edge", func(t *testing.T) {
		cpu, bus := newTestCPU()
		cpu.Regs.IFF1, cpu.Regs.IFF2 = true, true
		bus.nmi = true

		wantReg(t, "cycles", cpu.ExecuteInstruction(bus), 11)
		wantReg(t, "PC", cpu.Regs.PC, nmiVector)
		if cpu.Regs.IFF1 || !cpu.Regs.IFF2 {
			t.Errorf("IFF1=%v IFF2=%v, want false true", cpu.Regs.IFF1, cpu.Regs.IFF2)
		}

		// Still asserted, no new edge.
		step(cpu, bus, 1)
		wantReg(t, "PC", cpu.Regs.PC, nmiVector+1)
	})
	t.Run("RETN restores IFF1", func(t *testing.T) {
		cpu, bus := newTestCPU()
		bus.mem[nmiVector], bus.mem[nmiVector+1] = 0xED, 0x45
		cpu.Regs.IFF1, cpu.Regs.IFF2 = true, true
		bus.nmi = true
		step(cpu, bus, 2)
		wantReg(t, "PC", cpu.Regs.PC, 0)
		if !cpu.Regs.IFF1 {
			t.Errorf("IFF1 not restored")
		}
	})
}

func TestBusLines(t *testing.T) {
	cpu, bus := newTestCPU(0x00)

	bus.busreq = true
	wantReg(t, "cycles", cpu.ExecuteInstruction(bus), idleCycles)
	wantReg(t, "PC", cpu.Regs.PC, 0)

	bus.busreq = false
	step(cpu, bus, 1)
	wantReg(t, "PC", cpu.Regs.PC, 1)

	bus.reset = true
	cpu.Regs.SetBC(0x1234)
	wantReg(t, "cycles", cpu.ExecuteInstruction(bus), idleCycles)
	wantReg(t, "PC", cpu.Regs.PC, 0)
	wantReg(t, "BC", cpu.Regs.BC(), 0)
}

func TestStateRoundTrip(t *testing.T) {
	cpu, bus := newTestCPU(
		0x01, 0x34, 0x12,       // LD BC,$1234
		0xD9,                   // EXX
		0xDD, 0x21, 0x78, 0x56, // LD IX,$5678
		0xED, 0x5E,             // IM 2
		0xFB,                   // EI
	)
	step(cpu, bus, 5)
	state := cpu.State()

	buf, err := snapshot.Marshal(&state)
	if err != nil {
		t.Fatal(err)
	}
	var decoded snapshot.Z80
	if err := snapshot.Unmarshal(buf, &decoded); err != nil {
		t.Fatal(err)
	}

	cpu2 := New()
	cpu2.SetState(&decoded)
	wantDiff(t, "state", cpu2.State(), state)
	wantDiff(t, "registers", cpu2.Regs, cpu.Regs)
}
