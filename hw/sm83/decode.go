package sm83

import "fmt"

// Kind identifies an instruction family. Operand selectors are stored in
// Instruction.R1/R2, their meaning depends on the kind.
type Kind uint8

const (
	Invalid Kind = iota
	NOP
	STOP
	HALT
	DI
	EI
	LD_R_R    // R1: dst reg, R2: src reg
	LD_R_N    // R1: dst reg
	LD_RR_NN  // R1: pair (BC, DE, HL, SP)
	LD_IND_A  // R1: 0=(BC) 1=(DE) 2=(HL+) 3=(HL-)
	LD_A_IND  // R1: same as LD_IND_A
	LD_NN_SP
	LD_NN_A
	LD_A_NN
	LDH_N_A
	LDH_A_N
	LDH_C_A
	LDH_A_C
	LD_SP_HL
	LD_HL_SPE
	ADD_SP_E
	INC_RR // R1: pair
	DEC_RR // R1: pair
	ADD_HL_RR
	INC_R // R1: reg
	DEC_R // R1: reg
	ALU_R // R1: alu op, R2: src reg
	ALU_N // R1: alu op
	RLCA
	RRCA
	RLA
	RRA
	DAA
	CPL
	SCF
	CCF
	JR
	JR_CC // R1: condition
	JP
	JP_CC // R1: condition
	JP_HL
	CALL
	CALL_CC // R1: condition
	RET
	RET_CC // R1: condition
	RETI
	RST  // R1: vector/8
	PUSH // R1: pair (BC, DE, HL, AF)
	POP  // R1: pair (BC, DE, HL, AF)
	PREFIX_CB

	// CB prefixed.
	ROT // R1: rot op, R2: reg
	BIT // R1: bit, R2: reg
	RES // R1: bit, R2: reg
	SET // R1: bit, R2: reg
)

// Register selectors, in opcode encoding order.
const (
	RegB uint8 = iota
	RegC
	RegD
	RegE
	RegH
	RegL
	RegHLInd // (HL)
	RegA
)

// ALU operations (ALU_R, ALU_N).
const (
	AluADD uint8 = iota
	AluADC
	AluSUB
	AluSBC
	AluAND
	AluXOR
	AluOR
	AluCP
)

// Rotate/shift operations (ROT).
const (
	RotRLC uint8 = iota
	RotRRC
	RotRL
	RotRR
	RotSLA
	RotSRA
	RotSWAP
	RotSRL
)

// Conditions: NZ, Z, NC, C.
const (
	CondNZ uint8 = iota
	CondZ
	CondNC
	CondC
)

type Instruction struct {
	Kind   Kind
	R1, R2 uint8
}

func (in Instruction) String() string {
	regs := [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	pairs := [4]string{"BC", "DE", "HL", "SP"}
	conds := [4]string{"NZ", "Z", "NC", "C"}
	alus := [8]string{"ADD", "ADC", "SUB", "SBC", "AND", "XOR", "OR", "CP"}
	rots := [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}

	switch in.Kind {
	case LD_R_R:
		return "LD " + regs[in.R1] + "," + regs[in.R2]
	case LD_R_N:
		return "LD " + regs[in.R1] + ",n"
	case LD_RR_NN:
		return "LD " + pairs[in.R1] + ",nn"
	case INC_R, DEC_R:
		return kindNames[in.Kind] + " " + regs[in.R1]
	case INC_RR, DEC_RR, ADD_HL_RR:
		return kindNames[in.Kind] + " " + pairs[in.R1]
	case ALU_R:
		return alus[in.R1] + " " + regs[in.R2]
	case ALU_N:
		return alus[in.R1] + " n"
	case JR_CC, JP_CC, CALL_CC, RET_CC:
		return kindNames[in.Kind] + " " + conds[in.R1]
	case RST:
		return fmt.Sprintf("RST %02XH", in.R1*8)
	case ROT:
		return rots[in.R1] + " " + regs[in.R2]
	case BIT, RES, SET:
		return fmt.Sprintf("%s %d,%s", kindNames[in.Kind], in.R1, regs[in.R2])
	}
	if int(in.Kind) < len(kindNames) && kindNames[in.Kind] != "" {
		return kindNames[in.Kind]
	}
	return fmt.Sprintf("Kind(%d)", in.Kind)
}

var kindNames = [...]string{
	Invalid: "INVALID", NOP: "NOP", STOP: "STOP", HALT: "HALT", DI: "DI", EI: "EI",
	LD_IND_A: "LD (rr),A", LD_A_IND: "LD A,(rr)", LD_NN_SP: "LD (nn),SP", LD_NN_A: "LD (nn),A",
	LD_A_NN: "LD A,(nn)", LDH_N_A: "LDH (n),A", LDH_A_N: "LDH A,(n)", LDH_C_A: "LD (C),A",
	LDH_A_C: "LD A,(C)", LD_SP_HL: "LD SP,HL", LD_HL_SPE: "LD HL,SP+e", ADD_SP_E: "ADD SP,e",
	INC_RR: "INC", DEC_RR: "DEC", ADD_HL_RR: "ADD HL,", INC_R: "INC", DEC_R: "DEC",
	RLCA: "RLCA", RRCA: "RRCA", RLA: "RLA", RRA: "RRA", DAA: "DAA", CPL: "CPL", SCF: "SCF", CCF: "CCF",
	JR: "JR", JR_CC: "JR", JP: "JP", JP_CC: "JP", JP_HL: "JP HL", CALL: "CALL", CALL_CC: "CALL",
	RET: "RET", RET_CC: "RET", RETI: "RETI", PUSH: "PUSH", POP: "POP", PREFIX_CB: "CB",
	BIT: "BIT", RES: "RES", SET: "SET",
}

// Decode decodes an unprefixed opcode. Opcode fields follow the usual
// x (7-6), y (5-3), z (2-0), p (5-4), q (3) split.
func Decode(op uint8) Instruction {
	x, y, z := op>>6, (op>>3)&7, op&7
	p, q := y>>1, y&1

	switch x {
	case 0:
		return decodeX0(y, z, p, q)
	case 1:
		if op == 0x76 {
			return Instruction{Kind: HALT}
		}
		return Instruction{Kind: LD_R_R, R1: y, R2: z}
	case 2:
		return Instruction{Kind: ALU_R, R1: y, R2: z}
	}
	return decodeX3(y, z, p, q)
}

func decodeX0(y, z, p, q uint8) Instruction {
	switch z {
	case 0:
		switch y {
		case 0:
			return Instruction{Kind: NOP}
		case 1:
			return Instruction{Kind: LD_NN_SP}
		case 2:
			return Instruction{Kind: STOP}
		case 3:
			return Instruction{Kind: JR}
		}
		return Instruction{Kind: JR_CC, R1: y - 4}
	case 1:
		if q == 0 {
			return Instruction{Kind: LD_RR_NN, R1: p}
		}
		return Instruction{Kind: ADD_HL_RR, R1: p}
	case 2:
		if q == 0 {
			return Instruction{Kind: LD_IND_A, R1: p}
		}
		return Instruction{Kind: LD_A_IND, R1: p}
	case 3:
		if q == 0 {
			return Instruction{Kind: INC_RR, R1: p}
		}
		return Instruction{Kind: DEC_RR, R1: p}
	case 4:
		return Instruction{Kind: INC_R, R1: y}
	case 5:
		return Instruction{Kind: DEC_R, R1: y}
	case 6:
		return Instruction{Kind: LD_R_N, R1: y}
	}
	return Instruction{Kind: [8]Kind{RLCA, RRCA, RLA, RRA, DAA, CPL, SCF, CCF}[y]}
}

func decodeX3(y, z, p, q uint8) Instruction {
	switch z {
	case 0:
		switch y {
		case 4:
			return Instruction{Kind: LDH_N_A}
		case 5:
			return Instruction{Kind: ADD_SP_E}
		case 6:
			return Instruction{Kind: LDH_A_N}
		case 7:
			return Instruction{Kind: LD_HL_SPE}
		}
		return Instruction{Kind: RET_CC, R1: y}
	case 1:
		if q == 0 {
			return Instruction{Kind: POP, R1: p}
		}
		return Instruction{Kind: [4]Kind{RET, RETI, JP_HL, LD_SP_HL}[p]}
	case 2:
		switch y {
		case 4:
			return Instruction{Kind: LDH_C_A}
		case 5:
			return Instruction{Kind: LD_NN_A}
		case 6:
			return Instruction{Kind: LDH_A_C}
		case 7:
			return Instruction{Kind: LD_A_NN}
		}
		return Instruction{Kind: JP_CC, R1: y}
	case 3:
		switch y {
		case 0:
			return Instruction{Kind: JP}
		case 1:
			return Instruction{Kind: PREFIX_CB}
		case 6:
			return Instruction{Kind: DI}
		case 7:
			return Instruction{Kind: EI}
		}
	case 4:
		if y < 4 {
			return Instruction{Kind: CALL_CC, R1: y}
		}
	case 5:
		if q == 0 {
			return Instruction{Kind: PUSH, R1: p}
		}
		if p == 0 {
			return Instruction{Kind: CALL}
		}
	case 6:
		return Instruction{Kind: ALU_N, R1: y}
	case 7:
		return Instruction{Kind: RST, R1: y}
	}
	return Instruction{Kind: Invalid}
}

// DecodeCB decodes the opcode following a $CB prefix. All 256 values are
// valid.
func DecodeCB(op uint8) Instruction {
	x, y, z := op>>6, (op>>3)&7, op&7
	switch x {
	case 0:
		return Instruction{Kind: ROT, R1: y, R2: z}
	case 1:
		return Instruction{Kind: BIT, R1: y, R2: z}
	case 2:
		return Instruction{Kind: RES, R1: y, R2: z}
	}
	return Instruction{Kind: SET, R1: y, R2: z}
}
