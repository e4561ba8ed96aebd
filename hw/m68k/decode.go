package m68k

import "fmt"

// Kind identifies an instruction.
type Kind uint8

const (
	Illegal Kind = iota
	// Unimplemented covers the valid encodings the core doesn't execute:
	// the BCD arithmetic instructions ABCD, SBCD and NBCD, and MOVEP. They
	// are reported and then handled as illegal instructions.
	Unimplemented
	LineA
	LineF

	ORI
	ORI_CCR
	ORI_SR
	ANDI
	ANDI_CCR
	ANDI_SR
	EORI
	EORI_CCR
	EORI_SR
	SUBI
	ADDI
	CMPI

	BTST
	BCHG
	BCLR
	BSET

	MOVE
	MOVEA
	MOVEQ
	MOVE_FROM_SR
	MOVE_TO_CCR
	MOVE_TO_SR
	MOVE_USP // Data: 0 An to USP, 1 USP to An
	MOVEM    // Data: 0 registers to memory, 1 memory to registers

	NEGX
	CLR
	NEG
	NOT
	EXT
	SWAP
	TST
	TAS
	PEA
	LEA
	CHK
	LINK
	UNLK
	EXG // Data: 0x08 Dx/Dy, 0x09 Ax/Ay, 0x11 Dx/Ay

	TRAP // Data: vector number (0-15)
	TRAPV
	RESET
	NOP
	STOP
	RTE
	RTS
	RTR
	JSR
	JMP

	ADDQ // Data: quick value (1-8)
	SUBQ // Data: quick value (1-8)
	Scc  // Cond
	DBcc // Cond

	BRA // Data: 8-bit displacement, 0 means a 16-bit extension word
	BSR
	Bcc // Cond

	OR
	AND
	EOR
	ADD
	ADDA
	ADDX
	SUB
	SUBA
	SUBX
	CMP
	CMPA
	CMPM
	MULU
	MULS
	DIVU
	DIVS

	// Shifts and rotates. Count is Data (1-8) or the data register in Src
	// when Src.Mode is DataReg. Memory forms shift by 1.
	ASL
	ASR
	LSL
	LSR
	ROXL
	ROXR
	ROL
	ROR
)

var kindNames = [...]string{
	Illegal: "ILLEGAL", Unimplemented: "UNIMPL", LineA: "LINEA", LineF: "LINEF",
	ORI: "ORI", ORI_CCR: "ORI", ORI_SR: "ORI", ANDI: "ANDI", ANDI_CCR: "ANDI", ANDI_SR: "ANDI",
	EORI: "EORI", EORI_CCR: "EORI", EORI_SR: "EORI", SUBI: "SUBI", ADDI: "ADDI", CMPI: "CMPI",
	BTST: "BTST", BCHG: "BCHG", BCLR: "BCLR", BSET: "BSET",
	MOVE: "MOVE", MOVEA: "MOVEA", MOVEQ: "MOVEQ", MOVE_FROM_SR: "MOVE", MOVE_TO_CCR: "MOVE",
	MOVE_TO_SR: "MOVE", MOVE_USP: "MOVE", MOVEM: "MOVEM",
	NEGX: "NEGX", CLR: "CLR", NEG: "NEG", NOT: "NOT", EXT: "EXT", SWAP: "SWAP", TST: "TST",
	TAS: "TAS", PEA: "PEA", LEA: "LEA", CHK: "CHK", LINK: "LINK", UNLK: "UNLK", EXG: "EXG",
	TRAP: "TRAP", TRAPV: "TRAPV", RESET: "RESET", NOP: "NOP", STOP: "STOP", RTE: "RTE",
	RTS: "RTS", RTR: "RTR", JSR: "JSR", JMP: "JMP",
	ADDQ: "ADDQ", SUBQ: "SUBQ", Scc: "S", DBcc: "DB", BRA: "BRA", BSR: "BSR", Bcc: "B",
	OR: "OR", AND: "AND", EOR: "EOR", ADD: "ADD", ADDA: "ADDA", ADDX: "ADDX",
	SUB: "SUB", SUBA: "SUBA", SUBX: "SUBX", CMP: "CMP", CMPA: "CMPA", CMPM: "CMPM",
	MULU: "MULU", MULS: "MULS", DIVU: "DIVU", DIVS: "DIVS",
	ASL: "ASL", ASR: "ASR", LSL: "LSL", LSR: "LSR", ROXL: "ROXL", ROXR: "ROXR", ROL: "ROL", ROR: "ROR",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type Size uint8

const (
	Byte Size = 1
	Word Size = 2
	Long Size = 4
)

func (s Size) mask() uint32 {
	switch s {
	case Byte:
		return 0xFF
	case Word:
		return 0xFFFF
	}
	return 0xFFFFFFFF
}

func (s Size) msb() uint32 { return 1 << (8*uint32(s) - 1) }

func (s Size) String() string {
	switch s {
	case Byte:
		return "B"
	case Word:
		return "W"
	case Long:
		return "L"
	}
	return ""
}

// Mode is an effective addressing mode.
type Mode uint8

const (
	NoMode    Mode = iota
	DataReg        // Dn
	AddrReg        // An
	AddrInd        // (An)
	PostInc        // (An)+
	PreDec         // -(An)
	Disp           // d16(An)
	Index          // d8(An,Xn)
	AbsShort       // (xxx).W
	AbsLong        // (xxx).L
	PCDisp         // d16(PC)
	PCIndex        // d8(PC,Xn)
	Immediate      // #imm
	InvalidMode
)

// Operand is an effective address, extension words are read at execution.
type Operand struct {
	Mode Mode
	Reg  uint8
}

func (o Operand) String() string {
	switch o.Mode {
	case DataReg:
		return fmt.Sprintf("D%d", o.Reg)
	case AddrReg:
		return fmt.Sprintf("A%d", o.Reg)
	case AddrInd:
		return fmt.Sprintf("(A%d)", o.Reg)
	case PostInc:
		return fmt.Sprintf("(A%d)+", o.Reg)
	case PreDec:
		return fmt.Sprintf("-(A%d)", o.Reg)
	case Disp:
		return fmt.Sprintf("d16(A%d)", o.Reg)
	case Index:
		return fmt.Sprintf("d8(A%d,Xn)", o.Reg)
	case AbsShort:
		return "(xxx).W"
	case AbsLong:
		return "(xxx).L"
	case PCDisp:
		return "d16(PC)"
	case PCIndex:
		return "d8(PC,Xn)"
	case Immediate:
		return "#imm"
	}
	return "?"
}

func dreg(n uint16) Operand { return Operand{Mode: DataReg, Reg: uint8(n & 7)} }
func areg(n uint16) Operand { return Operand{Mode: AddrReg, Reg: uint8(n & 7)} }

var imm = Operand{Mode: Immediate}

// decodeEA decodes the 6-bit mode/register effective address field.
func decodeEA(mode, reg uint16) Operand {
	mode, reg = mode&7, reg&7
	if mode < 7 {
		return Operand{Mode: DataReg + Mode(mode), Reg: uint8(reg)}
	}
	switch reg {
	case 0:
		return Operand{Mode: AbsShort}
	case 1:
		return Operand{Mode: AbsLong}
	case 2:
		return Operand{Mode: PCDisp}
	case 3:
		return Operand{Mode: PCIndex}
	case 4:
		return imm
	}
	return Operand{Mode: InvalidMode}
}

// srcEA decodes the effective address in the low 6 bits of an opcode.
func srcEA(op uint16) Operand { return decodeEA(op>>3, op) }

func (o Operand) valid() bool     { return o.Mode > NoMode && o.Mode < InvalidMode }
func (o Operand) data() bool      { return o.valid() && o.Mode != AddrReg }
func (o Operand) memory() bool    { return o.valid() && o.Mode >= AddrInd }
func (o Operand) alterable() bool { return o.valid() && o.Mode <= AbsLong }
func (o Operand) dataAlt() bool   { return o.data() && o.alterable() }
func (o Operand) memoryAlt() bool { return o.memory() && o.alterable() }

func (o Operand) control() bool {
	switch o.Mode {
	case AddrInd, Disp, Index, AbsShort, AbsLong, PCDisp, PCIndex:
		return true
	}
	return false
}

// Instruction is a decoded opcode. Extension words are not part of it.
type Instruction struct {
	Kind Kind
	Size Size
	Src  Operand
	Dst  Operand
	Cond uint8
	Data uint8
}

var conditions = [16]string{"T", "F", "HI", "LS", "CC", "CS", "NE", "EQ", "VC", "VS", "PL", "MI", "GE", "LT", "GT", "LE"}

func (in Instruction) String() string {
	s := in.Kind.String()
	switch in.Kind {
	case Scc, DBcc, Bcc:
		s += conditions[in.Cond&0xF]
	}
	if in.Size != 0 {
		s += "." + in.Size.String()
	}
	switch {
	case in.Src.Mode != NoMode && in.Dst.Mode != NoMode:
		s += " " + in.Src.String() + "," + in.Dst.String()
	case in.Src.Mode != NoMode:
		s += " " + in.Src.String()
	case in.Dst.Mode != NoMode:
		s += " " + in.Dst.String()
	}
	return s
}

var illegal = Instruction{Kind: Illegal}

// sizeField decodes the usual 2-bit size field (bits 7-6).
func sizeField(op uint16) (Size, bool) {
	switch op >> 6 & 3 {
	case 0:
		return Byte, true
	case 1:
		return Word, true
	case 2:
		return Long, true
	}
	return 0, false
}

// Decode decodes an opcode word. It never fails: invalid encodings decode
// to Illegal.
func Decode(op uint16) Instruction {
	var in Instruction
	switch op >> 12 {
	case 0x0:
		in = decodeImmediateAndBits(op)
	case 0x1, 0x2, 0x3:
		in = decodeMove(op)
	case 0x4:
		in = decodeMisc(op)
	case 0x5:
		in = decodeQuick(op)
	case 0x6:
		in = decodeBranch(op)
	case 0x7:
		if op&0x0100 != 0 {
			return illegal
		}
		in = Instruction{Kind: MOVEQ, Size: Long, Dst: dreg(op >> 9), Data: uint8(op)}
	case 0x8:
		in = decodeArith(op, OR, 0, 0)
	case 0x9:
		in = decodeArith(op, SUB, SUBA, SUBX)
	case 0xA:
		return Instruction{Kind: LineA}
	case 0xB:
		in = decodeCmpEor(op)
	case 0xC:
		in = decodeArith(op, AND, 0, 0)
	case 0xD:
		in = decodeArith(op, ADD, ADDA, ADDX)
	case 0xE:
		in = decodeShift(op)
	case 0xF:
		return Instruction{Kind: LineF}
	}
	return in
}

// Immediate instructions, indexed by opcode bits 11-9: plain, to CCR, to SR.
var immediateKinds = [8][3]Kind{
	0: {ORI, ORI_CCR, ORI_SR},
	1: {ANDI, ANDI_CCR, ANDI_SR},
	2: {SUBI},
	3: {ADDI},
	5: {EORI, EORI_CCR, EORI_SR},
	6: {CMPI},
}

func decodeImmediateAndBits(op uint16) Instruction {
	dst := srcEA(op)

	if op&0x0100 != 0 {
		if op>>3&7 == 1 {
			return Instruction{Kind: Unimplemented} // MOVEP
		}
		in := Instruction{Kind: BTST + Kind(op>>6&3), Src: dreg(op >> 9), Dst: dst}
		return bitOp(in)
	}

	reg := op >> 9 & 7
	if reg == 4 {
		in := Instruction{Kind: BTST + Kind(op>>6&3), Src: imm, Dst: dst}
		if dst.Mode == Immediate {
			return illegal
		}
		return bitOp(in)
	}

	k := immediateKinds[reg]
	if k[0] == Illegal {
		return illegal
	}
	switch op & 0xFF {
	case 0x3C:
		if k[1] != Illegal {
			return Instruction{Kind: k[1], Size: Byte, Src: imm}
		}
	case 0x7C:
		if k[2] != Illegal {
			return Instruction{Kind: k[2], Size: Word, Src: imm}
		}
	}
	size, ok := sizeField(op)
	if !ok || !dst.dataAlt() {
		return illegal
	}
	return Instruction{Kind: k[0], Size: size, Src: imm, Dst: dst}
}

// bitOp validates a bit instruction and sets its size: long for data
// registers, byte for memory.
func bitOp(in Instruction) Instruction {
	switch {
	case !in.Dst.data():
		return illegal
	case in.Kind != BTST && !in.Dst.alterable():
		return illegal
	}
	in.Size = Byte
	if in.Dst.Mode == DataReg {
		in.Size = Long
	}
	return in
}

func decodeMove(op uint16) Instruction {
	var size Size
	switch op >> 12 {
	case 1:
		size = Byte
	case 2:
		size = Long
	case 3:
		size = Word
	}
	src := srcEA(op)
	dst := decodeEA(op>>6, op>>9)
	if !src.valid() || size == Byte && src.Mode == AddrReg {
		return illegal
	}
	if dst.Mode == AddrReg {
		if size == Byte {
			return illegal
		}
		return Instruction{Kind: MOVEA, Size: size, Src: src, Dst: dst}
	}
	if !dst.dataAlt() {
		return illegal
	}
	return Instruction{Kind: MOVE, Size: size, Src: src, Dst: dst}
}

var singleOperand = map[uint16]Kind{0x4000: NEGX, 0x4200: CLR, 0x4400: NEG, 0x4600: NOT, 0x4A00: TST}

func decodeMisc(op uint16) Instruction {
	ea := srcEA(op)

	switch op & 0x01C0 {
	case 0x01C0:
		if !ea.control() {
			return illegal
		}
		return Instruction{Kind: LEA, Size: Long, Src: ea, Dst: areg(op >> 9)}
	case 0x0180:
		if !ea.data() {
			return illegal
		}
		return Instruction{Kind: CHK, Size: Word, Src: ea, Dst: dreg(op >> 9)}
	}

	switch op {
	case 0x4AFC:
		return illegal
	case 0x4E70:
		return Instruction{Kind: RESET}
	case 0x4E71:
		return Instruction{Kind: NOP}
	case 0x4E72:
		return Instruction{Kind: STOP, Src: imm}
	case 0x4E73:
		return Instruction{Kind: RTE}
	case 0x4E75:
		return Instruction{Kind: RTS}
	case 0x4E76:
		return Instruction{Kind: TRAPV}
	case 0x4E77:
		return Instruction{Kind: RTR}
	}

	switch op & 0xFFF8 {
	case 0x4840:
		return Instruction{Kind: SWAP, Size: Word, Dst: dreg(op)}
	case 0x4880:
		return Instruction{Kind: EXT, Size: Word, Dst: dreg(op)}
	case 0x48C0:
		return Instruction{Kind: EXT, Size: Long, Dst: dreg(op)}
	case 0x4E50:
		return Instruction{Kind: LINK, Src: imm, Dst: areg(op)}
	case 0x4E58:
		return Instruction{Kind: UNLK, Dst: areg(op)}
	case 0x4E60:
		return Instruction{Kind: MOVE_USP, Size: Long, Src: areg(op), Data: 0}
	case 0x4E68:
		return Instruction{Kind: MOVE_USP, Size: Long, Dst: areg(op), Data: 1}
	}
	if op&0xFFF0 == 0x4E40 {
		return Instruction{Kind: TRAP, Data: uint8(op & 0xF)}
	}

	switch op & 0xFFC0 {
	case 0x40C0:
		if !ea.dataAlt() {
			return illegal
		}
		return Instruction{Kind: MOVE_FROM_SR, Size: Word, Dst: ea}
	case 0x44C0:
		if !ea.data() {
			return illegal
		}
		return Instruction{Kind: MOVE_TO_CCR, Size: Word, Src: ea}
	case 0x46C0:
		if !ea.data() {
			return illegal
		}
		return Instruction{Kind: MOVE_TO_SR, Size: Word, Src: ea}
	case 0x4800:
		return Instruction{Kind: Unimplemented} // NBCD
	case 0x4840:
		if !ea.control() {
			return illegal
		}
		return Instruction{Kind: PEA, Size: Long, Src: ea}
	case 0x4AC0:
		if !ea.dataAlt() {
			return illegal
		}
		return Instruction{Kind: TAS, Size: Byte, Dst: ea}
	case 0x4E80, 0x4EC0:
		if !ea.control() {
			return illegal
		}
		if op&0x40 != 0 {
			return Instruction{Kind: JMP, Src: ea}
		}
		return Instruction{Kind: JSR, Src: ea}
	}

	if op&0xFB80 == 0x4880 {
		size := Word
		if op&0x40 != 0 {
			size = Long
		}
		if op&0x0400 == 0 {
			if !ea.control() && ea.Mode != PreDec || !ea.alterable() {
				return illegal
			}
			return Instruction{Kind: MOVEM, Size: size, Dst: ea, Data: 0}
		}
		if !ea.control() && ea.Mode != PostInc {
			return illegal
		}
		return Instruction{Kind: MOVEM, Size: size, Src: ea, Data: 1}
	}

	if k, ok := singleOperand[op&0xFF00]; ok {
		size, ok := sizeField(op)
		if !ok || !ea.dataAlt() {
			return illegal
		}
		return Instruction{Kind: k, Size: size, Dst: ea}
	}
	return illegal
}

func decodeQuick(op uint16) Instruction {
	ea := srcEA(op)
	cond := uint8(op >> 8 & 0xF)

	if op&0xC0 == 0xC0 {
		if ea.Mode == AddrReg {
			return Instruction{Kind: DBcc, Size: Word, Dst: dreg(op), Cond: cond}
		}
		if !ea.dataAlt() {
			return illegal
		}
		return Instruction{Kind: Scc, Size: Byte, Dst: ea, Cond: cond}
	}

	size, _ := sizeField(op)
	if !ea.alterable() || size == Byte && ea.Mode == AddrReg {
		return illegal
	}
	data := uint8(op >> 9 & 7)
	if data == 0 {
		data = 8
	}
	k := ADDQ
	if op&0x0100 != 0 {
		k = SUBQ
	}
	return Instruction{Kind: k, Size: size, Dst: ea, Data: data}
}

func decodeBranch(op uint16) Instruction {
	cond := uint8(op >> 8 & 0xF)
	in := Instruction{Kind: Bcc, Cond: cond, Data: uint8(op)}
	switch cond {
	case 0:
		in.Kind = BRA
	case 1:
		in.Kind = BSR
	}
	return in
}

// decodeArith decodes the OR/AND/ADD/SUB groups (and MUL/DIV/EXG sitting in
// the OR and AND groups).
func decodeArith(op uint16, k, ka, kx Kind) Instruction {
	ea := srcEA(op)
	reg := dreg(op >> 9)
	opmode := op >> 6 & 7

	switch opmode {
	case 3, 7:
		if !ea.valid() {
			return illegal
		}
		switch k {
		case OR, AND:
			if !ea.data() {
				return illegal
			}
			kinds := [2]Kind{DIVU, DIVS}
			if k == AND {
				kinds = [2]Kind{MULU, MULS}
			}
			return Instruction{Kind: kinds[opmode>>2], Size: Word, Src: ea, Dst: reg}
		}
		size := Word
		if opmode == 7 {
			size = Long
		}
		return Instruction{Kind: ka, Size: size, Src: ea, Dst: areg(op >> 9)}
	}

	size, _ := sizeField(op)
	if opmode < 3 {
		if !ea.valid() || size == Byte && ea.Mode == AddrReg {
			return illegal
		}
		if (k == OR || k == AND) && !ea.data() {
			return illegal
		}
		return Instruction{Kind: k, Size: size, Src: ea, Dst: reg}
	}

	// opmode 4-6: Dn,<ea> or the register/predecrement forms.
	if ea.Mode == DataReg || ea.Mode == AddrReg {
		switch {
		case k == AND && op&0x1F8 == 0x140:
			return Instruction{Kind: EXG, Src: dreg(op >> 9), Dst: dreg(op), Data: 0x08}
		case k == AND && op&0x1F8 == 0x148:
			return Instruction{Kind: EXG, Src: areg(op >> 9), Dst: areg(op), Data: 0x09}
		case k == AND && op&0x1F8 == 0x188:
			return Instruction{Kind: EXG, Src: dreg(op >> 9), Dst: areg(op), Data: 0x11}
		case kx == 0:
			return Instruction{Kind: Unimplemented} // ABCD, SBCD
		case ea.Mode == DataReg:
			return Instruction{Kind: kx, Size: size, Src: dreg(op), Dst: reg}
		}
		pre := func(n uint16) Operand { return Operand{Mode: PreDec, Reg: uint8(n & 7)} }
		return Instruction{Kind: kx, Size: size, Src: pre(op), Dst: pre(op >> 9)}
	}
	if !ea.memoryAlt() {
		return illegal
	}
	return Instruction{Kind: k, Size: size, Src: reg, Dst: ea}
}

func decodeCmpEor(op uint16) Instruction {
	ea := srcEA(op)
	opmode := op >> 6 & 7

	switch opmode {
	case 3, 7:
		if !ea.valid() {
			return illegal
		}
		size := Word
		if opmode == 7 {
			size = Long
		}
		return Instruction{Kind: CMPA, Size: size, Src: ea, Dst: areg(op >> 9)}
	}

	size, _ := sizeField(op)
	if opmode < 3 {
		if !ea.valid() || size == Byte && ea.Mode == AddrReg {
			return illegal
		}
		return Instruction{Kind: CMP, Size: size, Src: ea, Dst: dreg(op >> 9)}
	}
	if ea.Mode == AddrReg {
		post := func(n uint16) Operand { return Operand{Mode: PostInc, Reg: uint8(n & 7)} }
		return Instruction{Kind: CMPM, Size: size, Src: post(op), Dst: post(op >> 9)}
	}
	if !ea.dataAlt() {
		return illegal
	}
	return Instruction{Kind: EOR, Size: size, Src: dreg(op >> 9), Dst: ea}
}

var shiftKinds = [4][2]Kind{
	{ASR, ASL},
	{LSR, LSL},
	{ROXR, ROXL},
	{ROR, ROL},
}

func decodeShift(op uint16) Instruction {
	left := op >> 8 & 1

	if op&0xC0 == 0xC0 {
		ea := srcEA(op)
		if op&0x0800 != 0 || !ea.memoryAlt() {
			return illegal
		}
		return Instruction{Kind: shiftKinds[op>>9&3][left], Size: Word, Dst: ea, Data: 1}
	}

	size, _ := sizeField(op)
	in := Instruction{Kind: shiftKinds[op>>3&3][left], Size: size, Dst: dreg(op)}
	if op&0x20 != 0 {
		in.Src = dreg(op >> 9)
	} else {
		in.Data = uint8(op >> 9 & 7)
		if in.Data == 0 {
			in.Data = 8
		}
	}
	return in
}
