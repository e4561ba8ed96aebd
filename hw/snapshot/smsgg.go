package snapshot

type SMSGG struct {
	Version int
	Z80     Z80
	PSG     PSG
	VDP     SMSVDP

	RAM     []byte
	CartRAM []byte
	Mapper  [4]uint8 // $FFFC-$FFFF
	RAMUsed bool
	Dirty   bool

	IOControl   uint8
	P1, P2      uint8 // latched joypads, one bit per button
	Pause       bool
	ResetHeld   bool
	ResetFrames uint8

	MClk        uint64
	FrameClocks uint64
	Mixer       Mixer
}

type SMSVDP struct {
	Regs [11]uint8
	VRAM []byte
	CRAM []byte

	Address    uint16
	Code       uint8
	Latched    bool
	Latch      uint8
	ReadBuffer uint8
	CRAMLatch  uint8

	FrameInt    bool
	LineInt     bool
	LineCounter uint8
	Line        uint16
	Dot         uint16
}
