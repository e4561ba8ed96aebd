package snapshot

type M68K struct {
	D            [8]uint32
	A            [7]uint32
	USP, SSP     uint32
	PC           uint32
	SR           uint16
	Stopped      bool
	PrevIntLevel uint8
}

type Z80 struct {
	AF, BC, DE, HL     uint16
	AF2, BC2, DE2, HL2 uint16
	IX, IY, SP, PC     uint16
	I, R               uint8
	WZ                 uint16
	IFF1, IFF2         bool
	IM                 uint8

	Halted     bool
	EIDelay    bool
	PrevNMI    bool
	NMIPending bool
}

type PSG struct {
	Tone         [3]uint16
	Volume       [4]uint8
	Noise        uint8
	LatchChannel uint8
	LatchVolume  bool

	Counters    [4]uint16
	Outputs     [4]bool
	NoiseToggle bool
	LFSR        uint16
	Divider     uint8
	Stereo      uint8
}

type YMOperator struct {
	Phase   uint32
	EGLevel uint16
	EGState uint8
	KeyOn   bool
}

type YMTimer struct {
	Period   uint16
	Counter  uint16
	Sub      uint8
	Loaded   bool
	Enabled  bool
	Overflow bool
}

type YM2612 struct {
	// Raw register file, replayed on load.
	Regs      [2][256]uint8
	AddrLatch [2]uint8
	FreqLatch uint8
	Ch3Latch  uint8

	Operators [24]YMOperator
	Feedback  [6][2]int32

	TimerA, TimerB YMTimer

	Divider    uint8
	EGDivider  uint8
	EGCounter  uint16
	LFOStep    uint8
	LFODivider uint8
	Busy       uint16
	Out        [2]int32
}

type GenesisVDP struct {
	Regs  [24]uint8
	VRAM  []byte
	CRAM  [64]uint16
	VSRAM [40]uint16

	Code        uint8
	Addr        uint16
	Pending     bool
	FillPending bool

	Line        uint16
	LineCycle   uint32
	HCounter    int16
	VIntPending bool
	HIntPending bool
	Z80Int      bool
}

type GenesisIO struct {
	Data [2]uint8
	Ctrl [2]uint8
	Pads [2]uint8 // latched joypad buttons, see genesis.Joypad
}

type GenesisCart struct {
	RAM   []byte
	Dirty bool
}

type Genesis struct {
	Version int

	M68K   M68K
	Z80    Z80
	PSG    PSG
	YM2612 YM2612
	VDP    GenesisVDP
	IO     GenesisIO
	Cart   GenesisCart

	RAM      []byte
	AudioRAM []byte

	Z80BusReq bool
	Z80Reset  bool
	Z80Bank   uint16
	Lockup    bool

	MClk      uint64
	Z80Budget int64
	FrameMClk uint64
	Mixer     Mixer
}
