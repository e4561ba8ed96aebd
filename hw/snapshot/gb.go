package snapshot

type GameBoy struct {
	Version int
	CPU     SM83
	Cart    GBCart
	Timer   GBTimer
	LCD     GBLCD
	APU     GBAPU

	VRAM []byte
	WRAM []byte
	OAM  []byte
	HRAM []byte

	IE      uint8
	IF      uint8
	P1      uint8
	SB      uint8
	SC      uint8
	Buttons uint8
}

type SM83 struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
	IME                    bool

	PendingIMESet     bool
	HandlingInterrupt bool
	Halted            bool
	HaltBug           bool
	Stopped           bool
	Locked            bool
}

type GBCart struct {
	RAM        []byte
	RAMEnabled bool
	ROMBank    uint8
	RAMBank    uint8
	Mode       uint8
	Dirty      bool
}

type GBTimer struct {
	Divider uint16
	TIMA    uint8
	TMA     uint8
	TAC     uint8
	Reload  uint8
}

type GBLCD struct {
	Dots uint32
	Line uint8
	Regs [12]uint8 // $FF40-$FF4B
}

type GBAPU struct {
	Powered bool
	SeqStep uint8
	NR50    uint8
	NR51    uint8
	Time    uint32
	Mixer   Mixer

	Pulse1 GBPulse
	Pulse2 GBPulse
	Wave   GBWave
	Noise  GBNoise
}

type GBLength struct {
	Enabled bool
	Counter uint16
}

type GBEnvelope struct {
	Initial    uint8
	Increasing bool
	Period     uint8
	Volume     uint8
	Counter    uint8
}

type GBSweep struct {
	Enabled    bool
	Shadow     uint16
	Counter    uint8
	Period     uint8
	Shift      uint8
	Negate     bool
	NegateUsed bool
}

type GBPulse struct {
	Duty         uint8
	Length       GBLength
	Envelope     GBEnvelope
	Sweep        GBSweep
	Frequency    uint16
	TimerCounter uint16
	Phase        uint8
	Enabled      bool
	DACEnabled   bool
}

type GBWave struct {
	Length     GBLength
	Frequency  uint16
	Counter    int32
	Position   uint8
	VolumeCode uint8
	Enabled    bool
	DACEnabled bool
	RAM        [16]uint8
}

type GBNoise struct {
	Length     GBLength
	Envelope   GBEnvelope
	LFSR       uint16
	ShortMode  bool
	ClockShift uint8
	Divisor    uint8
	Counter    int32
	Enabled    bool
	DACEnabled bool
}
