package gb

import (
	"retrocore/hw/hwio"
	"retrocore/hw/sm83"
)

// TIMA is incremented on the falling edge of one bit of the internal 16-bit
// divider, selected by TAC.
var timerBits = [4]uint{9, 3, 5, 7}

// The APU frame sequencer is clocked on the falling edge of divider bit 12
// (bit 4 of DIV), at 512Hz.
const apuSeqBit = 12

type timer struct {
	gb *GameBoy

	divider uint16
	tima    uint8
	tma     uint8
	tac     uint8

	// M-cycles left before TIMA is reloaded after an overflow, 0 if none.
	reload uint8

	DIV  hwio.Reg8 `hwio:"offset=0x04,rcb,wcb"`
	TIMA hwio.Reg8 `hwio:"offset=0x05,rcb,wcb"`
	TMA  hwio.Reg8 `hwio:"offset=0x06,rcb,wcb"`
	TAC  hwio.Reg8 `hwio:"offset=0x07,rcb,wcb"`
}

func (t *timer) signal() bool {
	return t.tac&0x04 != 0 && t.divider>>timerBits[t.tac&0x03]&1 != 0
}

// setDivider updates the divider, incrementing TIMA on a falling edge of the
// selected signal and clocking the APU frame sequencer on a falling edge of
// its divider bit.
func (t *timer) setDivider(div uint16) {
	prev := t.signal()
	prevSeq := t.divider >> apuSeqBit & 1
	t.divider = div
	if prev && !t.signal() {
		t.increment()
	}
	if prevSeq == 1 && div>>apuSeqBit&1 == 0 {
		t.gb.APU.ClockFrameSequencer()
	}
}

func (t *timer) increment() {
	t.tima++
	if t.tima == 0 {
		t.reload = 1
	}
}

// tick advances the timer by one M-cycle.
func (t *timer) tick() {
	if t.reload != 0 {
		t.reload--
		if t.reload == 0 {
			t.tima = t.tma
			t.gb.requestInterrupt(sm83.Timer)
		}
	}
	t.setDivider(t.divider + 4)
}

func (t *timer) ReadDIV(_ uint8) uint8 { return uint8(t.divider >> 8) }
func (t *timer) WriteDIV(_, _ uint8)   { t.setDivider(0) }

func (t *timer) ReadTIMA(_ uint8) uint8 { return t.tima }

func (t *timer) WriteTIMA(_, val uint8) {
	// Writing during the reload delay cancels the reload.
	t.tima = val
	t.reload = 0
}

func (t *timer) ReadTMA(_ uint8) uint8 { return t.tma }
func (t *timer) WriteTMA(_, val uint8) { t.tma = val }

func (t *timer) ReadTAC(_ uint8) uint8 { return 0xF8 | t.tac }

func (t *timer) WriteTAC(_, val uint8) {
	prev := t.signal()
	t.tac = val & 0x07
	if prev && !t.signal() {
		t.increment()
	}
}
