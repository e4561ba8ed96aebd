package ym2612

import "math"

type egState uint8

const (
	attack egState = iota
	decay
	sustain
	release
)

const (
	maxAttenuation = 0x3FF
	phaseMask      = 0xFFFFF // 20-bit phase accumulator
)

// logSin holds the attenuation of a quarter sine wave, in 1/256 octave
// units, and expTable converts the fractional part of an attenuation back
// to a linear 10-bit mantissa.
var logSin, expTable = func() (ls, ex [256]uint16) {
	for i := range 256 {
		s := math.Sin((float64(i) + 0.5) * math.Pi / 512)
		ls[i] = uint16(math.Round(-math.Log2(s) * 256))
		ex[i] = uint16(math.Round((math.Exp2(float64(i)/256) - 1) * 1024))
	}
	return
}()

// detuneTable is indexed by the magnitude of DT (bits 0-1) and the key code.
var detuneTable = [4][32]uint32{
	{},
	{0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 3, 3, 3, 4, 4, 4, 5, 5, 6, 6, 7, 8, 8, 8, 8},
	{1, 1, 1, 1, 2, 2, 2, 2, 2, 3, 3, 3, 4, 4, 4, 5, 5, 6, 6, 7, 8, 8, 9, 10, 11, 12, 13, 14, 16, 16, 16, 16},
	{2, 2, 2, 2, 2, 3, 3, 3, 4, 4, 4, 5, 5, 6, 6, 7, 8, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 20, 22, 22, 22, 22},
}

// egIncrements holds the 8-step increment patterns of the envelope
// generator. Rates below 48 use the first 4 rows, rates 48-59 one row each,
// and rates 60-63 the last row.
var egIncrements = [17][8]uint16{
	{0, 1, 0, 1, 0, 1, 0, 1},
	{0, 1, 0, 1, 1, 1, 0, 1},
	{0, 1, 1, 1, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 1},

	{1, 1, 1, 1, 1, 1, 1, 1},
	{1, 1, 1, 2, 1, 1, 1, 2},
	{1, 2, 1, 2, 1, 2, 1, 2},
	{1, 2, 2, 2, 1, 2, 2, 2},

	{2, 2, 2, 2, 2, 2, 2, 2},
	{2, 2, 2, 4, 2, 2, 2, 4},
	{2, 4, 2, 4, 2, 4, 2, 4},
	{2, 4, 4, 4, 2, 4, 4, 4},

	{4, 4, 4, 4, 4, 4, 4, 4},
	{4, 4, 4, 8, 4, 4, 4, 8},
	{4, 8, 4, 8, 4, 8, 4, 8},
	{4, 8, 8, 8, 4, 8, 8, 8},

	{8, 8, 8, 8, 8, 8, 8, 8},
}

type operator struct {
	dt, mul uint8
	tl      uint8 // 7 bits
	ks      uint8 // rate scaling
	ar      uint8
	am      bool
	d1r     uint8
	d2r     uint8
	d1l     uint8
	rr      uint8
	ssgEG   uint8

	keyCode  uint8
	phase    uint32
	phaseInc uint32
	egLevel  uint16
	egState  egState
	keyOn    bool
}

func (op *operator) reset() {
	*op = operator{
		egLevel: maxAttenuation,
		egState: release,
	}
}

// computeKeyCode returns the 5-bit key code used for rate scaling and
// detune: the block and the 2 top bits of the frequency number, the last
// one being rounded.
func computeKeyCode(fnum uint16, block uint8) uint8 {
	f11 := fnum >> 10 & 1
	f10 := fnum >> 9 & 1
	f9 := fnum >> 8 & 1
	f8 := fnum >> 7 & 1
	n4 := f11&(f10|f9|f8) | (f11^1)&f10&f9&f8
	return block<<2 | uint8(f11)<<1 | uint8(n4)
}

// computePhaseIncrement returns the per-sample increment of the 20-bit
// phase accumulator of an operator.
func computePhaseIncrement(fnum uint16, block uint8, keyCode uint8, dt uint8, mul uint8) uint32 {
	base := uint32(fnum) << block >> 1

	det := detuneTable[dt&3][keyCode&0x1F]
	if dt&4 != 0 {
		base -= det
	} else {
		base += det
	}
	base &= 0x1FFFF

	if mul == 0 {
		return base >> 1
	}
	return base * uint32(mul) & phaseMask
}

// effectiveRate scales a 5-bit envelope rate with the key code. A rate of
// 0 stays 0 whatever the key code.
func effectiveRate(rate, ks, keyCode uint8) uint8 {
	if rate == 0 {
		return 0
	}
	return min(2*rate+keyCode>>(3-ks), 63)
}

func sustainLevel(d1l uint8) uint16 {
	if d1l == 15 {
		return 0x3E0
	}
	return uint16(d1l) << 5
}

func totalLevel(eg uint16, tl uint8) uint16 {
	return min(eg+uint16(tl)<<3, maxAttenuation)
}

// envelopeIncrement returns the envelope step for an effective rate at the
// given envelope generator counter.
func envelopeIncrement(rate uint8, counter uint16) uint16 {
	if rate < 2 {
		return 0
	}
	var shift uint8
	if rate < 44 {
		shift = 11 - rate>>2
	}
	if counter&(1<<shift-1) != 0 {
		return 0
	}

	row := rate & 3
	switch {
	case rate >= 60:
		row = 16
	case rate >= 48:
		row = rate - 44
	}
	return egIncrements[row][counter>>shift&7]
}

// stepEnvelope runs one envelope generator clock.
func (op *operator) stepEnvelope(counter uint16) {
	if op.egState == decay && op.egLevel >= sustainLevel(op.d1l) {
		op.egState = sustain
	}

	var rate uint8
	switch op.egState {
	case attack:
		rate = op.ar
	case decay:
		rate = op.d1r
	case sustain:
		rate = op.d2r
	case release:
		rate = op.rr<<1 | 1
	}
	rate = effectiveRate(rate, op.ks, op.keyCode)

	inc := envelopeIncrement(rate, counter)
	if inc == 0 {
		return
	}

	if op.egState != attack {
		op.egLevel = min(op.egLevel+inc, maxAttenuation)
		return
	}

	if rate >= 62 {
		op.egLevel = 0
	} else {
		lvl := int32(op.egLevel)
		lvl += ^lvl * int32(inc) >> 4
		op.egLevel = uint16(max(lvl, 0))
	}
	if op.egLevel == 0 {
		op.egState = decay
	}
}

func (op *operator) keyOnEvent() {
	op.phase = 0
	if effectiveRate(op.ar, op.ks, op.keyCode) >= 62 {
		op.egLevel = 0
		op.egState = decay
		return
	}
	op.egState = attack
}

// output runs the operator at its current phase, offset by mod (in 10-bit
// phase units), with amMod added to its attenuation.
func (op *operator) output(mod int32, amMod uint16) int32 {
	phase := (op.phase>>10 + uint32(mod)) & 0x3FF
	att := totalLevel(op.egLevel+amMod, op.tl)
	return sineOutput(phase, att)
}

// sineOutput returns the signed 14-bit output of a sine wave at a 10-bit
// phase attenuated by a 10-bit envelope level.
func sineOutput(phase uint32, att uint16) int32 {
	quarter := phase & 0xFF
	if phase&0x100 != 0 {
		quarter ^= 0xFF
	}
	level := uint32(logSin[quarter]) + uint32(att)<<2
	if level > 0x1FFF {
		return 0
	}

	out := int32((expTable[level&0xFF^0xFF]|0x400)<<2) >> (level >> 8)
	if phase&0x200 != 0 {
		return -out
	}
	return out
}
