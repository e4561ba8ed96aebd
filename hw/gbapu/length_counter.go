package gbapu

// lengthCounter silences its channel once max length clocks have elapsed
// since it was loaded, if enabled.
type lengthCounter struct {
	max     uint16 // 64, or 256 for the wave channel
	enabled bool
	counter uint16
}

func (lc *lengthCounter) load(val uint8) {
	lc.counter = lc.max - uint16(val)&(lc.max-1)
}

func (lc *lengthCounter) clock(chEnabled *bool) {
	if !lc.enabled || lc.counter == 0 {
		return
	}
	lc.counter--
	if lc.counter == 0 {
		*chEnabled = false
	}
}

// setEnabled sets the length enable bit of NRx4. Going from disabled to
// enabled while the next frame sequencer step doesn't clock length gives an
// extra length clock.
func (lc *lengthCounter) setEnabled(enabled bool, step uint8, chEnabled *bool) {
	prev := lc.enabled
	lc.enabled = enabled
	if !prev && enabled && !clocksLength(step) {
		lc.clock(chEnabled)
	}
}

// trigger reloads an expired counter. The reloaded counter loses one clock
// under the same condition as the enable glitch.
func (lc *lengthCounter) trigger(step uint8) {
	if lc.counter != 0 {
		return
	}
	lc.counter = lc.max
	if lc.enabled && !clocksLength(step) {
		lc.counter--
	}
}

func (lc *lengthCounter) reset() {
	lc.enabled = false
	lc.counter = 0
}
