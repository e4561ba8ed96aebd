package gbapu

import "retrocore/hw/snapshot"

func (lc *lengthCounter) saveState(state *snapshot.GBLength) {
	state.Enabled = lc.enabled
	state.Counter = lc.counter
}

func (lc *lengthCounter) setState(state *snapshot.GBLength) {
	lc.enabled = state.Enabled
	lc.counter = state.Counter
}

func (env *envelope) saveState(state *snapshot.GBEnvelope) {
	state.Initial = env.initial
	state.Increasing = env.increasing
	state.Period = env.period
	state.Volume = env.volume
	state.Counter = env.counter
}

func (env *envelope) setState(state *snapshot.GBEnvelope) {
	env.initial = state.Initial
	env.increasing = state.Increasing
	env.period = state.Period
	env.volume = state.Volume
	env.counter = state.Counter
}

func (pc *pulseChannel) saveState(state *snapshot.GBPulse) {
	state.Duty = pc.duty
	pc.length.saveState(&state.Length)
	pc.envelope.saveState(&state.Envelope)
	state.Sweep = snapshot.GBSweep{
		Enabled:    pc.sweep.enabled,
		Shadow:     pc.sweep.shadow,
		Counter:    pc.sweep.counter,
		Period:     pc.sweep.period,
		Shift:      pc.sweep.shift,
		Negate:     pc.sweep.negate,
		NegateUsed: pc.sweep.negateUsed,
	}
	state.Frequency = pc.timer.frequency
	state.TimerCounter = pc.timer.counter
	state.Phase = pc.timer.phase
	state.Enabled = pc.enabled
	state.DACEnabled = pc.dacEnabled
}

func (pc *pulseChannel) setState(state *snapshot.GBPulse) {
	pc.duty = state.Duty
	pc.length.setState(&state.Length)
	pc.envelope.setState(&state.Envelope)
	pc.sweep = sweepUnit{
		enabled:    state.Sweep.Enabled,
		shadow:     state.Sweep.Shadow,
		counter:    state.Sweep.Counter,
		period:     state.Sweep.Period,
		shift:      state.Sweep.Shift,
		negate:     state.Sweep.Negate,
		negateUsed: state.Sweep.NegateUsed,
	}
	pc.timer.frequency = state.Frequency
	pc.timer.counter = state.TimerCounter
	pc.timer.phase = state.Phase
	pc.enabled = state.Enabled
	pc.dacEnabled = state.DACEnabled
}

func (wc *waveChannel) saveState(state *snapshot.GBWave) {
	wc.length.saveState(&state.Length)
	state.Frequency = wc.frequency
	state.Counter = wc.counter
	state.Position = wc.position
	state.VolumeCode = wc.volumeCode
	state.Enabled = wc.enabled
	state.DACEnabled = wc.dacEnabled
	copy(state.RAM[:], wc.RAM.Data)
}

func (wc *waveChannel) setState(state *snapshot.GBWave) {
	wc.length.setState(&state.Length)
	wc.frequency = state.Frequency
	wc.counter = state.Counter
	wc.position = state.Position
	wc.volumeCode = state.VolumeCode
	wc.enabled = state.Enabled
	wc.dacEnabled = state.DACEnabled
	copy(wc.RAM.Data, state.RAM[:])
}

func (nc *noiseChannel) saveState(state *snapshot.GBNoise) {
	nc.length.saveState(&state.Length)
	nc.envelope.saveState(&state.Envelope)
	state.LFSR = nc.lfsr
	state.ShortMode = nc.shortMode
	state.ClockShift = nc.clockShift
	state.Divisor = nc.divisor
	state.Counter = nc.counter
	state.Enabled = nc.enabled
	state.DACEnabled = nc.dacEnabled
}

func (nc *noiseChannel) setState(state *snapshot.GBNoise) {
	nc.length.setState(&state.Length)
	nc.envelope.setState(&state.Envelope)
	nc.lfsr = state.LFSR
	nc.shortMode = state.ShortMode
	nc.clockShift = state.ClockShift
	nc.divisor = state.Divisor
	nc.counter = state.Counter
	nc.enabled = state.Enabled
	nc.dacEnabled = state.DACEnabled
}
