package psg

import "retrocore/hw/snapshot"

func (p *PSG) State() snapshot.PSG {
	return snapshot.PSG{
		Tone:         p.tone,
		Volume:       p.volume,
		Noise:        p.noise,
		LatchChannel: p.latchChannel,
		LatchVolume:  p.latchVolume,
		Counters:     p.counters,
		Outputs:      p.outputs,
		NoiseToggle:  p.noiseToggle,
		LFSR:         p.lfsr,
		Divider:      p.divider,
		Stereo:       p.stereo,
	}
}

func (p *PSG) SetState(state *snapshot.PSG) {
	for i, t := range state.Tone {
		p.tone[i] = t & 0x3FF
	}
	for i, v := range state.Volume {
		p.volume[i] = v & 0x0F
	}
	p.noise = state.Noise & 0x07
	p.latchChannel = state.LatchChannel & 3
	p.latchVolume = state.LatchVolume
	p.counters = state.Counters
	p.outputs = state.Outputs
	p.noiseToggle = state.NoiseToggle
	p.lfsr = state.LFSR
	p.divider = state.Divider % clockDivider
	p.stereo = state.Stereo
}
