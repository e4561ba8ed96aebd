package gbapu

type envelope struct {
	initial    uint8
	increasing bool
	period     uint8

	volume  uint8
	counter uint8
}

func (env *envelope) read() uint8 {
	v := env.initial<<4 | env.period
	if env.increasing {
		v |= 0x08
	}
	return v
}

func (env *envelope) write(val uint8) {
	env.initial = val >> 4
	env.increasing = val&0x08 != 0
	env.period = val & 0x07
}

func (env *envelope) trigger() {
	env.volume = env.initial
	env.counter = env.period
}

// clock steps the volume toward 0 or 15. A period of 0 freezes the volume.
func (env *envelope) clock() {
	if env.period == 0 {
		return
	}
	if env.counter > 0 {
		env.counter--
	}
	if env.counter != 0 {
		return
	}
	env.counter = env.period
	switch {
	case env.increasing && env.volume < 15:
		env.volume++
	case !env.increasing && env.volume > 0:
		env.volume--
	}
}

func (env *envelope) reset() {
	*env = envelope{}
}
