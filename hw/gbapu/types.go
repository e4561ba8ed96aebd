package gbapu

type Channel uint8

const (
	Pulse1 Channel = iota
	Pulse2
	Wave
	Noise

	NumChannels
)

func (c Channel) String() string {
	switch c {
	case Pulse1:
		return "pulse1"
	case Pulse2:
		return "pulse2"
	case Wave:
		return "wave"
	case Noise:
		return "noise"
	}
	return "unknown"
}

// clocksLength reports whether the frame sequencer step about to be executed
// clocks the length counters.
func clocksLength(step uint8) bool {
	return step&1 == 0
}
