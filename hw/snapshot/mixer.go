package snapshot

// Blip is the state of one band-limited resampling buffer. Samples holds the
// pending sample deltas, trailing zeroes trimmed.
type Blip struct {
	Factor     uint64
	Offset     uint64
	Avail      int
	Integrator int
	Samples    []int32
}

type Mixer struct {
	Left      Blip
	Right     Blip
	PrevLeft  int32
	PrevRight int32
}
