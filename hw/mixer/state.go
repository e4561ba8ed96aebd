package mixer

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/arl/blip"
	"github.com/go-faster/errors"

	"retrocore/hw/snapshot"
)

// blip.Buffer has no state accessors, its fields are reached by name.
type blipFields struct {
	factor     *uint64
	offset     *uint64
	avail      *int
	integrator *int
	samples    *[]int32
}

// Index of each blipFields field in blip.Buffer.
var blipLayout = struct {
	factor, offset, avail, integrator, samples []int
}{
	factor:     mustField[uint64]("factor"),
	offset:     mustField[uint64]("offset"),
	avail:      mustField[int]("avail"),
	integrator: mustField[int]("integrator"),
	samples:    mustField[[]int32]("samples"),
}

func mustField[T any](name string) []int {
	f, ok := reflect.TypeFor[blip.Buffer]().FieldByName(name)
	if !ok || f.Type != reflect.TypeFor[T]() {
		panic(fmt.Sprintf("blip.Buffer: no %s field of type %s", name, reflect.TypeFor[T]()))
	}
	return f.Index
}

func fieldPtr[T any](buf reflect.Value, index []int) *T {
	f := buf.FieldByIndex(index)
	return (*T)(unsafe.Pointer(f.UnsafeAddr()))
}

func fieldsOf(b *blip.Buffer) blipFields {
	v := reflect.ValueOf(b).Elem()
	return blipFields{
		factor:     fieldPtr[uint64](v, blipLayout.factor),
		offset:     fieldPtr[uint64](v, blipLayout.offset),
		avail:      fieldPtr[int](v, blipLayout.avail),
		integrator: fieldPtr[int](v, blipLayout.integrator),
		samples:    fieldPtr[[]int32](v, blipLayout.samples),
	}
}

func saveBlip(b *blip.Buffer) snapshot.Blip {
	bf := fieldsOf(b)
	samples := *bf.samples
	n := len(samples)
	for n > 0 && samples[n-1] == 0 {
		n--
	}
	return snapshot.Blip{
		Factor:     *bf.factor,
		Offset:     *bf.offset,
		Avail:      *bf.avail,
		Integrator: *bf.integrator,
		Samples:    append([]int32(nil), samples[:n]...),
	}
}

func checkBlip(bf blipFields, state *snapshot.Blip) error {
	switch {
	case state.Factor != *bf.factor:
		return errors.Errorf("resampling factor mismatch: %d, want %d", state.Factor, *bf.factor)
	case len(state.Samples) > len(*bf.samples):
		return errors.Errorf("%d pending samples, buffer holds %d", len(state.Samples), len(*bf.samples))
	case state.Avail < 0 || state.Avail > maxSamplesPerFrame:
		return errors.Errorf("invalid available sample count %d", state.Avail)
	}
	return nil
}

func loadBlip(bf blipFields, state *snapshot.Blip) {
	*bf.offset = state.Offset
	*bf.avail = state.Avail
	*bf.integrator = state.Integrator
	samples := *bf.samples
	clear(samples[copy(samples, state.Samples):])
}

// State returns the mixer state: the last levels and the samples buffered
// but not yet flushed by EndFrame.
func (s *Stereo) State() snapshot.Mixer {
	return snapshot.Mixer{
		Left:      saveBlip(s.bufleft),
		Right:     saveBlip(s.bufright),
		PrevLeft:  s.prevLeft,
		PrevRight: s.prevRight,
	}
}

// SetState restores a state returned by State. The mixer must have been
// created with the same rates.
func (s *Stereo) SetState(state *snapshot.Mixer) error {
	left, right := fieldsOf(s.bufleft), fieldsOf(s.bufright)
	if err := checkBlip(left, &state.Left); err != nil {
		return errors.Wrap(err, "left channel")
	}
	if err := checkBlip(right, &state.Right); err != nil {
		return errors.Wrap(err, "right channel")
	}
	loadBlip(left, &state.Left)
	loadBlip(right, &state.Right)
	s.prevLeft = state.PrevLeft
	s.prevRight = state.PrevRight
	return nil
}
