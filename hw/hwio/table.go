package hwio

import (
	"fmt"
	"slices"

	"retrocore/emu/log"
)

// BankIO8 is implemented by anything that can be mapped on a Table.
type BankIO8 interface {
	// Read8 reads a byte from the given address. If peek is true, the read
	// mustn't have any side effect (debugger, tracer, save-state).
	Read8(addr uint32, peek bool) uint8
	Write8(addr uint32, val uint8)
}

type span struct {
	begin, end uint32 // inclusive
	io         BankIO8
}

// Table is an address-range dispatcher. Each mapped range is owned by
// exactly one BankIO8 and ranges never overlap.
type Table struct {
	Name string

	// OpenBus is the value returned for reads of unmapped addresses.
	OpenBus uint8

	spans []span
}

func NewTable(name string) *Table {
	return &Table{Name: name, OpenBus: 0xFF}
}

// Reset removes all mappings.
func (t *Table) Reset() {
	t.spans = t.spans[:0]
}

// Map maps io on [begin, end]. Overlapping an existing mapping is a setup
// error and panics.
func (t *Table) Map(begin, end uint32, io BankIO8) {
	if end < begin {
		panic(fmt.Sprintf("hwio: %s: invalid range [%06X-%06X]", t.Name, begin, end))
	}
	idx, _ := slices.BinarySearchFunc(t.spans, begin, func(s span, a uint32) int {
		switch {
		case s.end < a:
			return -1
		case s.begin > a:
			return 1
		}
		return 0
	})
	if idx < len(t.spans) && t.spans[idx].begin <= end {
		s := t.spans[idx]
		panic(fmt.Sprintf("hwio: %s: [%06X-%06X] overlaps [%06X-%06X]", t.Name, begin, end, s.begin, s.end))
	}
	t.spans = slices.Insert(t.spans, idx, span{begin: begin, end: end, io: io})
}

// Unmap removes any mapping in [begin, end], splitting ranges that only
// partially overlap.
func (t *Table) Unmap(begin, end uint32) {
	var out []span
	for _, s := range t.spans {
		if s.end < begin || s.begin > end {
			out = append(out, s)
			continue
		}
		if s.begin < begin {
			out = append(out, span{begin: s.begin, end: begin - 1, io: s.io})
		}
		if s.end > end {
			out = append(out, span{begin: end + 1, end: s.end, io: s.io})
		}
	}
	t.spans = out
}

func (t *Table) search(addr uint32) BankIO8 {
	lo, hi := 0, len(t.spans)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		s := &t.spans[mid]
		switch {
		case addr < s.begin:
			hi = mid
		case addr > s.end:
			lo = mid + 1
		default:
			return s.io
		}
	}
	return nil
}

func (t *Table) MapReg8(addr uint32, reg *Reg8) {
	t.Map(addr, addr, reg)
}

func (t *Table) MapDevice(addr uint32, dev *Device) {
	t.Map(addr, addr+uint32(dev.Size)-1, dev)
}

func (t *Table) MapMem(addr uint32, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex32("addr", addr).
		Hex32("size", uint32(mem.VSize)).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	t.Map(addr, addr+uint32(mem.VSize)-1, mem.BankIO8())
}

// MapMemorySlice maps buf on [addr, end], mirroring it if it's smaller.
func (t *Table) MapMemorySlice(addr, end uint32, buf []uint8, readonly bool) {
	var flags MemFlags
	if readonly {
		flags |= MemFlag8ReadOnly
	}
	t.MapMem(addr, &Mem{
		Data:  buf,
		Flags: flags,
		VSize: int(end - addr + 1),
	})
}

func (t *Table) Read8(addr uint32, peek bool) uint8 {
	io := t.search(addr)
	if io == nil {
		return t.OpenBus
	}
	return io.Read8(addr, peek)
}

// Peek8 reads without side effects.
func (t *Table) Peek8(addr uint32) uint8 {
	return t.Read8(addr, true)
}

func (t *Table) Write8(addr uint32, val uint8) {
	if io := t.search(addr); io != nil {
		io.Write8(addr, val)
	}
}
