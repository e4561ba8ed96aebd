package hwio

import "retrocore/emu/log"

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlag8ReadOnly MemFlags = (1 << iota) // read-only accesses
	MemFlagNoROLog                          // skip logging attempts to write when configured to readonly
)

// Mem is a linear memory area that can be mapped into a Table. Data length
// must be a power of 2: addresses beyond it mirror the buffer up to VSize.
type Mem struct {
	Name    string              // name of the memory area (for debugging)
	Data    []byte              // actual memory buffer
	VSize   int                 // virtual size of the memory (can be bigger than physical size)
	Flags   MemFlags            // flags determining how the memory can be accessed
	WriteCb func(uint32, uint8) // optional write callback, called after the write
}

// BankIO8 returns an adaptor for the current configuration of m.
func (m *Mem) BankIO8() BankIO8 {
	if len(m.Data) == 0 || len(m.Data)&(len(m.Data)-1) != 0 {
		panic("hwio: memory buffer size is not pow2: " + m.Name)
	}
	return &mem{
		name:  m.Name,
		buf:   m.Data,
		mask:  uint32(len(m.Data) - 1),
		flags: m.Flags,
		wcb:   m.WriteCb,
	}
}

type mem struct {
	name  string
	buf   []byte
	mask  uint32
	flags MemFlags
	wcb   func(uint32, uint8)
}

func (m *mem) Read8(addr uint32, _ bool) uint8 {
	return m.buf[addr&m.mask]
}

func (m *mem) Write8(addr uint32, val uint8) {
	if m.flags&MemFlag8ReadOnly != 0 {
		if m.flags&MemFlagNoROLog == 0 {
			log.ModHwIo.WarnZ("Write8 to readonly memory").
				String("area", m.name).
				Hex32("addr", addr).
				Hex8("val", val).
				End()
		}
		return
	}
	m.buf[addr&m.mask] = val
	if m.wcb != nil {
		m.wcb(addr, val)
	}
}
