package hwio

// Device is a BankIO8 implementation that allows manual management of an
// entire range of addresses.
type Device struct {
	Name  string // name of the memory area (for debugging)
	Size  int    // size of the memory area
	Flags RWFlags

	ReadCb  func(addr uint32) uint8
	PeekCb  func(addr uint32) uint8
	WriteCb func(addr uint32, val uint8)
}

func (d *Device) Read8(addr uint32, peek bool) uint8 {
	if peek && d.PeekCb != nil {
		return d.PeekCb(addr)
	}
	if d.Flags&WriteOnlyFlag != 0 || d.ReadCb == nil {
		return 0xFF
	}
	if peek {
		return 0xFF
	}
	return d.ReadCb(addr)
}

func (d *Device) Write8(addr uint32, val uint8) {
	if d.Flags&ReadOnlyFlag != 0 || d.WriteCb == nil {
		return
	}
	d.WriteCb(addr, val)
}
