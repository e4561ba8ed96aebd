package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// MustInitRegs initializes the Reg8, Mem and Device fields of the struct
// pointed to by bank, according to their "hwio" struct tag:
//
//	offset=0x12     Offset within the bank at which the register is mapped.
//	                Fields without offset are ignored.
//	bank=N          Bank number (default 0).
//	size=N          Mem: physical size. Device: size of the range.
//	vsize=N         Mem: virtual (mirrored) size, default to size.
//	reset=N         Reg8: initial value.
//	romask=N        Reg8: read-only bits.
//	readonly        Register/device/mem is read-only.
//	writeonly       Register/device is write-only.
//	rcb[=Name]      Read callback, method Read<FIELD> by default.
//	pcb[=Name]      Peek callback, method Peek<FIELD> by default.
//	wcb[=Name]      Write callback, method Write<FIELD> by default.
//
// It panics on malformed tags or missing callbacks.
func MustInitRegs(bank any) {
	if err := initRegs(bank); err != nil {
		panic(err)
	}
}

type bankReg struct {
	offset uint32
	bank   int
	ptr    any
}

func initRegs(bank any) error {
	_, err := bankRegs(bank, -1, true)
	return err
}

// MapBank maps all registers of bank number bankNum found in bank at addr.
func (t *Table) MapBank(addr uint32, bank any, bankNum int) {
	regs, err := bankRegs(bank, bankNum, false)
	if err != nil {
		panic(err)
	}
	for _, r := range regs {
		switch p := r.ptr.(type) {
		case *Reg8:
			t.MapReg8(addr+r.offset, p)
		case *Mem:
			t.MapMem(addr+r.offset, p)
		case *Device:
			t.MapDevice(addr+r.offset, p)
		}
	}
}

func parseTag(tag string) map[string]string {
	opts := make(map[string]string)
	for _, kv := range strings.Split(tag, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(kv), "=")
		opts[k] = v
	}
	return opts
}

func parseUint(opts map[string]string, key string) (uint64, bool, error) {
	s, ok := opts[key]
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, true, fmt.Errorf("hwio: invalid %s=%q: %v", key, s, err)
	}
	return v, true, nil
}

func bankRegs(bank any, bankNum int, init bool) ([]bankReg, error) {
	pv := reflect.ValueOf(bank)
	if pv.Kind() != reflect.Pointer || pv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("hwio: bank must be a pointer to struct, got %T", bank)
	}
	v := pv.Elem()
	typ := v.Type()

	var regs []bankReg
	for i := range typ.NumField() {
		f := typ.Field(i)
		tag, ok := f.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts := parseTag(tag)
		off, ok, err := parseUint(opts, "offset")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		num, _, err := parseUint(opts, "bank")
		if err != nil {
			return nil, err
		}
		if bankNum >= 0 && int(num) != bankNum {
			continue
		}

		ptr := v.Field(i).Addr().Interface()
		if init {
			if err := initField(pv, f.Name, ptr, opts); err != nil {
				return nil, err
			}
		}
		regs = append(regs, bankReg{offset: uint32(off), bank: int(num), ptr: ptr})
	}
	return regs, nil
}

func method(pv reflect.Value, opts map[string]string, key, prefix, field string) (reflect.Value, bool, error) {
	name, ok := opts[key]
	if !ok {
		return reflect.Value{}, false, nil
	}
	if name == "" {
		name = prefix + strings.ToUpper(field)
	}
	m := pv.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, true, fmt.Errorf("hwio: %s: missing method %s", field, name)
	}
	return m, true, nil
}

func rwFlags(opts map[string]string) RWFlags {
	var flags RWFlags
	if _, ok := opts["readonly"]; ok {
		flags |= ReadOnlyFlag
	}
	if _, ok := opts["writeonly"]; ok {
		flags |= WriteOnlyFlag
	}
	return flags
}

func initField(pv reflect.Value, name string, ptr any, opts map[string]string) error {
	switch r := ptr.(type) {
	case *Reg8:
		r.Name = name
		r.Flags = rwFlags(opts)
		if v, ok, err := parseUint(opts, "reset"); err != nil {
			return err
		} else if ok {
			r.Value = uint8(v)
		}
		if v, ok, err := parseUint(opts, "romask"); err != nil {
			return err
		} else if ok {
			r.RoMask = uint8(v)
		}
		if m, ok, err := method(pv, opts, "rcb", "Read", name); err != nil {
			return err
		} else if ok {
			cb, ok := m.Interface().(func(uint8) uint8)
			if !ok {
				return fmt.Errorf("hwio: %s: read callback has wrong signature %s", name, m.Type())
			}
			r.ReadCb = cb
		}
		if m, ok, err := method(pv, opts, "pcb", "Peek", name); err != nil {
			return err
		} else if ok {
			cb, ok := m.Interface().(func(uint8) uint8)
			if !ok {
				return fmt.Errorf("hwio: %s: peek callback has wrong signature %s", name, m.Type())
			}
			r.PeekCb = cb
		}
		if m, ok, err := method(pv, opts, "wcb", "Write", name); err != nil {
			return err
		} else if ok {
			cb, ok := m.Interface().(func(uint8, uint8))
			if !ok {
				return fmt.Errorf("hwio: %s: write callback has wrong signature %s", name, m.Type())
			}
			r.WriteCb = cb
		}

	case *Mem:
		r.Name = name
		size, ok, err := parseUint(opts, "size")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("hwio: %s: mem without size", name)
		}
		r.Data = make([]byte, size)
		r.VSize = int(size)
		if vsize, ok, err := parseUint(opts, "vsize"); err != nil {
			return err
		} else if ok {
			r.VSize = int(vsize)
		}
		if _, ok := opts["readonly"]; ok {
			r.Flags |= MemFlag8ReadOnly
		}

	case *Device:
		r.Name = name
		r.Flags = rwFlags(opts)
		size, ok, err := parseUint(opts, "size")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("hwio: %s: device without size", name)
		}
		r.Size = int(size)
		if m, ok, err := method(pv, opts, "rcb", "Read", name); err != nil {
			return err
		} else if ok {
			cb, ok := m.Interface().(func(uint32) uint8)
			if !ok {
				return fmt.Errorf("hwio: %s: read callback has wrong signature %s", name, m.Type())
			}
			r.ReadCb = cb
		}
		if m, ok, err := method(pv, opts, "pcb", "Peek", name); err != nil {
			return err
		} else if ok {
			cb, ok := m.Interface().(func(uint32) uint8)
			if !ok {
				return fmt.Errorf("hwio: %s: peek callback has wrong signature %s", name, m.Type())
			}
			r.PeekCb = cb
		}
		if m, ok, err := method(pv, opts, "wcb", "Write", name); err != nil {
			return err
		} else if ok {
			cb, ok := m.Interface().(func(uint32, uint8))
			if !ok {
				return fmt.Errorf("hwio: %s: write callback has wrong signature %s", name, m.Type())
			}
			r.WriteCb = cb
		}

	default:
		return fmt.Errorf("hwio: %s: unsupported field type %T", name, ptr)
	}
	return nil
}
