// Package genesis emulates the Sega Genesis / Mega Drive: a 68000 main CPU,
// a Z80 sound CPU, the VDP, the SN76489 PSG and the YM2612 FM chip, clocked
// from a single master clock.
package genesis

import (
	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
	"retrocore/hw/m68k"
	"retrocore/hw/mixer"
	"retrocore/hw/psg"
	"retrocore/hw/ym2612"
	"retrocore/hw/z80"
)

// Error is returned by Tick when a collaborator fails.
type Error = frontend.Error

const (
	mclkNTSC = 53_693_175
	mclkPAL  = 53_203_424

	m68kDivider = 7
	z80Divider  = 15

	// Master clocks emulated per tick once the bus is locked up.
	lockedStep = mclkPerLine

	DefaultSampleRate = 48000
)

type AspectRatio uint8

const (
	AspectNTSC AspectRatio = iota
	AspectPAL
	AspectSquare
	AspectStretched
)

func (ar AspectRatio) String() string {
	switch ar {
	case AspectNTSC:
		return "ntsc"
	case AspectPAL:
		return "pal"
	case AspectSquare:
		return "square"
	case AspectStretched:
		return "stretched"
	}
	return "AspectRatio(?)"
}

type Config struct {
	// ForcedRegion and ForcedTiming override what's detected from the
	// cartridge header when not nil.
	ForcedRegion *Region
	ForcedTiming *frontend.TimingMode

	AspectRatio AspectRatio

	// Adjust2x doubles the pixel aspect ratio of 448-line interlaced
	// frames so they keep the shape of progressive ones.
	Adjust2x bool

	SampleRate int
}

// Emulator is a complete Genesis console.
type Emulator struct {
	m68k  *m68k.CPU
	z80   *z80.CPU
	mem   *Memory
	mixer *mixer.Stereo

	config Config
	region Region
	timing frontend.TimingMode

	mclk      uint64 // master clocks since power on
	z80Budget int64  // Z80 cycles owed (positive) or run ahead (negative)
	frameMClk uint64 // master clocks since the last audio flush
}

// New creates a console running rom. save, if not nil, is the content of
// the battery-backed cartridge RAM.
func New(rom, save []byte, config Config) (*Emulator, error) {
	cart, err := NewCartridge(rom, save)
	if err != nil {
		return nil, errors.Wrap(err, "cartridge")
	}
	return newEmulator(cart, config), nil
}

func newEmulator(cart *Cartridge, config Config) *Emulator {
	region := resolveRegion(cart.rom, config.ForcedRegion)
	timing := frontend.NTSC
	switch {
	case config.ForcedTiming != nil:
		timing = *config.ForcedTiming
	case region == Europe:
		timing = frontend.PAL
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}

	mem := newMemory(cart, newIOPorts(region, timing == frontend.PAL))
	mem.vdp = newVDP(timing, mem)

	e := &Emulator{
		m68k:   m68k.New(),
		z80:    z80.New(),
		mem:    mem,
		mixer:  mixer.NewStereo(float64(mclkFrequency(timing)), config.SampleRate),
		config: config,
		region: region,
		timing: timing,
	}
	// TAS never completes its write cycle on the Genesis bus.
	e.m68k.DisableTASWrite = true
	e.m68k.Reset(mainBus{mem})

	log.ModEmu.InfoZ("genesis powered on").
		Stringer("region", region).
		Stringer("timing", timing).
		String("title", e.CartridgeTitle()).
		End()
	return e
}

func resolveRegion(rom []byte, forced *Region) Region {
	if forced != nil {
		return *forced
	}
	region, ok := DetectRegion(rom)
	if !ok {
		log.ModCart.WarnZ("unable to detect cartridge region, defaulting to Americas").End()
		return Americas
	}
	return region
}

func mclkFrequency(timing frontend.TimingMode) int {
	if timing == frontend.PAL {
		return mclkPAL
	}
	return mclkNTSC
}

// Tick executes one 68000 instruction and runs the rest of the console for
// the same amount of master clocks. When a frame completes it's sent to the
// renderer, audio is flushed, inputs are latched and, if needed, cartridge
// RAM is persisted.
//
// After a bus lockup both CPUs are halted and Tick only advances video and
// audio.
func (e *Emulator) Tick(renderer frontend.Renderer, audio frontend.AudioOutput, inputs Inputs, saves frontend.SaveWriter) (frontend.TickEffect, error) {
	var elapsed uint64
	if e.mem.lockup {
		elapsed = lockedStep
	} else {
		elapsed = uint64(e.m68k.ExecuteInstruction(mainBus{e.mem})) * m68kDivider
	}

	// Cumulative differencing keeps the Z80 exactly in phase with the
	// master clock regardless of instruction boundaries.
	z80Cycles := (e.mclk+elapsed)/z80Divider - e.mclk/z80Divider
	e.mclk += elapsed

	if !e.mem.lockup {
		e.z80Budget += int64(z80Cycles)
		for e.z80Budget > 0 && !e.mem.lockup {
			e.z80Budget -= int64(e.z80.ExecuteInstruction(z80Bus{e.mem}))
		}
	}

	e.tickAudio(z80Cycles, elapsed/m68kDivider)
	e.frameMClk += elapsed

	if e.mem.vdp.Tick(uint32(elapsed)) != vdpFrameComplete {
		return frontend.TickNone, nil
	}
	if err := e.endFrame(renderer, audio, inputs, saves); err != nil {
		return frontend.TickNone, err
	}
	return frontend.FrameRendered, nil
}

func (e *Emulator) tickAudio(psgClocks, ymClocks uint64) {
	changed := false
	for range psgClocks {
		if e.mem.psg.Tick() == psg.Clocked {
			changed = true
		}
	}
	for range ymClocks {
		if e.mem.ym.Tick() == ym2612.OutputSample {
			changed = true
		}
	}
	if !changed {
		return
	}

	psgL, psgR := e.mem.psg.Sample()
	ymL, ymR := e.mem.ym.Sample()
	l := int32((ymL + psgL*psgVolume) * mixScale)
	r := int32((ymR + psgR*psgVolume) * mixScale)
	e.mixer.SetLevels(e.frameMClk, l, r)
}

// Relative levels of the two sound chips.
const (
	psgVolume = 0.5
	mixScale  = 8192
)

func (e *Emulator) endFrame(renderer frontend.Renderer, audio frontend.AudioOutput, inputs Inputs, saves frontend.SaveWriter) error {
	vdp := e.mem.vdp
	fs := vdp.FrameSize()
	if err := renderer.RenderFrame(vdp.Frame(), fs, PixelAspectRatio(e.config.AspectRatio, fs, e.config.Adjust2x)); err != nil {
		return &Error{Kind: frontend.RenderError, Err: err}
	}

	duration := int(e.frameMClk)
	e.frameMClk = 0
	if err := e.mixer.EndFrame(duration, audio); err != nil {
		return &Error{Kind: frontend.AudioError, Err: err}
	}

	e.mem.io.inputs = inputs

	cart := e.mem.cart
	if cart.Persistent() && cart.Dirty() {
		if err := saves.PersistSave(cart.ExternalRAM()); err != nil {
			return &Error{Kind: frontend.SaveError, Err: err}
		}
		cart.ClearDirty()
	}
	return nil
}

// PixelAspectRatio returns the pixel aspect ratio of a frame of size fs, or
// nil when the frame should be stretched.
func PixelAspectRatio(ar AspectRatio, fs frontend.FrameSize, adjust2x bool) *frontend.PixelAspectRatio {
	var par frontend.PixelAspectRatio
	switch ar {
	case AspectNTSC:
		par = 32.0 / 35.0
		if fs.Width == 256 {
			par = 8.0 / 7.0
		}
	case AspectPAL:
		par = 11.0 / 10.0
		if fs.Width == 256 {
			par = 11.0 / 8.0
		}
	case AspectSquare:
		par = 1
	default:
		return nil
	}
	if adjust2x && fs.Height == 448 {
		par *= 2
	}
	return &par
}

// Locked reports whether the console hung after the Z80 accessed its own
// bus through the bank window.
func (e *Emulator) Locked() bool { return e.mem.lockup }

// SoftReset emulates the reset button: the 68000 restarts from its vectors,
// the Z80 is held in reset and the YM2612 is cleared. Memory is preserved.
func (e *Emulator) SoftReset() {
	log.ModEmu.InfoZ("soft reset").End()
	e.m68k.Reset(mainBus{e.mem})
	e.mem.z80Reset = true
	e.mem.ym.Reset()
}

// HardReset power cycles the console. Only the ROM and the content of
// battery-backed RAM survive.
func (e *Emulator) HardReset() error {
	log.ModEmu.InfoZ("hard reset").End()
	old := e.mem.cart
	rom := old.TakeROM()
	ram := old.TakeExternalRAMIfPersistent()

	cart, err := NewCartridge(rom, ram)
	if err != nil {
		return errors.Wrap(err, "cartridge")
	}
	*e = *newEmulator(cart, e.config)
	return nil
}

// TakeROMFrom moves the ROM of other into e. It's used to attach a ROM to a
// console restored from a snapshot, which doesn't contain it.
func (e *Emulator) TakeROMFrom(other *Emulator) {
	e.mem.cart.TakeROMFrom(other.mem.cart)
}

// LogContexts returns the CPUs, to stamp log entries with their program
// counters.
func (e *Emulator) LogContexts() []log.Context { return []log.Context{e.m68k, e.z80} }

func (e *Emulator) CartridgeTitle() string          { return Title(e.mem.cart.rom, e.region) }
func (e *Emulator) Region() Region                  { return e.region }
func (e *Emulator) TimingMode() frontend.TimingMode { return e.timing }
func (e *Emulator) Cartridge() *Cartridge           { return e.mem.cart }
