// Package smsgg emulates the Sega Master System and Game Gear: a Z80, the
// SN76489 PSG and the video display processor, clocked from the same master
// clock as the Genesis.
package smsgg

import (
	"strconv"

	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
	"retrocore/hw/mixer"
	"retrocore/hw/psg"
	"retrocore/hw/z80"
)

// Error is returned by Tick when a collaborator fails.
type Error = frontend.Error

const (
	mclkNTSC = 53_693_175
	mclkPAL  = 53_203_424

	z80Divider = 15
	vdpDivider = 10
	psgDivider = 16 // Z80 clocks per PSG output clock

	DefaultSampleRate = 48000

	// Frames during which the reset button is held by SoftReset.
	resetButtonFrames = 5
)

type Model uint8

const (
	MasterSystem Model = iota
	GameGear
)

func (m Model) String() string {
	if m == GameGear {
		return "Game Gear"
	}
	return "Master System"
}

// Region is the console region, as seen by software through the I/O ports.
type Region uint8

const (
	International Region = iota
	Domestic
)

func (r Region) String() string {
	if r == Domestic {
		return "domestic"
	}
	return "international"
}

type Config struct {
	Model Model

	// ForcedRegion overrides the region read from the cartridge header
	// when not nil.
	ForcedRegion *Region

	// Timing is ignored on the Game Gear, which only exists in NTSC.
	Timing frontend.TimingMode

	// Stretch renders frames without a pixel aspect ratio.
	Stretch bool

	SampleRate int
}

// Emulator is a complete Master System or Game Gear.
type Emulator struct {
	z80   *z80.CPU
	mem   *memory
	vdp   *vdp
	psg   *psg.PSG
	io    ioPorts
	mixer *mixer.Stereo

	config Config
	region Region
	timing frontend.TimingMode

	mclk        uint64 // master clocks since power on
	frameClocks uint64 // PSG clocks since the last audio flush
	resetFrames uint8
}

// New creates a console running rom. save, if not nil, is the content of
// the battery-backed cartridge RAM.
func New(rom, save []byte, config Config) (*Emulator, error) {
	mem, err := newMemory(rom, save)
	if err != nil {
		return nil, errors.Wrap(err, "cartridge")
	}
	return newEmulator(mem, config), nil
}

func newEmulator(mem *memory, config Config) *Emulator {
	timing := config.Timing
	if config.Model == GameGear {
		timing = frontend.NTSC
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	header, hasHeader := ParseHeader(mem.rom)
	region := International
	switch {
	case config.ForcedRegion != nil:
		region = *config.ForcedRegion
	case hasHeader:
		region = header.Region()
	}

	e := &Emulator{
		z80:    z80.New(),
		mem:    mem,
		vdp:    newVDP(config.Model, timing),
		psg:    psg.New(),
		io:     newIOPorts(config.Model, region),
		mixer:  mixer.NewStereo(psgClockRate(timing), config.SampleRate),
		config: config,
		region: region,
		timing: timing,
	}
	e.z80.Regs.SP = 0xDFFF
	e.z80.Regs.IM = 1

	log.ModEmu.InfoZ("sms/gg powered on").
		Stringer("model", config.Model).
		Stringer("region", region).
		Stringer("timing", timing).
		String("cartridge", e.CartridgeTitle()).
		Int("banks", len(mem.rom)/bankSize).
		End()
	log.ModSound.DebugZ("psg downsampling").
		String("ratio", strconv.FormatFloat(DownsamplingRatio(timing, config.SampleRate), 'f', 6, 64)).
		End()
	return e
}

func mclkFrequency(timing frontend.TimingMode) int {
	if timing == frontend.PAL {
		return mclkPAL
	}
	return mclkNTSC
}

func psgClockRate(timing frontend.TimingMode) float64 {
	return float64(mclkFrequency(timing)) / z80Divider / psgDivider
}

// DownsamplingRatio returns the number of PSG output clocks per audio
// sample. At 48kHz it's 53_693_175/15/16/48000 in NTSC and
// 53_203_424/15/16/48000 in PAL.
func DownsamplingRatio(timing frontend.TimingMode, sampleRate int) float64 {
	return psgClockRate(timing) / float64(sampleRate)
}

// Tick executes one Z80 instruction and runs the VDP and the PSG for the
// same amount of master clocks. When a frame completes it's sent to the
// renderer, audio is flushed, inputs are latched and, if needed, cartridge
// RAM is persisted.
func (e *Emulator) Tick(renderer frontend.Renderer, audio frontend.AudioOutput, inputs Inputs, saves frontend.SaveWriter) (frontend.TickEffect, error) {
	cycles := e.z80.ExecuteInstruction(z80Bus{e})
	elapsed := uint64(cycles) * z80Divider

	dots := (e.mclk+elapsed)/vdpDivider - e.mclk/vdpDivider
	e.mclk += elapsed

	e.tickAudio(cycles)

	if e.vdp.tick(uint32(dots)) != vdpFrameComplete {
		return frontend.TickNone, nil
	}
	if err := e.endFrame(renderer, audio, inputs, saves); err != nil {
		return frontend.TickNone, err
	}
	return frontend.FrameRendered, nil
}

const mixScale = 16384

func (e *Emulator) tickAudio(z80Cycles uint32) {
	for range z80Cycles {
		if e.psg.Tick() != psg.Clocked {
			continue
		}
		l, r := e.psg.Sample()
		e.mixer.SetLevels(e.frameClocks, int32(l*mixScale), int32(r*mixScale))
		e.frameClocks++
	}
}

func (e *Emulator) endFrame(renderer frontend.Renderer, audio frontend.AudioOutput, inputs Inputs, saves frontend.SaveWriter) error {
	if err := renderer.RenderFrame(e.vdp.frame, e.vdp.frameSize(), e.pixelAspectRatio()); err != nil {
		return &Error{Kind: frontend.RenderError, Err: err}
	}

	duration := int(e.frameClocks)
	e.frameClocks = 0
	if err := e.mixer.EndFrame(duration, audio); err != nil {
		return &Error{Kind: frontend.AudioError, Err: err}
	}

	e.io.inputs = inputs
	e.io.reset = e.resetFrames != 0
	if e.resetFrames != 0 {
		e.resetFrames--
	}

	if e.mem.persistent() && e.mem.dirty {
		if err := saves.PersistSave(e.mem.cartRAM); err != nil {
			return &Error{Kind: frontend.SaveError, Err: err}
		}
		e.mem.dirty = false
	}
	return nil
}

// pixelAspectRatio returns nil when frames should be stretched.
func (e *Emulator) pixelAspectRatio() *frontend.PixelAspectRatio {
	if e.config.Stretch {
		return nil
	}
	var par frontend.PixelAspectRatio
	switch {
	case e.config.Model == GameGear:
		par = 6.0 / 5.0
	case e.timing == frontend.PAL:
		par = 11.0 / 8.0
	default:
		par = 8.0 / 7.0
	}
	return &par
}

// SoftReset holds the Master System reset button for a few frames. Software
// decides what to do with it.
func (e *Emulator) SoftReset() {
	log.ModEmu.InfoZ("soft reset").End()
	e.resetFrames = resetButtonFrames
}

// HardReset power cycles the console. Only the ROM and the content of
// battery-backed RAM survive.
func (e *Emulator) HardReset() error {
	log.ModEmu.InfoZ("hard reset").End()
	var save []byte
	if e.mem.persistent() {
		save = e.mem.cartRAM
	}
	mem, err := newMemory(e.mem.rom, save)
	if err != nil {
		return errors.Wrap(err, "cartridge")
	}
	*e = *newEmulator(mem, e.config)
	return nil
}

// Locked is always false: the Z80 has no invalid opcode.
func (e *Emulator) Locked() bool { return false }

// LogContexts returns the CPU, to stamp log entries with its program
// counter.
func (e *Emulator) LogContexts() []log.Context { return []log.Context{e.z80} }

func (e *Emulator) Model() Model                    { return e.config.Model }
func (e *Emulator) Region() Region                  { return e.region }
func (e *Emulator) TimingMode() frontend.TimingMode { return e.timing }

// CartridgeTitle describes the cartridge from its header. Master System
// headers carry no title, only a product code.
func (e *Emulator) CartridgeTitle() string {
	h, ok := ParseHeader(e.mem.rom)
	if !ok {
		return "unknown cartridge"
	}
	return h.String()
}

// CartridgeRAM returns the cartridge RAM and whether the cartridge uses it.
func (e *Emulator) CartridgeRAM() ([]byte, bool) { return e.mem.cartRAM, e.mem.persistent() }
