// Package emu drives the emulated consoles for the command line: it loads
// ROMs and save files, runs frames against the output collaborators and
// handles save-states.
package emu

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
	"retrocore/hw/gb"
	"retrocore/hw/genesis"
	"retrocore/hw/smsgg"
	"retrocore/hw/snapshot"
)

type System uint8

const (
	Auto System = iota
	Genesis
	GameBoy
	MasterSystem
	GameGear
)

func (s System) String() string {
	switch s {
	case Genesis:
		return "genesis"
	case GameBoy:
		return "gameboy"
	case MasterSystem:
		return "mastersystem"
	case GameGear:
		return "gamegear"
	}
	return "auto"
}

var ErrUnknownSystem = errors.New("unknown system")

// ParseSystem parses a system name as accepted on the command line.
func ParseSystem(name string) (System, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return Auto, nil
	case "genesis", "megadrive", "md":
		return Genesis, nil
	case "gameboy", "gb":
		return GameBoy, nil
	case "mastersystem", "sms":
		return MasterSystem, nil
	case "gamegear", "gg":
		return GameGear, nil
	}
	return Auto, errors.Wrapf(ErrUnknownSystem, "%q", name)
}

// SystemFromPath guesses the system from the ROM file extension.
func SystemFromPath(path string) (System, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".gen", ".bin", ".smd":
		return Genesis, nil
	case ".gb":
		return GameBoy, nil
	case ".sms":
		return MasterSystem, nil
	case ".gg":
		return GameGear, nil
	}
	return Auto, errors.Wrapf(ErrUnknownSystem, "extension of %s", filepath.Base(path))
}

// console is what Emulator needs from an emulated system.
type console interface {
	tick(frontend.Renderer, frontend.AudioOutput, frontend.SaveWriter) (frontend.TickEffect, error)
	locked() bool
	title() string
	saveState() *stateFile
	loadState(*stateFile) error
	logContexts() []log.Context
}

// stateFile is the on-disk save-state: the snapshot of exactly one system.
type stateFile struct {
	System  string
	Genesis *snapshot.Genesis
	GameBoy *snapshot.GameBoy
	SMSGG   *snapshot.SMSGG
}

type genesisConsole struct {
	emu    *genesis.Emulator
	inputs genesis.Inputs
}

func (c *genesisConsole) tick(r frontend.Renderer, a frontend.AudioOutput, s frontend.SaveWriter) (frontend.TickEffect, error) {
	return c.emu.Tick(r, a, c.inputs, s)
}

func (c *genesisConsole) locked() bool                { return c.emu.Locked() }
func (c *genesisConsole) title() string               { return c.emu.CartridgeTitle() }
func (c *genesisConsole) logContexts() []log.Context { return c.emu.LogContexts() }

func (c *genesisConsole) saveState() *stateFile {
	return &stateFile{System: Genesis.String(), Genesis: c.emu.State()}
}

func (c *genesisConsole) loadState(f *stateFile) error {
	if f.Genesis == nil {
		return errors.Errorf("snapshot is for %s", f.System)
	}
	return c.emu.SetState(f.Genesis)
}

type gbConsole struct {
	gb *gb.GameBoy
}

func (c *gbConsole) tick(r frontend.Renderer, a frontend.AudioOutput, s frontend.SaveWriter) (frontend.TickEffect, error) {
	return c.gb.Tick(r, a, s)
}

func (c *gbConsole) locked() bool                { return c.gb.CPU.State.Locked }
func (c *gbConsole) title() string               { return c.gb.CartridgeTitle() }
func (c *gbConsole) logContexts() []log.Context { return []log.Context{c.gb.CPU} }

func (c *gbConsole) saveState() *stateFile {
	return &stateFile{System: GameBoy.String(), GameBoy: c.gb.State()}
}

func (c *gbConsole) loadState(f *stateFile) error {
	if f.GameBoy == nil {
		return errors.Errorf("snapshot is for %s", f.System)
	}
	return c.gb.SetState(f.GameBoy)
}

// smsggConsole runs both the Master System and the Game Gear, sys tells
// which one.
type smsggConsole struct {
	emu    *smsgg.Emulator
	sys    System
	inputs smsgg.Inputs
}

func (c *smsggConsole) tick(r frontend.Renderer, a frontend.AudioOutput, s frontend.SaveWriter) (frontend.TickEffect, error) {
	return c.emu.Tick(r, a, c.inputs, s)
}

func (c *smsggConsole) locked() bool                { return c.emu.Locked() }
func (c *smsggConsole) title() string               { return c.emu.CartridgeTitle() }
func (c *smsggConsole) logContexts() []log.Context { return c.emu.LogContexts() }

func (c *smsggConsole) saveState() *stateFile {
	return &stateFile{System: c.sys.String(), SMSGG: c.emu.State()}
}

func (c *smsggConsole) loadState(f *stateFile) error {
	if f.SMSGG == nil {
		return errors.Errorf("snapshot is for %s", f.System)
	}
	return c.emu.SetState(f.SMSGG)
}

// Emulator runs one console headless. Frames go to a renderer that only
// counts them; audio goes to the configured output.
type Emulator struct {
	System System

	con      console
	renderer frontend.Renderer
	audio    frontend.AudioOutput
	saves    frontend.SaveWriter
	frames   int
}

// Options are the collaborators of an Emulator. Nil fields are replaced by
// no-op implementations.
type Options struct {
	Renderer frontend.Renderer
	Audio    frontend.AudioOutput
	Saves    frontend.SaveWriter
}

// New creates an emulator for rom. save is the initial content of the
// battery-backed RAM, it may be nil.
func New(sys System, rom, save []byte, cfg Config, opts Options) (*Emulator, error) {
	e := &Emulator{
		System:   sys,
		renderer: opts.Renderer,
		audio:    opts.Audio,
		saves:    opts.Saves,
	}
	if e.renderer == nil {
		e.renderer = frontend.NopRenderer{}
	}
	if e.audio == nil {
		e.audio = frontend.NopAudio{}
	}
	if e.saves == nil {
		e.saves = frontend.NopSaveWriter{}
	}

	switch sys {
	case Genesis:
		gcfg, err := cfg.Genesis.Resolve(cfg.SampleRate())
		if err != nil {
			return nil, errors.Wrap(err, "genesis config")
		}
		g, err := genesis.New(rom, save, gcfg)
		if err != nil {
			return nil, err
		}
		e.con = &genesisConsole{emu: g}
	case GameBoy:
		g, err := gb.New(rom, save, cfg.SampleRate())
		if err != nil {
			return nil, err
		}
		e.con = &gbConsole{gb: g}
	case MasterSystem, GameGear:
		model := smsgg.MasterSystem
		if sys == GameGear {
			model = smsgg.GameGear
		}
		scfg, err := cfg.SMSGG.Resolve(model, cfg.SampleRate())
		if err != nil {
			return nil, errors.Wrap(err, "sms/gg config")
		}
		s, err := smsgg.New(rom, save, scfg)
		if err != nil {
			return nil, err
		}
		e.con = &smsggConsole{emu: s, sys: sys}
	default:
		return nil, errors.Wrapf(ErrUnknownSystem, "%s", sys)
	}

	log.ModEmu.InfoZ("console ready").
		Stringer("system", sys).
		String("title", e.con.title()).
		End()
	return e, nil
}

// Launch loads the ROM at path and its save file, if any, from the
// configured save directory. Battery-backed RAM is written back there.
func Launch(path string, sys System, cfg Config, opts Options) (*Emulator, error) {
	if sys == Auto {
		var err error
		if sys, err = SystemFromPath(path); err != nil {
			return nil, err
		}
	}

	rom, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read rom")
	}

	sf := NewSaveFile(cfg.SaveDir(), path)
	save, err := sf.Load()
	if err != nil {
		return nil, err
	}
	if opts.Saves == nil {
		opts.Saves = sf
	}
	return New(sys, rom, save, cfg, opts)
}

// Title returns the cartridge title.
func (e *Emulator) Title() string { return e.con.title() }

// Frames returns the number of frames emulated so far.
func (e *Emulator) Frames() int { return e.frames }

// Locked reports whether the console hung and can't make progress anymore.
func (e *Emulator) Locked() bool { return e.con.locked() }

// RunOneFrame ticks the console until a frame completes.
func (e *Emulator) RunOneFrame() error {
	for {
		effect, err := e.con.tick(e.renderer, e.audio, e.saves)
		if err != nil {
			return err
		}
		if effect == frontend.FrameRendered {
			e.frames++
			return nil
		}
	}
}

// AddLogContext stamps log entries with the current frame number.
func (e *Emulator) AddLogContext(z *log.EntryZ) {
	z.Int("frame", e.frames)
}

// RunFrames runs n frames, or until ctx is done. n <= 0 runs forever.
// It stops early if the console hangs on an invalid opcode or a bus lockup
// that can't produce frames anymore. While it runs, log entries carry the
// frame number and the CPU program counters.
func (e *Emulator) RunFrames(ctx context.Context, n int) error {
	for _, c := range append([]log.Context{e}, e.con.logContexts()...) {
		log.AddContext(c)
		defer log.RemoveContext(c)
	}
	for i := 0; n <= 0 || i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.RunOneFrame(); err != nil {
			return errors.Wrapf(err, "frame %d", e.frames)
		}
		if e.con.locked() {
			log.ModEmu.WarnZ("console locked, stopping").Int("frame", e.frames).End()
			return nil
		}
	}
	return nil
}

// SaveSnapshot encodes the console state. The ROM isn't part of it.
func (e *Emulator) SaveSnapshot() ([]byte, error) {
	return snapshot.Marshal(e.con.saveState())
}

// LoadSnapshot restores a state encoded by SaveSnapshot. The snapshot must
// have been taken with the same system and cartridge.
func (e *Emulator) LoadSnapshot(buf []byte) error {
	var f stateFile
	if err := snapshot.Unmarshal(buf, &f); err != nil {
		return err
	}
	if f.System != e.System.String() {
		return errors.Errorf("snapshot is for %q, not %s", f.System, e.System)
	}
	return errors.Wrap(e.con.loadState(&f), "restore snapshot")
}
