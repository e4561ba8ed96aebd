package emu

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"

	"retrocore/emu/log"
	"retrocore/hw/frontend"
	"retrocore/hw/genesis"
	"retrocore/hw/smsgg"
)

type Config struct {
	Genesis GenesisConfig `toml:"genesis"`
	GameBoy GameBoyConfig `toml:"gameboy"`
	SMSGG   SMSGGConfig   `toml:"smsgg"`
	Audio   AudioConfig   `toml:"audio"`
	General GeneralConfig `toml:"general"`
}

// GenesisConfig holds the Genesis settings. Empty strings mean auto-detect
// (region, timing) or default (aspect ratio).
type GenesisConfig struct {
	ForcedRegion string `toml:"forced_region"` // americas, japan, europe
	ForcedTiming string `toml:"forced_timing"` // ntsc, pal
	AspectRatio  string `toml:"aspect_ratio"`  // ntsc, pal, square, stretched
	Adjust2x     bool   `toml:"adjust_2x"`
}

type GameBoyConfig struct{}

// SMSGGConfig holds the Master System and Game Gear settings. An empty
// region is read from the cartridge header. Timing only applies to the
// Master System.
type SMSGGConfig struct {
	ForcedRegion string `toml:"forced_region"` // international, domestic
	Timing       string `toml:"timing"`        // ntsc, pal
	Stretch      bool   `toml:"stretch"`
}

type AudioConfig struct {
	SampleRate int `toml:"sample_rate"`
}

type GeneralConfig struct {
	// SaveDir is where battery-backed RAM is persisted. Defaults to a
	// "saves" directory under ConfigDir.
	SaveDir string `toml:"save_dir"`
}

const (
	cfgFilename       = "config.toml"
	DefaultSampleRate = 48000
)

// ConfigDir returns the retrocore config directory, creating it on first use.
var ConfigDir = sync.OnceValue(func() string {
	base, err := os.UserConfigDir()
	if err != nil {
		log.ModEmu.Warnf("no user config directory, using current directory: %v", err)
		base = "."
	}
	dir := filepath.Join(base, "retrocore")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

func DefaultConfig() Config {
	return Config{
		Genesis: GenesisConfig{AspectRatio: "ntsc"},
		Audio:   AudioConfig{SampleRate: DefaultSampleRate},
	}
}

// LoadConfigOrDefault loads the configuration from the retrocore config
// directory, or provides the default one.
func LoadConfigOrDefault() Config {
	path := filepath.Join(ConfigDir(), cfgFilename)
	cfg, err := LoadConfig(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.ModEmu.WarnZ("invalid config, using defaults").String("path", path).Error("err", err).End()
		}
		return DefaultConfig()
	}
	return cfg
}

// LoadConfig decodes the TOML file at path. Missing keys keep their default
// value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return DefaultConfig(), errors.Wrap(err, "load config")
	}
	for _, key := range md.Undecoded() {
		log.ModEmu.WarnZ("unknown config key").String("key", key.String()).End()
	}
	if _, err := cfg.Genesis.Resolve(cfg.Audio.SampleRate); err != nil {
		return DefaultConfig(), errors.Wrap(err, "load config")
	}
	if _, err := cfg.SMSGG.Resolve(smsgg.MasterSystem, cfg.Audio.SampleRate); err != nil {
		return DefaultConfig(), errors.Wrap(err, "load config")
	}
	return cfg, nil
}

// SaveConfig into the retrocore config directory.
func SaveConfig(cfg Config) error {
	return WriteConfig(filepath.Join(ConfigDir(), cfgFilename), cfg)
}

func WriteConfig(path string, cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, buf, 0o644), "write config")
}

// SaveDir returns the directory where cartridge RAM files are written.
func (cfg Config) SaveDir() string {
	if cfg.General.SaveDir != "" {
		return cfg.General.SaveDir
	}
	return filepath.Join(ConfigDir(), "saves")
}

// SampleRate returns the audio output rate, falling back to the default.
func (cfg Config) SampleRate() int {
	if cfg.Audio.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return cfg.Audio.SampleRate
}

var (
	regions = map[string]genesis.Region{
		"americas": genesis.Americas,
		"japan":    genesis.Japan,
		"europe":   genesis.Europe,
	}
	timings = map[string]frontend.TimingMode{
		"ntsc": frontend.NTSC,
		"pal":  frontend.PAL,
	}
	smsggRegions = map[string]smsgg.Region{
		"international": smsgg.International,
		"domestic":      smsgg.Domestic,
	}
	aspectRatios = map[string]genesis.AspectRatio{
		"ntsc":      genesis.AspectNTSC,
		"pal":       genesis.AspectPAL,
		"square":    genesis.AspectSquare,
		"stretched": genesis.AspectStretched,
	}
)

// lookup returns the value matching name, case-insensitively.
func lookup[T any](kind string, m map[string]T, name string) (T, error) {
	v, ok := m[strings.ToLower(name)]
	if !ok {
		return v, errors.Errorf("invalid %s %q", kind, name)
	}
	return v, nil
}

// Resolve converts the textual settings into a genesis.Config.
func (gc GenesisConfig) Resolve(sampleRate int) (genesis.Config, error) {
	cfg := genesis.Config{
		Adjust2x:   gc.Adjust2x,
		SampleRate: sampleRate,
	}
	if gc.ForcedRegion != "" {
		r, err := lookup("region", regions, gc.ForcedRegion)
		if err != nil {
			return cfg, err
		}
		cfg.ForcedRegion = &r
	}
	if gc.ForcedTiming != "" {
		tm, err := lookup("timing mode", timings, gc.ForcedTiming)
		if err != nil {
			return cfg, err
		}
		cfg.ForcedTiming = &tm
	}
	if gc.AspectRatio != "" {
		ar, err := lookup("aspect ratio", aspectRatios, gc.AspectRatio)
		if err != nil {
			return cfg, err
		}
		cfg.AspectRatio = ar
	}
	return cfg, nil
}

// Resolve converts the textual settings into an smsgg.Config for model.
func (sc SMSGGConfig) Resolve(model smsgg.Model, sampleRate int) (smsgg.Config, error) {
	cfg := smsgg.Config{
		Model:      model,
		Stretch:    sc.Stretch,
		SampleRate: sampleRate,
	}
	if sc.ForcedRegion != "" {
		r, err := lookup("region", smsggRegions, sc.ForcedRegion)
		if err != nil {
			return cfg, err
		}
		cfg.ForcedRegion = &r
	}
	if sc.Timing != "" {
		tm, err := lookup("timing mode", timings, sc.Timing)
		if err != nil {
			return cfg, err
		}
		cfg.Timing = tm
	}
	return cfg, nil
}
