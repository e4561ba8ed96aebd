package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"retrocore/emu/log"
)

type mode byte

const (
	runMode      mode = iota // Run a ROM headless
	romInfosMode             // Show ROM infos
	versionMode              // Show retrocore version
)

type (
	CLI struct {
		Run      Run      `cmd:"" help:"Run ROM in emulator."`
		RomInfos RomInfos `cmd:"" help:"Show ROM infos." name:"rom-infos"`
		Version  Version  `cmd:"" help:"Show retrocore version."`

		Log    logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		Config string     `name:"config" help:"${config_help}" type:"path"`

		mode mode
	}

	Run struct {
		RomPath string `arg:"" name:"/path/to/rom" help:"${rompath_help}" required:"true" type:"existingfile"`

		System       string   `name:"system" help:"${system_help}" default:"auto" enum:"auto,genesis,gameboy,mastersystem,sms,gamegear,gg"`
		Frames       int      `name:"frames" help:"Number of frames to emulate, 0 runs until interrupted." default:"0"`
		Wav          *outfile `name:"wav" help:"Record audio output to a WAV file." placeholder:"FILE"`
		Snapshot     string   `name:"snapshot" help:"Write a save-state at exit." type:"path"`
		LoadSnapshot string   `name:"load-snapshot" help:"Restore a save-state before running." type:"existingfile"`
	}

	RomInfos struct {
		RomPaths []string `arg:"" name:"/path/to/rom" type:"existingfile"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"rompath_help": "ROM to run.",
	"system_help":  "Emulated system. By default it's guessed from the ROM file extension.",
	"log_help":     "Enable logging for specified modules.",
	"config_help":  "Configuration file, defaults to config.toml in the user config directory.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("retrocore"),
		kong.Description("Cycle-accurate Genesis, Game Boy, Master System and Game Gear emulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch {
	case strings.HasPrefix(ctx.Command(), "rom-infos"):
		cfg.mode = romInfosMode
	case ctx.Command() == "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	s, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("expected a list of log modules, got %v", tok.Value)
	}
	return applyLogModules(s)
}

// applyLogModules enables debug logs for a comma-separated list of modules,
// or disables logging entirely with "no".
func applyLogModules(list string) error {
	nolog := false
	allLogs := false

	var mask log.ModuleMask
	for _, v := range strings.Split(list, ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			mask |= mod.Mask()
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if mask != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		mask = log.ModuleMaskAll
	}

	log.EnableDebugModules(mask)
	return nil
}

type outfile struct {
	f    *os.File
	name string
}

// Decode creates the file named on the command line.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	name, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("expected a file name, got %v", tok.Value)
	}
	fd, err := os.Create(name)
	if err != nil {
		return err
	}
	f.f = fd
	f.name = name
	return nil
}

func (f *outfile) String() string                               { return f.name }
func (f *outfile) Write(p []byte) (int, error)                  { return f.f.Write(p) }
func (f *outfile) Seek(offset int64, whence int) (int64, error) { return f.f.Seek(offset, whence) }
func (f *outfile) Close() error                                 { return f.f.Close() }

var _ io.WriteSeeker = (*outfile)(nil)

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
