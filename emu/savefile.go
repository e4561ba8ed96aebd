package emu

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"retrocore/emu/log"
)

// SaveFile persists battery-backed cartridge RAM to <dir>/<rom name>.sav.
// It implements frontend.SaveWriter.
type SaveFile struct {
	path string
}

func NewSaveFile(dir, romPath string) *SaveFile {
	name := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
	return &SaveFile{path: filepath.Join(dir, name+".sav")}
}

func (sf *SaveFile) Path() string { return sf.path }

// Load returns the save file content, or nil if there's none yet.
func (sf *SaveFile) Load() ([]byte, error) {
	buf, err := os.ReadFile(sf.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "read save file")
	}
	log.ModSave.InfoZ("loaded save file").String("path", sf.path).Int("size", len(buf)).End()
	return buf, nil
}

// PersistSave writes ram atomically: a temporary file is written first, then
// renamed over the previous save.
func (sf *SaveFile) PersistSave(ram []byte) error {
	if err := os.MkdirAll(filepath.Dir(sf.path), 0o755); err != nil {
		return errors.Wrap(err, "create save directory")
	}
	tmp := sf.path + ".tmp"
	if err := os.WriteFile(tmp, ram, 0o644); err != nil {
		return errors.Wrap(err, "write save file")
	}
	if err := os.Rename(tmp, sf.path); err != nil {
		return errors.Wrap(err, "write save file")
	}
	log.ModSave.DebugZ("save file written").String("path", sf.path).Int("size", len(ram)).End()
	return nil
}
