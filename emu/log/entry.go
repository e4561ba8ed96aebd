package log

import (
	"gopkg.in/Sirupsen/logrus.v0"
)

// entry returns a logrus entry for mod, carrying the fields of all
// registered contexts.
func (mod Module) entry() *logrus.Entry {
	final := std.WithField("_mod", modNames[mod])
	if len(contexts) == 0 {
		return final
	}

	var z EntryZ
	for _, c := range contexts {
		c.AddLogContext(&z)
	}
	return final.WithFields(z.fields())
}

func (mod Module) Warnf(format string, args ...any) {
	if mod.Enabled(WarnLevel) {
		mod.entry().Warnf(format, args...)
	}
}

func (mod Module) Fatalf(format string, args ...any) {
	if mod.Enabled(FatalLevel) {
		mod.entry().Fatalf(format, args...)
	}
}
