// Package log provides per-module, level-gated logging on top of logrus.
package log

import (
	"io"
	"os"

	"golang.org/x/term"
	"gopkg.in/Sirupsen/logrus.v0"
)

type Level uint32

// Levels are ordered like logrus ones.
const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

var std = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Level = logrus.DebugLevel
	l.Formatter = &logrus.TextFormatter{
		ForceColors:      isTerminal(w),
		DisableTimestamp: true,
	}
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	std = newLogger(w)
}

// A Context adds fields to every emitted entry (frame number, cpu pc...).
type Context interface {
	AddLogContext(z *EntryZ)
}

var contexts []Context

func AddContext(c Context) {
	contexts = append(contexts, c)
}

func RemoveContext(c Context) {
	for i := range contexts {
		if contexts[i] == c {
			contexts = append(contexts[:i], contexts[i+1:]...)
			return
		}
	}
}
