package tools

import (
	"github.com/modfin/henry/mapz"
	"github.com/sirupsen/logrus"
)

// LoggerWho tags every entry with the component that produced it.
type LoggerWho struct {
	Name string
}

func (w LoggerWho) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (w LoggerWho) Fire(entry *logrus.Entry) error {
	entry.Data["who"] = w.Name
	return nil
}

// SubLogger derives a component logger from a base one, sharing output and
// level but carrying its own "who" tag.
func SubLogger(base *logrus.Logger, name string) *logrus.Logger {
	l := &logrus.Logger{
		Out:          base.Out,
		Formatter:    base.Formatter,
		Hooks:        mapz.Clone(base.Hooks),
		Level:        base.Level,
		ExitFunc:     base.ExitFunc,
		ReportCaller: base.ReportCaller,
	}
	l.AddHook(LoggerWho{Name: name})
	return l
}
