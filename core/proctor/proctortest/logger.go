package proctortest

import (
	"strings"
	"sync"

	"github.com/trezcool/examguard/core"
)

type Entry struct {
	Level string
	Msg   string
}

// Logger records entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	Entries []Entry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	l.Entries = append(l.Entries, Entry{Level: level, Msg: msg})
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg) }

// Has reports whether an entry of level contains substr.
func (l *Logger) Has(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.Entries {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}
