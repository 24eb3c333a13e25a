package core

// Logger is any leveled logger. args may hold errors, maps of extra data or domain objects the
// implementation knows how to attach to an entry.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
