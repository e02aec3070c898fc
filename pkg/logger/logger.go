package logger

// Instance is a logging backend. Implementations must be safe for
// concurrent use.
type Instance interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type dispatcher struct {
	instances []Instance
}

var active *dispatcher

// Init installs one or more logging backends. It must be called by the
// composition root before any logging functions are used; calls made
// before Init are dropped.
func Init(instances ...Instance) {
	active = &dispatcher{instances: instances}
}

func each(fn func(Instance)) {
	d := active
	if d == nil {
		return
	}
	for _, in := range d.instances {
		fn(in)
	}
}

// Debug writes a message at DEBUG level to all configured backends.
func Debug(message string, keyvals ...any) {
	each(func(in Instance) { in.Debug(message, keyvals...) })
}

// Info writes a message at INFO level to all configured backends.
func Info(message string, keyvals ...any) {
	each(func(in Instance) { in.Info(message, keyvals...) })
}

// Warn writes a message at WARN level to all configured backends.
func Warn(message string, keyvals ...any) {
	each(func(in Instance) { in.Warn(message, keyvals...) })
}

// Error writes a message at ERROR level to all configured backends.
func Error(message string, keyvals ...any) {
	each(func(in Instance) { in.Error(message, keyvals...) })
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	each(func(in Instance) { in.Fatal(message, keyvals...) })
}
