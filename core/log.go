package core

// Logger is the application-wide logging contract. Implementations may treat
// specific args specially (e.g. attach a user.User to the report).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
