package core

// Logger is implemented by every logging service of the app.
// expected args fmt: error, map[string]interface{}, LogUser
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogUser identifies the session user an event is attached to.
type LogUser struct {
	ID       string
	Username string
	Role     string
}
