package logger

// Fields carries structured key/value context for one log line.
type Fields map[string]interface{}

// Logger provides structured logging with context
type Logger interface {
	Info(component, message string, fields Fields)
	Error(component string, err error, fields Fields)
	Warning(component, message string, fields Fields)
	Debug(component, message string, fields Fields)
}
