package logger

// Logger: минимальный интерфейс логгера, который принимают все компоненты.
type Logger interface {
	Log(format string, v ...interface{})
	SetPrefix(prefix string)
}

// Discard глотает все сообщения. Используется в тестах и там, где логгер не передан.
var Discard Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Log(string, ...interface{}) {}
func (discardLogger) SetPrefix(string)           {}

// OrDiscard возвращает log, либо Discard если log == nil.
func OrDiscard(log Logger) Logger {
	if log == nil {
		return Discard
	}
	return log
}
