package log

import (
	hlog "github.com/haxii/log/v2"
)

// Logger multiplexer logger, used for logging transfer info and errors
type Logger interface {
	Debugf(format string, v ...interface{})
	Errorf(err error, format string, v ...interface{})
}

// DefaultLogger logger based on the global haxii logger
type DefaultLogger struct{}

// Debugf log debug info
func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	hlog.Debugf(format, v...)
}

// Errorf log error
func (l *DefaultLogger) Errorf(err error, format string, v ...interface{}) {
	hlog.Errorf(err, format, v...)
}

// NopLogger drops everything
type NopLogger struct{}

// Debugf ...
func (NopLogger) Debugf(string, ...interface{}) {}

// Errorf ...
func (NopLogger) Errorf(error, string, ...interface{}) {}
