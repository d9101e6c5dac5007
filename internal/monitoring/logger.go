// Package monitoring holds the conversion's diagnostic logging hooks.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger to redirect or mute conversion progress.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// CaptureLogf logs a message tagged with the capture it concerns, so lines
// from concurrent workers can be told apart.
func CaptureLogf(contextName string, timestampMicros int64, format string, v ...interface{}) {
	args := append([]interface{}{contextName, timestampMicros}, v...)
	Logf("[%s@%d] "+format, args...)
}
