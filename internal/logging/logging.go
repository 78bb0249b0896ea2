// Package logging provides the beego-backed trace logger shared by every
// toad package, the same way GiterLab/go-coap's debug.go wires up a single
// package-level *logs.BeeLogger rather than threading a logger through
// every call.
package logging

import (
	"github.com/astaxie/beego/logs"
)

// Log is the shared logger. Replace it with SetLogger to redirect output.
var Log *logs.BeeLogger

var traceEnable bool

func init() {
	Log = logs.NewLogger(10000)
	Log.SetLogger("console", `{"level":7}`)
	Log.EnableFuncCallDepth(true)
	Log.SetLogFuncCallDepth(3)
}

// Enable turns on trace-level logging of per-datagram and per-poll detail.
// Off by default, same as GiterLab/go-coap's debugEnable flag.
func Enable(enable bool) {
	traceEnable = enable
}

// Enabled reports whether trace logging is currently on.
func Enabled() bool {
	return traceEnable
}

// SetLogger swaps the shared logger, e.g. to redirect to a file appender.
func SetLogger(l *logs.BeeLogger) {
	if l != nil {
		Log = l
	}
}

// Trace logs at trace level only when Enable(true) has been called.
func Trace(format string, args ...interface{}) {
	if traceEnable {
		Log.Trace(format, args...)
	}
}

// Info always logs at info level.
func Info(format string, args ...interface{}) {
	Log.Info(format, args...)
}

// Warn always logs at warn level.
func Warn(format string, args ...interface{}) {
	Log.Warn(format, args...)
}

// Error always logs at error level.
func Error(format string, args ...interface{}) {
	Log.Error(format, args...)
}
