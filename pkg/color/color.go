// Package color renders terminal colors for CLI output. It respects the
// NO_COLOR environment variable (https://no-color.org/) and TERM=dumb.
package color

import (
	"os"
	"sync/atomic"

	"github.com/adslot/leasekeeper/pkg/model"
)

var state struct {
	enabled    atomic.Bool
	overridden atomic.Bool
}

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// Init decides whether colors are used. noColor forces them off.
func Init(noColor bool) {
	if state.overridden.Load() {
		return
	}
	_, off := os.LookupEnv("NO_COLOR")
	if os.Getenv("TERM") == "dumb" || noColor {
		off = true
	}
	state.enabled.Store(!off)
}

// Enabled reports whether colors are used.
func Enabled() bool { return state.enabled.Load() }

// Enable forces colors on.
func Enable() {
	state.overridden.Store(true)
	state.enabled.Store(true)
}

// Disable forces colors off.
func Disable() {
	state.overridden.Store(true)
	state.enabled.Store(false)
}

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + reset
}

func Success(s string) string { return wrap(green, s) }
func Info(s string) string    { return wrap(cyan, s) }
func Warning(s string) string { return wrap(yellow, s) }
func Error(s string) string   { return wrap(red, s) }
func Header(s string) string  { return wrap(bold, s) }
func Dim(s string) string     { return wrap(dim, s) }

// Framed colors s for how an outcome is presented.
func Framed(f model.Framing, s string) string {
	switch f {
	case model.FramingSuccess:
		return Success(s)
	case model.FramingInfo:
		return Info(s)
	default:
		return Error(s)
	}
}
