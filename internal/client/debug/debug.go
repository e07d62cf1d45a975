// Package debug provides file-backed logging for the TUI process,
// which owns stdout and cannot log there.
package debug

import (
	"fmt"
	"os"
	"time"
)

var Enabled = os.Getenv("NWCHAT_DEBUG") != ""

// Log appends a timestamped line to debug.log when debug mode is on.
func Log(format string, args ...any) {
	if !Enabled {
		return
	}
	f, err := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, time.Now().Format("15:04:05.000 ")+format+"\n", args...)
}
