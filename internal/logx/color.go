package logx

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiGreen  = "\033[97;42m"
	ansiYellow = "\033[90;43m"
	ansiRed    = "\033[97;41m"
	ansiCyan   = "\033[97;46m"
	ansiReset  = "\033[0m"
)

// ColorEnabled reports whether w is an interactive terminal. NO_COLOR
// disables color regardless of the sink.
func ColorEnabled(w io.Writer) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ColorizeStatusWith renders an HTTP status, wrapped in ANSI color by class
// when color is true.
func ColorizeStatusWith(status int, color bool) string {
	s := strconv.Itoa(status)
	if !color {
		return s
	}
	var c string
	switch {
	case status >= 500:
		c = ansiRed
	case status >= 400:
		c = ansiYellow
	case status >= 300:
		c = ansiCyan
	default:
		c = ansiGreen
	}
	return c + " " + s + " " + ansiReset
}
