package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the application banner, colored when w is a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{`    _                    _    __ _`, "#818cf8"},
		{`   /_\  __ _ ___ _ _  _| |_ / _| |_____ __ __`, "#a78bfa"},
		{`  / _ \/ _' / -_) ' \|_   _|  _| / _ \ V  V /`, "#c084fc"},
		{` /_/ \_\__, \___|_||_| |_| |_| |_\___/\_/\_/`, "#e879f9"},
		{`       |___/`, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  version "+version).Foreground(out.Color("#9ca3af")))
	fmt.Fprintln(w)
}

// Status colors a one-line status message: green for ok, red for failures.
func Status(w io.Writer, ok bool, msg string) string {
	out := termenv.NewOutput(w)
	color := "#22c55e"
	if !ok {
		color = "#ef4444"
	}
	return out.String(msg).Foreground(out.Color(color)).String()
}
