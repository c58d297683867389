package cli

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the startup banner with a violet-to-rose gradient.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{`               _ _       _     _                         _ `, "#818cf8"},
		{`  _____      _(_) |_ ___| |__ | |__   ___   __ _ _ __ __| |`, "#a78bfa"},
		{` / __\ \ /\ / / | __/ __| '_ \| '_ \ / _ \ / _' | '__/ _' |`, "#c084fc"},
		{` \__ \\ V  V /| | || (__| | | | |_) | (_) | (_| | | | (_| |`, "#e879f9"},
		{` |___/ \_/\_/ |_|\__\___|_| |_|_.__/ \___/ \__,_|_|  \__,_|`, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}
