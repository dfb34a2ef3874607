package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	// Plan state colors
	removedColor   = color.New(color.FgRed)
	candidateColor = color.New(color.FgYellow)
	retainedColor  = color.New(color.FgGreen)
	runningColor   = color.New(color.FgCyan)

	Dim = color.New(color.Faint)

	// Structural colors
	Header  = color.New(color.FgWhite, color.Bold)
	Package = color.New(color.FgBlue, color.Bold)
)

// NoColor disables color output
func NoColor() {
	color.NoColor = true
}

// IsTerminal returns true if stdout is a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// stateColor returns the color for a plan state
func stateColor(state string) *color.Color {
	switch state {
	case "Removed":
		return removedColor
	case "Candidates":
		return candidateColor
	case "Retained":
		return retainedColor
	case "Running":
		return runningColor
	default:
		return color.New(color.Reset)
	}
}

// Sprintf returns a colored string without printing
func Sprintf(c *color.Color, format string, args ...interface{}) string {
	return c.Sprintf(format, args...)
}

// FormatState formats a state label with its color
func FormatState(state string) string {
	return stateColor(state).Sprintf("[%s]", state)
}

// Row is one line of a version table
type Row struct {
	Version string
	Name    string
}

// VersionTable writes rows as a right aligned version column followed by the
// package name, both padded to the longest version plus two
func VersionTable(w io.Writer, rows []Row) {
	width := len("Version")
	for _, r := range rows {
		if len(r.Version) > width {
			width = len(r.Version)
		}
	}
	width += 2

	Header.Fprintf(w, "%*s %-*s\n", width, "Version", width, "Package")
	for _, r := range rows {
		name := r.Name
		if pad := width - len(name); pad > 0 {
			name += strings.Repeat(" ", pad)
		}
		fmt.Fprintf(w, "%*s %s\n", width, r.Version, Package.Sprint(name))
	}
}
