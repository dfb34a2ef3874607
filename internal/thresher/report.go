package thresher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/obentoo/kthresher/internal/common/output"
	"gopkg.in/yaml.v3"
)

// Report formats
const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

var ErrUnknownFormat = errors.New("unknown output format: must be text, yaml or json")

// Removal lists the packages acted upon for one kernel version
type Removal struct {
	Version  string   `json:"version" yaml:"version"`
	Packages []string `json:"packages" yaml:"packages"`
}

// Outcome is the result of Execute. Purged is false for a dry run, in which
// case Removals only lists what would have been purged.
type Outcome struct {
	Purged   bool      `json:"purged" yaml:"purged"`
	Keep     int       `json:"keep" yaml:"keep"`
	Removals []Removal `json:"removals" yaml:"removals"`
	Retained []string  `json:"retained" yaml:"retained"`
	// Running is the installed version of the running kernel, when known
	Running string `json:"running,omitempty" yaml:"running,omitempty"`
}

// Packages returns every package name of the outcome in removal order
func (o *Outcome) Packages() []string {
	var names []string
	for _, r := range o.Removals {
		names = append(names, r.Packages...)
	}
	return names
}

// ValidFormat reports whether format can be rendered
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatYAML, FormatJSON:
		return true
	}
	return false
}

// Render writes the outcome in the given format
func (o *Outcome) Render(w io.Writer, format string) error {
	switch format {
	case FormatText:
		return o.renderText(w)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(o); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	}
	return fmt.Errorf("%w: got %q", ErrUnknownFormat, format)
}

func (o *Outcome) renderText(w io.Writer) error {
	state := "Removed"
	if !o.Purged {
		state = "Candidates"
		fmt.Fprintln(w, output.Sprintf(output.Dim, "dry run, nothing was removed"))
	}

	var rows []output.Row
	for _, r := range o.Removals {
		for _, name := range r.Packages {
			rows = append(rows, output.Row{Version: r.Version, Name: name})
		}
	}
	output.VersionTable(w, rows)

	fmt.Fprintf(w, "%s %d version(s)", output.FormatState(state), len(o.Removals))
	if len(o.Retained) > 0 {
		fmt.Fprintf(w, ", %s %v", output.FormatState("Retained"), o.Retained)
	}
	if o.Running != "" {
		fmt.Fprintf(w, ", %s %s", output.FormatState("Running"), o.Running)
	}
	fmt.Fprintln(w)
	return nil
}

// RenderCandidates writes the show-autoremoval listing
func RenderCandidates(w io.Writer, candidates []Candidate, format string) error {
	switch format {
	case FormatText:
		rows := make([]output.Row, 0, len(candidates))
		for _, c := range candidates {
			rows = append(rows, output.Row{Version: c.Version, Name: c.Name})
		}
		output.VersionTable(w, rows)
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(candidates); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	}
	return fmt.Errorf("%w: got %q", ErrUnknownFormat, format)
}
