// Package formatting renders pass outcomes for the command line.
package formatting

import (
	"errors"
	"fmt"
	"io"
	"time"

	"hostconfd/internal/reconciler"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
}

// Result classifies a pass outcome.
type Result string

const (
	ResultUnchanged   Result = "unchanged"
	ResultChanged     Result = "changed"
	ResultFailed      Result = "failed"
	ResultUnsupported Result = "unsupported"
)

// Report is the serializable form of a reconciler.Outcome.
type Report struct {
	Reconciler string `json:"reconciler" yaml:"reconciler"`
	PassID     string `json:"passId" yaml:"passId"`
	Result     Result `json:"result" yaml:"result"`
	Restarted  bool   `json:"restarted" yaml:"restarted"`
	Duration   string `json:"duration" yaml:"duration"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewReport converts an outcome.
func NewReport(out reconciler.Outcome) Report {
	r := Report{
		Reconciler: out.Reconciler,
		PassID:     out.PassID,
		Restarted:  out.Restarted,
		Duration:   out.Duration().Round(time.Millisecond).String(),
	}
	switch {
	case errors.Is(out.Err, reconciler.ErrUnsupportedEnvironment):
		r.Result = ResultUnsupported
	case out.Err != nil:
		r.Result = ResultFailed
	case out.Changed:
		r.Result = ResultChanged
	default:
		r.Result = ResultUnchanged
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
	}
	return r
}

// Failed counts the reports that did not converge.
func Failed(reports []Report) int {
	n := 0
	for _, r := range reports {
		if r.Result == ResultFailed || r.Result == ResultUnsupported {
			n++
		}
	}
	return n
}

// Formatter writes pass reports.
type Formatter interface {
	FormatReports(w io.Writer, reports []Report) error
}

// NewFormatter creates the appropriate formatter based on options
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{options: options}
	}
}
