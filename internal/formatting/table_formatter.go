package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	hstrings "hostconfd/pkg/strings"
)

// ErrorMaxLen bounds the error column.
const ErrorMaxLen = 100

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

func (f *TableFormatter) FormatReports(w io.Writer, reports []Report) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, f.paint(text.FgYellow, "No reconcilers enabled"))
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		f.paint(text.FgHiCyan, "RECONCILER"),
		f.paint(text.FgHiCyan, "RESULT"),
		f.paint(text.FgHiCyan, "RESTARTED"),
		f.paint(text.FgHiCyan, "DURATION"),
		f.paint(text.FgHiCyan, "ERROR"),
	})

	for _, r := range reports {
		restarted := ""
		if r.Restarted {
			restarted = "yes"
		}
		t.AppendRow(table.Row{
			r.Reconciler,
			f.paint(resultColor(r.Result), string(r.Result)),
			restarted,
			r.Duration,
			hstrings.Truncate(r.Error, ErrorMaxLen),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d ok", len(reports)-Failed(reports), len(reports))})
	t.Render()
	return nil
}

func (f *TableFormatter) paint(color text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return color.Sprint(s)
}

func resultColor(r Result) text.Color {
	switch r {
	case ResultChanged:
		return text.FgHiGreen
	case ResultFailed:
		return text.FgHiRed
	case ResultUnsupported:
		return text.FgYellow
	default:
		return text.FgHiBlack
	}
}
