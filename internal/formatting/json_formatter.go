package formatting

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes reports as an indented JSON array.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatReports(w io.Writer, reports []Report) error {
	if reports == nil {
		reports = []Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
