package formatting

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes reports as a YAML sequence.
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatReports(w io.Writer, reports []Report) error {
	if reports == nil {
		reports = []Report{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return err
	}
	return enc.Close()
}
