package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders results as two-space indented YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}
