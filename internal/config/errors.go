package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is one problem found while loading the config file.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`
	FileName    string   `json:"fileName"`
	ErrorType   string   `json:"errorType"` // io, parse or validation
	Field       string   `json:"field"`     // dotted path, validation only
	Message     string   `json:"message"`
	Details     string   `json:"details"`
	Suggestions []string `json:"suggestions"`
}

func (ce ConfigurationError) Error() string {
	if ce.Field != "" {
		return fmt.Sprintf("%s: field '%s': %s", ce.FileName, ce.Field, ce.Message)
	}
	return fmt.Sprintf("%s: %s", ce.FileName, ce.Message)
}

// Detailed renders the error over several lines with its suggestions.
func (ce ConfigurationError) Detailed() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s error in %s)\n", ce.Message, ce.ErrorType, ce.FilePath)
	if ce.Field != "" {
		fmt.Fprintf(&b, "  field: %s\n", ce.Field)
	}
	if ce.Details != "" {
		fmt.Fprintf(&b, "  details: %s\n", ce.Details)
	}
	for _, s := range ce.Suggestions {
		fmt.Fprintf(&b, "  hint: %s\n", s)
	}
	return b.String()
}

// ConfigurationErrorCollection holds every problem Validate found.
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

func (cec ConfigurationErrorCollection) Error() string {
	switch len(cec.Errors) {
	case 0:
		return "no configuration errors"
	case 1:
		return cec.Errors[0].Error()
	default:
		return fmt.Sprintf("%d configuration errors: %s (and %d more)",
			len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
	}
}

func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// Report renders every error with Detailed, one block per error.
func (cec ConfigurationErrorCollection) Report() string {
	blocks := make([]string, 0, len(cec.Errors))
	for _, err := range cec.Errors {
		blocks = append(blocks, err.Detailed())
	}
	return strings.Join(blocks, "\n")
}

// NewConfigurationError creates an error without field or suggestions.
func NewConfigurationError(filePath, fileName, errorType, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		FileName:  fileName,
		ErrorType: errorType,
		Message:   message,
	}
}
