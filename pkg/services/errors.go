package services

import (
	"strings"

	"lead-intake/pkg/config"
)

// Validation failure codes.
const (
	CodeInvalidJSON     = "InvalidJSON"
	CodeMissingFields   = "MissingFields"
	CodeInvalidPhone    = "InvalidPhone"
	CodeConsentRequired = "ConsentRequired"
	CodeNoSelection     = "NoSelection"
)

// ValidationError is a user-correctable problem with the submitted lead.
type ValidationError struct {
	Code    string
	Message string
	Need    []string
}

func (e *ValidationError) Error() string {
	if len(e.Need) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Need, ", ")
}

// ConfigurationError reports required environment variables that are not set.
// Only names are carried, never values.
type ConfigurationError struct {
	Need []string
}

func (e *ConfigurationError) Error() string {
	return "missing env vars: " + strings.Join(e.Need, ", ")
}

// CheckConfiguration returns a ConfigurationError naming every unset WhatsApp variable.
func CheckConfiguration(cfg *config.Config) error {
	if missing := cfg.MissingMessaging(); len(missing) > 0 {
		return &ConfigurationError{Need: missing}
	}
	return nil
}
