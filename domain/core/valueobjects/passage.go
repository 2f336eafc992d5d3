package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"storyloom-backend/domain/config"
	pkgerrors "storyloom-backend/pkg/errors"
)

// PassageFormat represents the markup format of a passage body
type PassageFormat string

const (
	FormatPlainText PassageFormat = "text"
	FormatMarkdown  PassageFormat = "markdown"
	FormatHTML      PassageFormat = "html"
)

// Passage is a value object for the readable body of a story node
type Passage struct {
	body   string
	format PassageFormat
}

// NewPassage creates a passage with validation using default configuration
func NewPassage(body string, format PassageFormat) (Passage, error) {
	return NewPassageWithConfig(body, format, config.DefaultDomainConfig())
}

// NewPassageWithConfig creates a passage with validation and configuration
func NewPassageWithConfig(body string, format PassageFormat, cfg *config.DomainConfig) (Passage, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	body = strings.TrimSpace(body)

	if body == "" && !cfg.AllowEmptyBody {
		return Passage{}, pkgerrors.NewValidationError("passage body cannot be empty")
	}

	if utf8.RuneCountInString(body) > cfg.MaxBodyLength {
		return Passage{}, fmt.Errorf("passage body exceeds maximum length of %d characters", cfg.MaxBodyLength)
	}

	if !isValidFormat(format) {
		return Passage{}, pkgerrors.NewValidationError("invalid passage format")
	}

	return Passage{
		body:   body,
		format: format,
	}, nil
}

// ReconstructPassage rebuilds a passage from repository data without
// re-validating against current limits
func ReconstructPassage(body string, format PassageFormat) Passage {
	return Passage{
		body:   body,
		format: format,
	}
}

// Body returns the passage body
func (p Passage) Body() string {
	return p.body
}

// Format returns the passage format
func (p Passage) Format() PassageFormat {
	return p.format
}

// IsEmpty checks if the passage is empty
func (p Passage) IsEmpty() bool {
	return p.body == ""
}

// Equals checks if two passages are equal
func (p Passage) Equals(other Passage) bool {
	return p.body == other.body && p.format == other.format
}

// WordCount returns the approximate word count
func (p Passage) WordCount() int {
	return len(strings.Fields(p.body))
}

// Summary returns a truncated summary of the passage
func (p Passage) Summary(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	if utf8.RuneCountInString(p.body) <= maxLength {
		return p.body
	}

	runes := []rune(p.body)
	return string(runes[:maxLength-3]) + "..."
}

func isValidFormat(format PassageFormat) bool {
	switch format {
	case FormatPlainText, FormatMarkdown, FormatHTML:
		return true
	default:
		return false
	}
}
