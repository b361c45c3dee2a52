package validator

import (
	"fmt"
	"regexp"
)

// Matches validates value against a compiled pattern.
func Matches(field, value string, re *regexp.Regexp, description string) Rule {
	return Rule{
		Check: func() bool {
			return re.MatchString(value)
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must match %s pattern", description),
			TranslationKey: "validation.regex_pattern",
			TranslationValues: map[string]any{
				"field":       field,
				"pattern":     re.String(),
				"description": description,
			},
		},
	}
}

// DoesNotMatch fails when value contains a match of re.
func DoesNotMatch(field, value string, re *regexp.Regexp, description string) Rule {
	return Rule{
		Check: func() bool {
			return !re.MatchString(value)
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must not contain %s", description),
			TranslationKey: "validation.regex_not_pattern",
			TranslationValues: map[string]any{
				"field":       field,
				"pattern":     re.String(),
				"description": description,
			},
		},
	}
}
