package validator

import (
	"fmt"
	"unicode"
)

type PasswordStrengthConfig struct {
	MinLength        int
	MaxLength        int
	// MaxBytes caps the UTF-8 length; bcrypt rejects input over 72 bytes.
	MaxBytes         int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigits    bool
	RequireSpecial   bool
}

// DefaultPasswordStrength requires 8-72 characters, at most 72 bytes, with
// upper, lower and digit.
func DefaultPasswordStrength() PasswordStrengthConfig {
	return PasswordStrengthConfig{
		MinLength:        8,
		MaxLength:        72,
		MaxBytes:         72,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigits:    true,
	}
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(value string) charClasses {
	var c charClasses
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			c.special = true
		}
	}
	return c
}

// StrongPassword checks length bounds and the required character classes.
func StrongPassword(field, value string, config PasswordStrengthConfig) Rule {
	return Rule{
		Check: func() bool {
			n := len([]rune(value))
			if n < config.MinLength || (config.MaxLength > 0 && n > config.MaxLength) {
				return false
			}
			if config.MaxBytes > 0 && len(value) > config.MaxBytes {
				return false
			}

			c := classify(value)
			switch {
			case config.RequireUppercase && !c.upper,
				config.RequireLowercase && !c.lower,
				config.RequireDigits && !c.digit,
				config.RequireSpecial && !c.special:
				return false
			}
			return true
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("password must be %d-%d characters with required character types", config.MinLength, config.MaxLength),
			TranslationKey: "validation.password_strength",
			TranslationValues: map[string]any{
				"field":             field,
				"min_length":        config.MinLength,
				"max_length":        config.MaxLength,
				"max_bytes":         config.MaxBytes,
				"require_uppercase": config.RequireUppercase,
				"require_lowercase": config.RequireLowercase,
				"require_digits":    config.RequireDigits,
				"require_special":   config.RequireSpecial,
			},
		},
	}
}
