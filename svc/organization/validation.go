package organization

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/dmitrymomot/orgkit/pkg/validator"
)

var (
	nameCharsRegex    = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}\s._-]*$`)
	nameRepeatedRegex = regexp.MustCompile(`[-_.]{2,}`)
	databaseNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

	reservedNames         = []string{"admin", "root", "system", "test", "master", "default"}
	reservedDatabaseNames = []string{"admin", "local", "config", "test"}
	descriptorSchemes     = []string{"mongodb", "mongodb+srv", "postgres", "postgresql"}
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName checks an organization name after trimming.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if err := validator.Apply(
		validator.Required("organization_name", name),
		validator.MinLen("organization_name", name, 3),
		validator.MaxLen("organization_name", name, 100),
		validator.Matches("organization_name", name, nameCharsRegex,
			"letters, digits, spaces, '-', '_' or '.' starting with a letter or digit"),
		validator.DoesNotMatch("organization_name", name, nameRepeatedRegex, "consecutive special characters"),
		validator.NotInListCaseInsensitive("organization_name", name, reservedNames),
	); err != nil {
		return errors.Join(ErrValidation, err)
	}

	if PartitionKey(name) == "" {
		return errors.Join(ErrValidation, validator.ValidationErrors{{
			Field:          "organization_name",
			Message:        "must contain at least one latin letter or digit",
			TranslationKey: "validation.partition_key",
		}})
	}
	return nil
}

// ValidateEmail checks an already normalized admin email.
func ValidateEmail(email string) error {
	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.MaxLen("email", email, 254),
	); err != nil {
		return errors.Join(ErrValidation, err)
	}
	return nil
}

// ValidatePassword enforces the admin password policy.
// Violations are reported as ErrInvalidCredential.
func ValidatePassword(password string) error {
	if err := validator.Apply(
		validator.StrongPassword("password", password, validator.DefaultPasswordStrength()),
	); err != nil {
		return errors.Join(ErrInvalidCredential, err)
	}
	return nil
}

// ValidateDescriptor checks a dedicated connection descriptor. Names in
// reserved, such as the control database, are rejected alongside the
// MongoDB system databases.
func ValidateDescriptor(d ConnectionDescriptor, reserved ...string) error {
	taken := reservedDatabaseNames
	if len(reserved) > 0 {
		taken = append(slices.Clone(reservedDatabaseNames), reserved...)
	}
	if err := validator.Apply(
		validator.ValidURLWithScheme("connection_descriptor.uri", d.URI, descriptorSchemes),
		validator.Required("connection_descriptor.database_name", d.DatabaseName),
		validator.MaxLen("connection_descriptor.database_name", d.DatabaseName, 64),
		validator.Matches("connection_descriptor.database_name", d.DatabaseName, databaseNameRegex,
			"letters, digits, '_' or '-' not starting with a digit"),
		validator.NotInListCaseInsensitive("connection_descriptor.database_name", d.DatabaseName, taken),
	); err != nil {
		return errors.Join(ErrValidation, err)
	}
	return nil
}
