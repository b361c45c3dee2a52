// Package validator provides rule-based input validation.
//
// A Rule pairs a check with the ValidationError reported when the check fails.
// Apply runs every rule and returns ValidationErrors collecting all failures, so
// callers can report every problem at once instead of stopping at the first:
//
//	err := validator.Apply(
//		validator.Required("email", email),
//		validator.ValidEmail("email", email),
//		validator.MinLen("name", name, 3),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs != nil {
//		for _, field := range errs.Fields() { ... }
//	}
//
// ValidationErrors stays reachable through errors.As when joined with other
// errors, which lets services attach their own sentinel:
//
//	return errors.Join(ErrValidation, err)
//
// Each ValidationError also carries a translation key and values for i18n.
package validator
