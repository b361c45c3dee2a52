package organization

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/orgkit/handler"
	"github.com/dmitrymomot/orgkit/pkg/validator"
	orgs "github.com/dmitrymomot/orgkit/svc/organization"
)

var errInvalidCredential = handler.HTTPError{Code: http.StatusBadRequest, Key: "InvalidCredential"}

// fieldNames maps service field names to request field names.
var fieldNames = map[string]string{
	"connection_descriptor.uri":           "db_uri",
	"connection_descriptor.database_name": "db_name",
}

// classify maps the service error taxonomy to HTTP errors.
// Credential failures are 400 here; login turns them into 401 itself.
func classify(err error) error {
	var httpErr handler.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	switch {
	case errors.Is(err, orgs.ErrNotFound):
		return handler.ErrNotFound.WithDetail("organization not found").Wrap(err)
	case errors.Is(err, orgs.ErrConflict):
		return handler.ErrConflict.WithDetail(conflictDetail(err)).Wrap(err)
	case errors.Is(err, orgs.ErrUnauthorized):
		return handler.ErrUnauthorized.WithDetail("invalid or expired token").Wrap(err)
	case errors.Is(err, orgs.ErrConnectionUnavailable):
		return handler.ErrServiceUnavailable.WithDetail("tenant database unavailable").Wrap(err)
	case errors.Is(err, orgs.ErrInvalidCredential):
		fields := renameFields(validator.ExtractValidationErrors(err))
		if len(fields) == 0 {
			return errInvalidCredential.WithDetail("invalid credentials")
		}
		return errInvalidCredential.WithDetail(fields[0].Field + ": " + fields[0].Message).Wrap(fields)
	case errors.Is(err, orgs.ErrValidation):
		fields := renameFields(validator.ExtractValidationErrors(err))
		if len(fields) == 0 {
			return handler.ErrValidation.WithDetail(err.Error())
		}
		return handler.ErrValidation.WithDetail(fields[0].Field + ": " + fields[0].Message).Wrap(fields)
	}
	return err
}

func renameFields(errs validator.ValidationErrors) validator.ValidationErrors {
	if len(errs) == 0 {
		return nil
	}
	out := make(validator.ValidationErrors, len(errs))
	for i, e := range errs {
		if name, ok := fieldNames[e.Field]; ok {
			e.Field = name
		}
		out[i] = e
	}
	return out
}

// conflictDetail strips the sentinel prefix from "organization conflict: <reason>".
func conflictDetail(err error) string {
	_, reason, ok := strings.Cut(err.Error(), orgs.ErrConflict.Error()+": ")
	if !ok || reason == "" {
		return orgs.ErrConflict.Error()
	}
	return reason
}
