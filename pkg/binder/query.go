package binder

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Query creates a query parameter binder function.
//
// Only fields tagged `query:"name"` are bound; `query:"-"` and untagged
// fields are left alone. Supported types are strings, integers and bools,
// plus pointers to them for optional parameters. Strings are scrubbed the
// same way JSON bodies are.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindQuery(v, r.URL.Query())
	}
}

func bindQuery(v any, values url.Values) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a non-nil pointer to struct", ErrFailedToParseQuery)
	}

	rv = rv.Elem()
	rt := rv.Type()
	for i := range rv.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}

		name, _, _ := strings.Cut(sf.Tag.Get("query"), ",")
		if name == "" || name == "-" || !values.Has(name) {
			continue
		}

		if err := setQueryValue(field, values.Get(name)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFailedToParseQuery, name, err)
		}
	}
	return nil
}

func setQueryValue(field reflect.Value, raw string) error {
	if field.Kind() == reflect.Pointer {
		ptr := reflect.New(field.Type().Elem())
		if err := setQueryValue(ptr.Elem(), raw); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(sanitizeStringValue(raw))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid bool %q", raw)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type %s", field.Kind())
	}
	return nil
}
