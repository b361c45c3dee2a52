package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// OrgID records the organization identifier under the key "org_id".
func OrgID(id string) slog.Attr {
	return slog.String("org_id", id)
}

// OrgName records the organization name under the key "org_name".
func OrgName(name string) slog.Attr {
	return slog.String("org_name", name)
}

// DBMode records the tenant database mode under the key "db_mode".
func DBMode(mode string) slog.Attr {
	return slog.String("db_mode", mode)
}

// Fingerprint records a connection descriptor fingerprint under the key "descriptor".
// Raw connection URIs may carry credentials and are never logged.
func Fingerprint(fp string) slog.Attr {
	return slog.String("descriptor", fp)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
