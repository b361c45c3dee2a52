package pg

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
)

// IsInvalidSchemaName reports a statement that referenced a missing schema.
func IsInvalidSchemaName(err error) bool {
	return hasCode(err, pgerrcode.InvalidSchemaName)
}

// IsDuplicateSchema reports an attempt to create or rename onto an existing schema.
func IsDuplicateSchema(err error) bool {
	return hasCode(err, pgerrcode.DuplicateSchema)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
