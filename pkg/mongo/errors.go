package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
)

// Server error codes used when managing tenant collections.
const (
	codeNamespaceNotFound = 26
	codeNamespaceExists   = 48
)

// IsDuplicateKeyError reports a unique index violation.
func IsDuplicateKeyError(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}

// IsNotFoundError reports an empty single-document result.
func IsNotFoundError(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// IsNamespaceNotFound reports a command run against a missing collection.
func IsNamespaceNotFound(err error) bool {
	return hasServerCode(err, codeNamespaceNotFound)
}

// IsNamespaceExists reports an attempt to create a collection that already exists.
func IsNamespaceExists(err error) bool {
	return hasServerCode(err, codeNamespaceExists)
}

func hasServerCode(err error, code int) bool {
	if err == nil {
		return false
	}
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(code)
}
