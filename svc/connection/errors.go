package connection

import "errors"

var (
	ErrInvalidURI        = errors.New("invalid connection uri")
	ErrUnsupportedScheme = errors.New("unsupported connection scheme")
	ErrResolverClosed    = errors.New("connection resolver closed")
	ErrInvalidated       = errors.New("connection invalidated while dialing")
	ErrMissingDescriptor = errors.New("dedicated organization has no connection descriptor")
	ErrPartitionExists   = errors.New("partition already exists")
)
