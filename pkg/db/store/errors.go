package store

import "errors"

var (
	// ErrChecksumNotFound indicates the requested checksum does not exist.
	ErrChecksumNotFound = errors.New("checksum not found")

	// ErrTagNotFound indicates the requested tag does not exist.
	ErrTagNotFound = errors.New("tag not found")

	// ErrImageNotFound indicates the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidInput indicates a value that can never be stored, such as an empty fingerprint.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound reports whether err is any of the lookup failures above.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChecksumNotFound) ||
		errors.Is(err, ErrTagNotFound) ||
		errors.Is(err, ErrImageNotFound)
}
