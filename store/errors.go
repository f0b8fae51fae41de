package store

import "errors"

var (
	// ErrNotFound is returned when content, a descriptor, or a tag is absent.
	ErrNotFound = errors.New("ocicopy: not found")

	// ErrAlreadyExists is returned when a push collides with content
	// already stored under the same descriptor key.
	ErrAlreadyExists = errors.New("ocicopy: already exists")

	// ErrMismatchedDigest is returned when pushed or fetched bytes do not
	// hash to the claimed digest. Permanent; retrying cannot help.
	ErrMismatchedDigest = errors.New("ocicopy: mismatched digest")

	// ErrInvalidDescriptorSize is returned when a descriptor declares a
	// negative size.
	ErrInvalidDescriptorSize = errors.New("ocicopy: invalid descriptor size")

	// ErrSizeExceedsLimit is returned by LimitedStorage when content is
	// larger than the configured cap.
	ErrSizeExceedsLimit = errors.New("ocicopy: size exceeds limit")

	// ErrUnsupported is returned when a store cannot perform the
	// requested operation for the given content.
	ErrUnsupported = errors.New("ocicopy: unsupported")
)
