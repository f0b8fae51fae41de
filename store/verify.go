package store

import (
	"context"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ReadAll reads content from r and verifies it against desc. Exactly
// desc.Size bytes must be available and they must hash to desc.Digest.
func ReadAll(r io.Reader, desc ocispec.Descriptor) ([]byte, error) {
	if desc.Size < 0 {
		return nil, fmt.Errorf("read %s: size %d: %w", desc.Digest, desc.Size, ErrInvalidDescriptorSize)
	}
	if err := desc.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("read %s: %w", desc.Digest, err)
	}

	buf := make([]byte, desc.Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("read %s: short content, want %d bytes: %w", desc.Digest, desc.Size, ErrMismatchedDigest)
		}
		return nil, fmt.Errorf("read %s: %w", desc.Digest, err)
	}

	// Trailing bytes mean the content cannot be what the descriptor claims.
	var extra [1]byte
	if n, err := r.Read(extra[:]); n > 0 || (err != nil && err != io.EOF) {
		if n > 0 {
			return nil, fmt.Errorf("read %s: trailing content after %d bytes: %w", desc.Digest, desc.Size, ErrMismatchedDigest)
		}
		return nil, fmt.Errorf("read %s: %w", desc.Digest, err)
	}

	verifier := desc.Digest.Verifier()
	if _, err := verifier.Write(buf); err != nil {
		return nil, fmt.Errorf("read %s: %w", desc.Digest, err)
	}
	if !verifier.Verified() {
		return nil, fmt.Errorf("read %s: %w", desc.Digest, ErrMismatchedDigest)
	}
	return buf, nil
}

// FetchAll fetches the described content from fetcher and verifies it.
func FetchAll(ctx context.Context, fetcher Fetcher, desc ocispec.Descriptor) ([]byte, error) {
	rc, err := fetcher.Fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadAll(rc, desc)
}
