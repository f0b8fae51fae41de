package remote

import (
	"context"

	"github.com/google/go-containerregistry/pkg/authn"
	gcr "github.com/google/go-containerregistry/pkg/v1/remote"
)

// Authenticator provides credentials for registry operations.
type Authenticator interface {
	// Authenticate returns credentials for the given registry. Empty
	// credentials fall back to the system keychain.
	Authenticate(registry string) (username, password string, err error)
}

type options struct {
	auth      Authenticator
	plainHTTP bool
}

// Option configures NewRepository.
type Option func(*options)

func defaultOptions() *options {
	return &options{}
}

// WithAuth sets a custom authenticator instead of the system keychain.
func WithAuth(auth Authenticator) Option {
	return func(o *options) { o.auth = auth }
}

// WithPlainHTTP allows http registries, for local testing.
func WithPlainHTTP() Option {
	return func(o *options) { o.plainHTTP = true }
}

// options builds the per-call go-containerregistry options, carrying the
// request context and resolved credentials.
func (r *Repository) options(ctx context.Context) []gcr.Option {
	opts := []gcr.Option{gcr.WithContext(ctx)}
	if r.auth != nil {
		if username, password, err := r.auth.Authenticate(r.Registry()); err == nil && username != "" {
			return append(opts, gcr.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(opts, gcr.WithAuthFromKeychain(authn.DefaultKeychain))
}
