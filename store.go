package ocicopy

import (
	"github.com/aweris/ocicopy/store"
)

// Target is a content store usable as a copy destination: storage plus a
// tag index.
type Target interface {
	store.Storage
	store.TagResolver
}

// GraphTarget is a target that also indexes predecessors, making it
// usable as an extended-copy source.
type GraphTarget interface {
	store.GraphStorage
	store.TagResolver
}

// ReadOnlyTarget is a content store usable as a copy source.
type ReadOnlyTarget interface {
	store.ReadOnlyStorage
	store.Resolver
}

// ReadOnlyGraphTarget is the read side of a graph target.
type ReadOnlyGraphTarget interface {
	store.ReadOnlyGraphStorage
	store.Resolver
}
