package golang

import "github.com/termfx/structq/providers/base"

// This package provides Go language support using the base provider.
// All the heavy lifting is done by the base provider with Go-specific configuration.

// New creates a Go grammar
func New(opts ...base.Option) *base.Provider {
	return base.New(&Config{}, opts...)
}
