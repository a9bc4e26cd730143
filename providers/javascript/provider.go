package javascript

import "github.com/termfx/structq/providers/base"

// This package provides JavaScript language support using the base provider.

// New creates a JavaScript grammar
func New(opts ...base.Option) *base.Provider {
	return base.New(&Config{}, opts...)
}
