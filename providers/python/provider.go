package python

import "github.com/termfx/structq/providers/base"

// New creates a Python grammar
func New(opts ...base.Option) *base.Provider {
	return base.New(&Config{}, opts...)
}
