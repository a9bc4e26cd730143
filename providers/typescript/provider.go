package typescript

import "github.com/termfx/structq/providers/base"

// New creates a TypeScript grammar
func New(opts ...base.Option) *base.Provider {
	return base.New(&Config{}, opts...)
}
