package formats

// UnknownChunkFunc receives chunks a reader does not recognise.
// Reading continues after the callback returns.
type UnknownChunkFunc func(tag ChunkTag, size int)

type readOptions struct {
	onUnknown UnknownChunkFunc
	maxSize   uint32
}

// ReadOption configures ReadRoot, ReadGroup and ReadMap.
type ReadOption func(*readOptions)

// OnUnknownChunk installs a handler for unrecognised chunk tags.
func OnUnknownChunk(fn UnknownChunkFunc) ReadOption {
	return func(o *readOptions) {
		o.onUnknown = fn
	}
}

// WithMaxChunkSize overrides DefaultMaxChunkSize.
func WithMaxChunkSize(n uint32) ReadOption {
	return func(o *readOptions) {
		o.maxSize = n
	}
}

func newReadOptions(opts []ReadOption) readOptions {
	o := readOptions{maxSize: DefaultMaxChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o readOptions) unknown(c Chunk) {
	if o.onUnknown != nil {
		o.onUnknown(c.Tag, len(c.Data))
	}
}
