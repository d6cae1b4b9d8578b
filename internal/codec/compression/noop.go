package compression

// Noop is the pass-through Codec used when compression is disabled for a
// slot but the stage chain still wants a uniform Codec value.
type Noop struct{}

// NewNoop returns a Noop codec.
func NewNoop() *Noop { return &Noop{} }

func (c *Noop) Compress(data []byte) ([]byte, error)   { return data, nil }
func (c *Noop) Decompress(data []byte) ([]byte, error) { return data, nil }
func (c *Noop) Algorithm() string                      { return "none" }
func (c *Noop) Level() int                             { return 0 }
