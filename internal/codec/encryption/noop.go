package encryption

// Noop is the pass-through Codec used when encryption is disabled.
type Noop struct{}

// NewNoop returns a Noop codec.
func NewNoop() *Noop { return &Noop{} }

func (c *Noop) Seal(_, _ []byte, _ uint64, plaintext []byte) ([]byte, error) { return plaintext, nil }
func (c *Noop) Open(_, _ []byte, _ uint64, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}
func (c *Noop) Algorithm() string { return "none" }
func (c *Noop) KeySize() int      { return 0 }
func (c *Noop) TagSize() int      { return 0 }
