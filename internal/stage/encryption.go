package stage

import (
	"context"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/codec/encryption"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/keyprovider"
	"github.com/adapipe/adapipe/internal/procctx"
)

// EncryptionStage seals forward and opens inverse under a key resolved once
// per run from a keyprovider.Provider and a run-scoped salt generated when
// the run starts. Key material lives only in this struct and the codec
// call stack; it is never written to a chunk or the container.
type EncryptionStage struct {
	name    string
	codec   encryption.Codec
	key     []byte
	runSalt []byte
}

// NewEncryptionStage resolves keyID through provider and builds a Stage
// bound to that key and the run's salt. Construct once per run.
func NewEncryptionStage(name string, codec encryption.Codec, provider keyprovider.Provider, keyID string, runSalt []byte) (*EncryptionStage, error) {
	if codec.KeySize() == 0 {
		// A "none" encryption slot needs no key material.
		return &EncryptionStage{name: name, codec: codec}, nil
	}
	if provider == nil {
		return nil, errs.Wrap(errs.InvalidInput, "stage.encryption.resolve_key", "encryption stage requires a key provider", nil)
	}
	key, err := provider.Key(keyID)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "stage.encryption.resolve_key", "resolve key for encryption stage", err)
	}
	if len(key) != codec.KeySize() {
		return nil, errs.New(errs.InvalidInput, "stage.encryption.resolve_key", nil)
	}
	return &EncryptionStage{name: name, codec: codec, key: key, runSalt: runSalt}, nil
}

func (s *EncryptionStage) Name() string { return s.name }
func (s *EncryptionStage) Kind() Kind   { return KindEncryption }
func (s *EncryptionStage) PositionRequirement() PositionRequirement {
	return PositionAny
}

func (s *EncryptionStage) ProcessForward(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	out, err := s.codec.Seal(s.key, s.runSalt, c.SequenceNumber, c.Payload)
	if err != nil {
		return chunk.FileChunk{}, errs.Wrap(errs.CodecError, "stage.encryption.seal", "seal chunk", err)
	}
	return c.Clone(out), nil
}

func (s *EncryptionStage) ProcessInverse(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	out, err := s.codec.Open(s.key, s.runSalt, c.SequenceNumber, c.Payload)
	if err != nil {
		return chunk.FileChunk{}, errs.Wrap(errs.IntegrityFailure, "stage.encryption.open", "authentication tag did not verify", err)
	}
	return c.Clone(out), nil
}
