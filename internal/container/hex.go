package container

import (
	"encoding/hex"

	"github.com/adapipe/adapipe/internal/errs"
)

func decodeHexChecksum(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, "container.decodeHexChecksum", "decode hex checksum", err)
	}
	return b, nil
}

// EncodeHexChecksum renders a raw digest as the hex string the header and
// footer store it as. Exported so the orchestrator can build a Header
// without reaching into container's internals.
func EncodeHexChecksum(b []byte) string {
	return hex.EncodeToString(b)
}
