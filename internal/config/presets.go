package config

import (
	"fmt"

	"github.com/adapipe/adapipe/internal/pipelinedef"
)

// Preset is a named, ready-to-build stage bundle handed to
// pipelinedef.Builder: a fixed ordered list of StageDefs covering the
// checksum/compression/encryption choices a named use case wants, with no
// slot for chunking strategy or dedup scope (the stage chain has none).
type Preset struct {
	Name        string
	Description string
	Stages      []pipelinedef.StageDef
}

func stage(ordinal int, kind pipelinedef.StageKind, algo string, level int, keyID string) pipelinedef.StageDef {
	return pipelinedef.StageDef{Ordinal: ordinal, Kind: kind, Algorithm: algo, Level: level, KeyID: keyID}
}

// presetFast favors throughput: no compression, encryption only.
func presetFast(keyID string) Preset {
	return Preset{
		Name:        "fast",
		Description: "maximum throughput: no compression, encryption only",
		Stages: []pipelinedef.StageDef{
			stage(1, pipelinedef.KindEncryption, "aes-256-gcm", 0, keyID),
		},
	}
}

// presetArchive favors space savings for cold storage: highest
// compression level, checksum on both ends.
func presetArchive(keyID string) Preset {
	return Preset{
		Name:        "archive",
		Description: "maximum space savings for archival data",
		Stages: []pipelinedef.StageDef{
			stage(1, pipelinedef.KindChecksum, "sha-256", 0, ""),
			stage(2, pipelinedef.KindCompression, "zstd", 19, ""),
			stage(3, pipelinedef.KindEncryption, "aes-256-gcm", 0, keyID),
			stage(4, pipelinedef.KindChecksum, "sha-256", 0, ""),
		},
	}
}

// presetSecure is a compliance-oriented default: moderate compression,
// checksum on both ends for audit trails.
func presetSecure(keyID string) Preset {
	return Preset{
		Name:        "secure",
		Description: "compliance-oriented default: checksum + moderate compression + AEAD encryption",
		Stages: []pipelinedef.StageDef{
			stage(1, pipelinedef.KindChecksum, "blake3", 0, ""),
			stage(2, pipelinedef.KindCompression, "zstd", 3, ""),
			stage(3, pipelinedef.KindEncryption, "chacha20-poly1305", 0, keyID),
			stage(4, pipelinedef.KindChecksum, "blake3", 0, ""),
		},
	}
}

// GetPreset returns a named preset's stage bundle, bound to keyID for any
// encryption stage it contains.
func GetPreset(name, keyID string) (Preset, error) {
	switch name {
	case "fast", "hpc", "performance":
		return presetFast(keyID), nil
	case "archive", "cold":
		return presetArchive(keyID), nil
	case "secure", "enterprise", "compliance":
		return presetSecure(keyID), nil
	default:
		return Preset{}, fmt.Errorf("config: unknown preset %q", name)
	}
}
