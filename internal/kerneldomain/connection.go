package kerneldomain

import "time"

// Connection holds an AES-256-GCM-encrypted provider secret.
// EncryptedSecret is base64(iv(12) || tag(16) || ct).
type Connection struct {
	Provider        string
	EncryptedSecret string
	Status          string
	LastTestedAt    *time.Time
	LastError       string
	UpdatedAt       time.Time
}

// KernelState is a flat key/value row used for two singletons: the hex
// AES master key under "connections_key" and the recovery-phrase hash
// under "recovery_hash".
type KernelState struct {
	Key   string
	Value string
}

const (
	KernelStateConnectionsKey = "connections_key"
	KernelStateRecoveryHash   = "recovery_hash"
)
