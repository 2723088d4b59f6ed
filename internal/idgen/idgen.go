// Package idgen generates entity IDs: a fixed human-readable prefix
// plus a uuid-derived random suffix, following the
// "cap_"/"dct_"-prefix-plus-random-suffix scheme spec.md §6.2 names for
// bearer token IDs and extended here to every other entity so IDs stay
// visually greppable in logs and events.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns "<prefix>_<32 lowercase hex chars>".
func New(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
