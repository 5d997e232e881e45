package revocation

import (
	"fmt"
	"time"

	"conductor/pkg/platform/sentinel"
)

// A revocation entry lives exactly as long as the token it blocks. A zero
// or negative TTL would either never expire or vanish immediately, so both
// stores reject it before touching state.
func validateTTL(ttl time.Duration) error {
	if ttl > 0 {
		return nil
	}
	return fmt.Errorf("revocation ttl %v: %w", ttl, sentinel.ErrInvalidState)
}
