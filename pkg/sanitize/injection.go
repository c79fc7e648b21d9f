package sanitize

import (
	"context"
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/mnemos-ai/mnemos-engine/pkg/apperrors"
)

// injectionGuard rejects content carrying SQL injection or XSS
// patterns. Clean content passes through unchanged. It must be
// registered explicitly for the content types it should cover.
type injectionGuard struct{}

var _ Sanitizer = (*injectionGuard)(nil)

// NewInjectionGuard creates a sanitizer backed by libinjection.
func NewInjectionGuard() Sanitizer {
	return &injectionGuard{}
}

func (g *injectionGuard) Sanitize(_ context.Context, text string) (string, error) {
	if isSQLi, fingerprint := libinjection.IsSQLi(text); isSQLi {
		return "", fmt.Errorf("sql injection pattern detected (fingerprint %s): %w",
			string(fingerprint), apperrors.ErrSanitizerRejected)
	}
	if libinjection.IsXSS(text) {
		return "", fmt.Errorf("xss pattern detected: %w", apperrors.ErrSanitizerRejected)
	}
	return text, nil
}
