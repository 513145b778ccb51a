package extraction

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
)

var extractionTracer = otel.Tracer("prodsearch/extraction")

// queryFingerprint keeps raw shopper text out of logs and span attributes.
func queryFingerprint(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed))
	return fmt.Sprintf("%x", sum[:8])
}
