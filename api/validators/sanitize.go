package validators

import (
	"strings"

	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
)

const maxIDLen = 128

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// PathID trims a path identifier and rejects empty or oversized values.
func PathID(name, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "%s is required", name)
	}
	if len(id) > maxIDLen {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "%s is too long", name)
	}
	return id, nil
}
