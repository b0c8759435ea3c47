package hierarchy

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// TokenLength is the number of hex characters in a unique token.
const TokenLength = 8

// DefaultNamespace keys token derivation when no namespace is configured.
var DefaultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/speclayout/specmigrate"))

var (
	tokenRe = regexp.MustCompile(`^[a-f0-9]{8}$`)
	newIDRe = regexp.MustCompile(`^[EFTSBK](\d{2,}|99_.+)$`)
)

// DeriveToken returns a short token for seed. The same namespace and seed
// always give the same token.
func DeriveToken(namespace uuid.UUID, seed string) string {
	id := uuid.NewSHA1(namespace, []byte(seed))
	return strings.ReplaceAll(id.String(), "-", "")[:TokenLength]
}

// IsToken reports whether s has the unique token shape.
func IsToken(s string) bool {
	return tokenRe.MatchString(s)
}

// IsNewID reports whether s looks like a hierarchy id such as F02 or T99_1013.
func IsNewID(s string) bool {
	return newIDRe.MatchString(s)
}
