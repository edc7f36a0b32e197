package objectstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	storedNameRandomBytes = 16
	maxExtensionLen       = 16
)

// NewObjectID returns a fresh canonical object id.
func NewObjectID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a canonical 36-character lower-case UUID
// string. Objects are keyed by that exact form, so other spellings of the
// same UUID are rejected rather than looked up.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

// NewStoredName returns 32 random hex characters followed by the lower-cased
// extension of filename.
func NewStoredName(filename string) (string, error) {
	buf := make([]byte, storedNameRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate stored name: %w", err)
	}
	return hex.EncodeToString(buf) + storedExtension(filename), nil
}

func storedExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if len(ext) < 2 || len(ext) > maxExtensionLen {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
