package store

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"carlot/internal/models"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idHashLength   = 10
	idMaxAttempts  = 20

	vehicleIDPrefix    = "vh"
	assetGroupIDPrefix = "ag"
)

var recordIDPattern = regexp.MustCompile(`^(vh|ag)-[0-9a-z]{10}$`)

// ValidRecordID reports whether id looks like a vehicle or asset group id.
func ValidRecordID(id string) bool {
	return recordIDPattern.MatchString(id)
}

// ValidRecordIDFor additionally checks that the prefix matches kind.
func ValidRecordIDFor(kind models.RecordKind, id string) bool {
	if !ValidRecordID(id) {
		return false
	}
	prefix, ok := recordPrefixes[kind]
	return ok && strings.HasPrefix(id, prefix+"-")
}

var recordPrefixes = map[models.RecordKind]string{
	models.RecordVehicle: vehicleIDPrefix,
	models.RecordAsset:   assetGroupIDPrefix,
}

// GenerateID returns a new record id using prefix.
// It retries on collisions using the provided exists function.
func GenerateID(prefix string, exists func(string) (bool, error)) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("id prefix is required")
	}

	for i := 0; i < idMaxAttempts; i++ {
		hash, err := randomBase36(idHashLength)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf("%s-%s", prefix, hash)
		if exists == nil {
			return id, nil
		}
		ok, err := exists(id)
		if err != nil {
			return "", err
		}
		if !ok {
			return id, nil
		}
	}

	return "", fmt.Errorf("unable to generate unique id")
}

func randomBase36(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = base36Alphabet[int(b[i])%len(base36Alphabet)]
	}
	return string(out), nil
}
