package upload

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

const (
	DefaultMaxFiles     = 12
	DefaultMaxFileBytes = int64(20_000_000)
	DefaultFieldName    = "uploaded_files"
)

// Policy bounds one upload batch.
type Policy struct {
	MaxFiles          int
	MaxFileBytes      int64
	AllowedExtensions []string
	AllowedMediaTypes []string
}

func DefaultPolicy() Policy {
	return Policy{
		MaxFiles:          DefaultMaxFiles,
		MaxFileBytes:      DefaultMaxFileBytes,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif"},
		AllowedMediaTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/gif"},
	}
}

// Normalize fills zero values from DefaultPolicy and canonicalizes lists.
func (p Policy) Normalize() Policy {
	def := DefaultPolicy()
	if p.MaxFiles <= 0 {
		p.MaxFiles = def.MaxFiles
	}
	if p.MaxFileBytes <= 0 {
		p.MaxFileBytes = def.MaxFileBytes
	}
	if len(p.AllowedExtensions) == 0 {
		p.AllowedExtensions = def.AllowedExtensions
	}
	if len(p.AllowedMediaTypes) == 0 {
		p.AllowedMediaTypes = def.AllowedMediaTypes
	}
	p.AllowedExtensions = normalizeList(p.AllowedExtensions, func(v string) string {
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		return v
	})
	p.AllowedMediaTypes = normalizeList(p.AllowedMediaTypes, normalizeMediaType)
	return p
}

// MaxBatchBytes is an upper bound for a whole request body.
func (p Policy) MaxBatchBytes() int64 {
	const formOverhead = 1 << 20
	return int64(p.MaxFiles)*p.MaxFileBytes + formOverhead
}

// checkType requires both the extension and the declared media type to be allowed.
func (p Policy) checkType(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if !contains(p.AllowedExtensions, ext) {
		return fmt.Errorf("file %q: extension %q is not allowed", filename, ext)
	}
	mediaType := normalizeMediaType(contentType)
	if !contains(p.AllowedMediaTypes, mediaType) {
		return fmt.Errorf("file %q: media type %q is not allowed", filename, mediaType)
	}
	return nil
}

func normalizeMediaType(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(value)
	}
	return strings.ToLower(mediaType)
}

func normalizeList(values []string, fn func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		value = fn(value)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func contains(values []string, target string) bool {
	if target == "" {
		return false
	}
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
