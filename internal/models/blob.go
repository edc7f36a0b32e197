package models

import "time"

// ObjectRef is the descriptor of one immutable stored binary object.
type ObjectRef struct {
	ID         string    `json:"id"`
	StoredName string    `json:"stored_name"`
	SizeBytes  int64     `json:"size_bytes"`
	Bucket     string    `json:"bucket"`
	CreatedAt  time.Time `json:"created_at"`
}

// ObjectIDs returns the ids of refs in order.
func ObjectIDs(refs []ObjectRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.ID)
	}
	return out
}
