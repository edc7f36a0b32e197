// Package failure defines the error kinds shared by the object store, upload,
// link and retrieval layers.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to map it to a response.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Store
	PartialFailure
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Store:
		return "store"
	case PartialFailure:
		return "partial_failure"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Reasons used across packages.
const (
	ReasonTooManyFiles      = "too_many_files"
	ReasonFileTooLarge      = "file_too_large"
	ReasonInvalidFileType   = "invalid_file_type"
	ReasonInvalidObjectID   = "invalid_object_id"
	ReasonInvalidRecordID   = "invalid_record_id"
	ReasonDuplicateObjectID = "duplicate_object_id"
	ReasonNoFilesExist      = "no_files_exist"
	ReasonRecordNotFound    = "record_not_found"
	ReasonObjectNotLinked   = "object_not_linked"
	ReasonPartialFailure    = "partial_failure"
	ReasonVersionConflict   = "version_conflict"
	ReasonStoreFailure      = "store_failure"
	ReasonMalformedUpload   = "malformed_upload"
)

// Error is a classified error with a short machine-checkable reason.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error without a cause.
func New(kind Kind, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error around cause. A nil cause returns nil.
func Wrap(kind Kind, reason string, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
