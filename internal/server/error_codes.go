package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeInvalidJSON      = 1001
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidQuery     = 1003
	ErrCodeInvalidID        = 1004
	ErrCodeInvalidObjectID  = 1005
	ErrCodeInvalidFileType  = 1006
	ErrCodeTooManyFiles     = 1007
	ErrCodeFileTooLarge     = 1008
	ErrCodeMissingRequired  = 1009
	ErrCodeDuplicateObject  = 1010
	ErrCodeMalformedUpload  = 1011
	ErrCodeInvalidRetention = 1012

	// Domain state (2xxx)
	ErrCodeRecordNotFound  = 2001
	ErrCodeObjectNotFound  = 2002
	ErrCodeObjectNotLinked = 2003
	ErrCodeConflict        = 2102

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodePartialFailure = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeRecordNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 502:
		return ErrCodePartialFailure
	default:
		return 0
	}
}
