package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"carlot/internal/api"
	"carlot/internal/failure"
	"carlot/internal/models"
	"carlot/internal/store"
)

const (
	defaultJSONMaxBody = 1 << 20 // 1 MiB
	defaultListLimit   = 100
	maxListLimit       = 1000
)

var reasonErrorCodes = map[string]int{
	failure.ReasonInvalidObjectID:   ErrCodeInvalidObjectID,
	failure.ReasonInvalidRecordID:   ErrCodeInvalidID,
	failure.ReasonInvalidFileType:   ErrCodeInvalidFileType,
	failure.ReasonTooManyFiles:      ErrCodeTooManyFiles,
	failure.ReasonFileTooLarge:      ErrCodeFileTooLarge,
	failure.ReasonDuplicateObjectID: ErrCodeDuplicateObject,
	failure.ReasonMalformedUpload:   ErrCodeMalformedUpload,
	failure.ReasonNoFilesExist:      ErrCodeObjectNotFound,
	failure.ReasonRecordNotFound:    ErrCodeRecordNotFound,
	failure.ReasonObjectNotLinked:   ErrCodeObjectNotLinked,
	failure.ReasonVersionConflict:   ErrCodeConflict,
	failure.ReasonPartialFailure:    ErrCodePartialFailure,
	failure.ReasonStoreFailure:      ErrCodeStoreFailure,
}

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	reason := errorReason(err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "reason", reason, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status == http.StatusBadGateway:
		s.log().Warn("request partially failed", fields...)
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status == http.StatusTooManyRequests:
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode, Reason: reason})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

type apiError struct {
	status  int
	code    string
	errCode int
	reason  string
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, reason: failure.ReasonOf(err), err: err}
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

// classifyError maps a failure kind to its HTTP form. Errors already mapped
// pass through unchanged.
func classifyError(err error) error {
	var existing apiError
	if errors.As(err, &existing) {
		return existing
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return internalError(err)
	}

	var fe *failure.Error
	if !errors.As(err, &fe) {
		return internalError(err)
	}
	errCode := reasonErrorCodes[fe.Reason]
	switch fe.Kind {
	case failure.Validation:
		return makeAPIError(http.StatusBadRequest, "invalid_argument", errCode, err)
	case failure.NotFound:
		return makeAPIError(http.StatusNotFound, "not_found", errCode, err)
	case failure.Conflict:
		return makeAPIError(http.StatusConflict, "conflict", errCode, err)
	case failure.PartialFailure:
		return makeAPIError(http.StatusBadGateway, "partial_failure", ErrCodePartialFailure, err)
	case failure.Store:
		return storeFailure(err)
	default:
		return internalError(err)
	}
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	case http.StatusBadGateway:
		return "partial_failure"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func errorReason(err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.reason != "" {
		return apiErr.reason
	}
	return failure.ReasonOf(err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(defaultJSONMaxBody))
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	err = classifyError(err)
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
}

func (s *Server) recordIDOrBadRequest(w http.ResponseWriter, r *http.Request, kind models.RecordKind) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if !store.ValidRecordIDFor(kind, id) {
		err := failure.New(failure.Validation, failure.ReasonInvalidRecordID, "invalid %s id", kind)
		s.writeServiceError(w, r, err)
		return "", false
	}
	return id, true
}

func queryIntDefault(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	if parsed < 0 {
		return 0, badRequestCode(fmt.Errorf("%s must be >= 0", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

// listWindow reads limit and offset, capping limit at maxListLimit.
func (s *Server) listWindow(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, err := queryIntDefault(r, "limit", defaultListLimit)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return 0, 0, false
	}
	offset, err := queryIntDefault(r, "offset", 0)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return 0, 0, false
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, offset, true
}
