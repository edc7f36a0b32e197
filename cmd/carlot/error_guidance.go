package main

import (
	"context"
	"errors"
	"net"
	"os"

	"carlot/internal/api"
	"carlot/internal/failure"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Retryable() {
			lines = append(lines, "hint: the server was busy or the record changed mid-request; retry shortly.")
		}
		if apiErr.HasReason(failure.ReasonPartialFailure) {
			lines = append(lines, "hint: the record was updated but the stored file was not removed; run: carlot reconcile --apply")
		}
		if apiErr.HasReason(failure.ReasonTooManyFiles, failure.ReasonFileTooLarge, failure.ReasonInvalidFileType) {
			lines = append(lines, "hint: check uploads.max_files, uploads.max_file_bytes and uploads.allowed_extensions with: carlot config list")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify CARLOT_API_URL points to a carlot server.")
		}
		if apiErr.Status >= 500 && !apiErr.HasReason(failure.ReasonPartialFailure) {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase CARLOT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a carlot server is running at CARLOT_API_URL.",
			"hint: start local server manually with: carlot srv",
			"hint: you can increase CARLOT_HTTP_TIMEOUT for slower environments.",
		)
		if snapHint := snapStartHint(); snapHint != "" {
			lines = append(lines, snapHint)
		}
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func snapStartHint() string {
	if os.Getenv("SNAP") == "" && os.Getenv("SNAP_NAME") == "" {
		return ""
	}
	return "hint: in snap installs, start the daemon with: snap start carlot.daemon"
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
