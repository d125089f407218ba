package client

import (
	"context"
	"errors"
	"strings"

	"github.com/mwesner/msn-weather-service/internal/models"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryUpstream         ErrorCategory = "upstream"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryResolution       ErrorCategory = "resolution"
	ErrorCategoryValidation       ErrorCategory = "validation"
	ErrorCategoryCache            ErrorCategory = "cache"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory. Taxonomy sentinels
// win; string probing covers transport errors from the http client.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	if errors.Is(err, models.ErrLocationNotFound) {
		return ErrorCategoryLocationNotFound
	}
	if errors.Is(err, models.ErrResolution) {
		return ErrorCategoryResolution
	}
	if errors.Is(err, models.ErrParsing) {
		return ErrorCategoryParsing
	}

	errStr := err.Error()
	if errors.Is(err, models.ErrUpstream) {
		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryUpstream
	}

	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") {
		return ErrorCategoryNetwork
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return ErrorCategoryTimeout
	}

	if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation") {
		return ErrorCategoryValidation
	}

	if strings.Contains(errStr, "cache") {
		return ErrorCategoryCache
	}

	return ErrorCategoryUnknown
}
