package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mwesner/msn-weather-service/internal/models"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryTimeout},
		{"location not found", models.ErrLocationNotFound, ErrorCategoryLocationNotFound},
		{"resolution", fmt.Errorf("%w: nominatim status 500", models.ErrResolution), ErrorCategoryResolution},
		{"parsing", fmt.Errorf("%w: could not extract temperature from page", models.ErrParsing), ErrorCategoryParsing},
		{"upstream status", fmt.Errorf("%w: HTTP 502", models.ErrUpstream), ErrorCategoryUpstream},
		{"upstream timeout", fmt.Errorf("%w: request timeout: context deadline exceeded", models.ErrUpstream), ErrorCategoryTimeout},
		{"bare connection error", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"bare timeout", errors.New("read timeout"), ErrorCategoryTimeout},
		{"validation", errors.New("invalid location"), ErrorCategoryValidation},
		{"cache", errors.New("cache backend down"), ErrorCategoryCache},
		{"unknown", errors.New("boom"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
