package models

import "errors"

// Sentinel errors for the weather pipeline. Every terminal failure wraps
// exactly one of these so callers can classify it with errors.Is; the HTTP
// layer maps kinds to status codes, the core never carries status knowledge.
var (
	ErrUpstream         = errors.New("upstream fetch failed")
	ErrParsing          = errors.New("weather data could not be parsed")
	ErrLocationNotFound = errors.New("location not found")
	ErrResolution       = errors.New("reverse geocoding failed")

	ErrInvalidLocation = errors.New("invalid location")
)

// FailureKind is a stable label for a pipeline failure, used in cache
// snapshots and metric labels.
type FailureKind string

const (
	FailureUpstream         FailureKind = "upstream"
	FailureParsing          FailureKind = "parsing"
	FailureLocationNotFound FailureKind = "location_not_found"
	FailureResolution       FailureKind = "resolution"
)

// KindOf maps err to its FailureKind. ok is false for errors outside the
// taxonomy (context cancellation, programmer errors).
func KindOf(err error) (FailureKind, bool) {
	switch {
	case errors.Is(err, ErrUpstream):
		return FailureUpstream, true
	case errors.Is(err, ErrParsing):
		return FailureParsing, true
	case errors.Is(err, ErrLocationNotFound):
		return FailureLocationNotFound, true
	case errors.Is(err, ErrResolution):
		return FailureResolution, true
	}
	return "", false
}

// Failure is a point-in-time snapshot of a pipeline failure replayed from the
// cache. It carries only the stored description but still matches the
// original sentinel under errors.Is.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string { return f.Message }

// Is reports whether target is the sentinel for this failure's kind.
func (f *Failure) Is(target error) bool {
	switch f.Kind {
	case FailureUpstream:
		return target == ErrUpstream
	case FailureParsing:
		return target == ErrParsing
	case FailureLocationNotFound:
		return target == ErrLocationNotFound
	case FailureResolution:
		return target == ErrResolution
	}
	return false
}
