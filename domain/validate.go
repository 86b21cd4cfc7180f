package domain

import "unicode/utf8"

// Board-wide limits. Statuses are user defined but bounded so a project
// board stays renderable.
const (
	MaxStatusNameLength = 30
	MaxCustomStatuses   = 20
	MinWipLimit         = 1
	MaxWipLimit         = 50
)

// ValidateStatusName checks the length bounds of a status name. Uniqueness
// is checked against the live registry by the caller.
func ValidateStatusName(name string) error {
	if name == "" {
		return ValidationError{Msg: "status name must not be empty"}
	}
	if utf8.RuneCountInString(name) > MaxStatusNameLength {
		return Validationf("status name exceeds %d characters", MaxStatusNameLength)
	}
	return nil
}

// ValidateWipLimit checks a WIP limit value. Nil means unlimited and is
// always valid.
func ValidateWipLimit(limit *int) error {
	if limit == nil {
		return nil
	}
	if *limit < MinWipLimit || *limit > MaxWipLimit {
		return Validationf("wip limit must be between %d and %d", MinWipLimit, MaxWipLimit)
	}
	return nil
}
