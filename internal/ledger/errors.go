package ledger

import (
	"errors"
	"fmt"
)

// Error categories. Operation errors wrap one of these so the boundary can
// map them to a response without inspecting concrete types.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrIntegrity     = errors.New("integrity violation")
)

// UnauthorizedSignOffError: the acting user is not in the task's signer set.
type UnauthorizedSignOffError struct {
	Username string
	TaskName string
}

func (e *UnauthorizedSignOffError) Error() string {
	return fmt.Sprintf("user %s is not authorized to sign off '%s'", e.Username, e.TaskName)
}

func (e *UnauthorizedSignOffError) Is(target error) bool { return target == ErrNotAuthorized }

// UnauthorizedUnsignError: the acting user may not remove sign-offs for the
// task.
type UnauthorizedUnsignError struct {
	Username string
	TaskName string
}

func (e *UnauthorizedUnsignError) Error() string {
	return fmt.Sprintf("user %s does not have permission to remove the sign-off for '%s'", e.Username, e.TaskName)
}

func (e *UnauthorizedUnsignError) Is(target error) bool { return target == ErrNotAuthorized }

// MissingScoreError: the task requires a score and none was supplied.
type MissingScoreError struct {
	TaskName     string
	MinimumScore string
}

func (e *MissingScoreError) Error() string {
	return fmt.Sprintf("Score required for '%s'. Minimum passing score: %s", e.TaskName, e.MinimumScore)
}

func (e *MissingScoreError) Is(target error) bool { return target == ErrValidation }

// ScoreBelowMinimumError: the supplied score parses but fails the minimum.
type ScoreBelowMinimumError struct {
	Score        string
	MinimumScore string
	TaskName     string
}

func (e *ScoreBelowMinimumError) Error() string {
	return fmt.Sprintf("Score %s is below minimum requirement of %s for '%s'", e.Score, e.MinimumScore, e.TaskName)
}

func (e *ScoreBelowMinimumError) Is(target error) bool { return target == ErrValidation }

// InvalidScoreFormatError: the supplied score is not a plain decimal number.
type InvalidScoreFormatError struct {
	Score string
}

func (e *InvalidScoreFormatError) Error() string {
	return fmt.Sprintf("Invalid score format: '%s'. Please enter a numeric value", e.Score)
}

func (e *InvalidScoreFormatError) Is(target error) bool { return target == ErrValidation }

// TextTooLongError: a free-text field exceeds its bound.
type TextTooLongError struct {
	Field string
	Limit int
}

func (e *TextTooLongError) Error() string {
	return fmt.Sprintf("%s exceeds the maximum length of %d characters", e.Field, e.Limit)
}

func (e *TextTooLongError) Is(target error) bool { return target == ErrValidation }

// NotFoundError: a referenced entity does not exist (or is inactive where
// activity is required).
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SignOffNotFoundError: unsign was requested for a pair with no sign-off.
type SignOffNotFoundError struct {
	Badge    string
	TaskName string
}

func (e *SignOffNotFoundError) Error() string {
	return fmt.Sprintf("no sign-off found for %s on task '%s'", e.Badge, e.TaskName)
}

func (e *SignOffNotFoundError) Is(target error) bool { return target == ErrNotFound }
