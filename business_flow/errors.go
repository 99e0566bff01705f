// Package businessflow contains the core business logic and use cases for run execution workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Organization-related errors
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationInactive = errors.New("organization is inactive")

	// Campaign-related errors
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCampaignInactive = errors.New("campaign is inactive")

	// Run-related errors
	ErrRunNotFound          = errors.New("run not found")
	ErrRunAccessDenied      = errors.New("run access denied")
	ErrRunNameRequired      = errors.New("run name is required")
	ErrRunNotStartable      = errors.New("run cannot be started from its current status")
	ErrRunNotPausable       = errors.New("run cannot be paused from its current status")
	ErrRunNotResumable      = errors.New("run cannot be resumed from its current status")
	ErrRunNotRunning        = errors.New("run is not running")
	ErrScheduleTimeInPast   = errors.New("schedule time is in the past")
	ErrRunIntegrityViolated = errors.New("run references a missing organization or campaign")

	// Row-related errors
	ErrRowNotFound     = errors.New("row not found")
	ErrNoPhoneNumber   = errors.New("no phone number resolvable from row variables")
	ErrRowAlreadyTaken = errors.New("row already acquired by another dispatch cycle")

	// Call/webhook-related errors
	ErrCallNotFound       = errors.New("call not found")
	ErrCallIDRequired     = errors.New("call id is required")
	ErrFromNumberRequired = errors.New("from number is required")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsOrganizationNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound)
}

func IsOrganizationInactive(err error) bool {
	return errors.Is(err, ErrOrganizationInactive)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignInactive(err error) bool {
	return errors.Is(err, ErrCampaignInactive)
}

func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

func IsRunAccessDenied(err error) bool {
	return errors.Is(err, ErrRunAccessDenied)
}

func IsRunNameRequired(err error) bool {
	return errors.Is(err, ErrRunNameRequired)
}

func IsRunNotStartable(err error) bool {
	return errors.Is(err, ErrRunNotStartable)
}

func IsRunNotPausable(err error) bool {
	return errors.Is(err, ErrRunNotPausable)
}

func IsRunNotResumable(err error) bool {
	return errors.Is(err, ErrRunNotResumable)
}

func IsRunNotRunning(err error) bool {
	return errors.Is(err, ErrRunNotRunning)
}

func IsScheduleTimeInPast(err error) bool {
	return errors.Is(err, ErrScheduleTimeInPast)
}

func IsRunIntegrityViolated(err error) bool {
	return errors.Is(err, ErrRunIntegrityViolated)
}

func IsRowNotFound(err error) bool {
	return errors.Is(err, ErrRowNotFound)
}

func IsNoPhoneNumber(err error) bool {
	return errors.Is(err, ErrNoPhoneNumber)
}

func IsRowAlreadyTaken(err error) bool {
	return errors.Is(err, ErrRowAlreadyTaken)
}

func IsCallNotFound(err error) bool {
	return errors.Is(err, ErrCallNotFound)
}

func IsCallIDRequired(err error) bool {
	return errors.Is(err, ErrCallIDRequired)
}

func IsFromNumberRequired(err error) bool {
	return errors.Is(err, ErrFromNumberRequired)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
