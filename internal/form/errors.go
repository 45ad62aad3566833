package form

import (
	"errors"
	"fmt"

	"github.com/debemdeboas/race-posts/internal/intake"
)

const (
	MsgMissingFields   = "Please, fill in all fields."
	MsgSaveFailed      = "Sorry, something went wrong. Please try again."
	MsgImageUnreadable = "The image file could not be read"
)

var (
	ErrBusy       = errors.New("a submission is already in progress")
	ErrIncomplete = errors.New("post is missing required fields")
	ErrSuperseded = errors.New("image selection superseded by a newer one")
)

// ErrorKind tags the failure that last wrote the form's error slot.
type ErrorKind int

const (
	KindImageTooLarge ErrorKind = iota + 1
	KindImageUnreadable
	KindMissingFields
	KindSaveFailed
	KindImageUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindImageTooLarge:
		return "image_too_large"
	case KindImageUnreadable:
		return "image_unreadable"
	case KindMissingFields:
		return "missing_fields"
	case KindSaveFailed:
		return "save_failed"
	case KindImageUnsupported:
		return "image_unsupported"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the user-facing error held by a form. Message is what gets shown;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidation reports whether the error can be fixed by editing the draft.
func (e *Error) IsValidation() bool {
	switch e.Kind {
	case KindImageTooLarge, KindImageUnsupported, KindMissingFields:
		return true
	}
	return false
}

func newError(kind ErrorKind, cause error) *Error {
	var msg string
	switch kind {
	case KindImageTooLarge:
		msg = intake.MsgImageTooLarge
	case KindImageUnreadable:
		msg = MsgImageUnreadable
	case KindImageUnsupported:
		msg = intake.MsgImageUnsupported
	case KindMissingFields:
		msg = MsgMissingFields
	default:
		msg = MsgSaveFailed
	}
	return &Error{Kind: kind, Message: msg, Err: cause}
}
