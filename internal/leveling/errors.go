package leveling

import (
	"errors"
	"fmt"

	"levelbot/internal/storage"
)

var (
	ErrNotFound           = errors.New("leveling: not found")
	ErrAlreadyExists      = errors.New("leveling: already exists")
	ErrInvalidDateFormat  = errors.New("leveling: invalid date format, expected MM-DD")
	ErrInvalidDate        = errors.New("leveling: invalid calendar date")
	ErrPermissionDenied   = errors.New("leveling: permission denied")
	ErrStorageUnavailable = errors.New("leveling: storage unavailable")
	ErrOutOfRange         = errors.New("leveling: value out of range")
	ErrNegativeXP         = errors.New("leveling: negative xp amount")
	ErrInvalidIcon        = errors.New("leveling: icon must be an emoji")
	ErrInvalidName        = errors.New("leveling: name must not be empty")
)

// DateError reports which date argument failed validation.
type DateError struct {
	Field string
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

func wrapStorage(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrDuplicate):
		return ErrAlreadyExists
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
