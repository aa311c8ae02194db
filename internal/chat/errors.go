package chat

import (
	"auxchat/internal/storage"
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service wraps exactly one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("identity required")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrDependency = errors.New("dependency failure")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// fromStorage maps store sentinels to error kinds, anything unknown is a dependency failure
func fromStorage(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrBlocked):
		return fmt.Errorf("%w: %s: you can not send messages to this user", ErrForbidden, op)
	case errors.Is(err, storage.ErrNotMessageOwner):
		return fmt.Errorf("%w: %s: you can only delete your own messages", ErrForbidden, op)
	case errors.Is(err, storage.ErrUserNotExist):
		return fmt.Errorf("%w: %s: user does not exist", ErrNotFound, op)
	case errors.Is(err, storage.ErrMessageNotExist):
		return fmt.Errorf("%w: %s: message does not exist", ErrNotFound, op)
	default:
		return fmt.Errorf("%w: %s: %w", ErrDependency, op, err)
	}
}
