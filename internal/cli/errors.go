package cli

import (
	"errors"
	"fmt"
)

// ErrUsage matches every error caused by how oapi2types was invoked (bad
// flags, config or input location) rather than by the schemas themselves.
var ErrUsage = errors.New("oapi2types: usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func newUsageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
