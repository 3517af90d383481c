package dtanet

import (
	"fmt"

	"github.com/pkg/errors"
)

// DtaError is the single domain-level error kind of the package.
type DtaError struct {
	msg string
}

func (e *DtaError) Error() string {
	return e.msg
}

// dtaErrorf builds DtaError and attaches stack trace to it
func dtaErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&DtaError{msg: fmt.Sprintf(format, args...)})
}

// IsDtaError returns true if any error in chain is DtaError
func IsDtaError(err error) bool {
	var target *DtaError
	return errors.As(err, &target)
}
