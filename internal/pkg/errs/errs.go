package errs

import (
	cr "github.com/cockroachdb/errors"
)

func New(msg string) error {
	return cr.New(msg)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

// Mark attaches markErr so IsAny(err, markErr) matches while the
// original cause stays inspectable via %+v. The mark is invisible to
// the standard library's errors.Is; callers must match through IsAny.
func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func IsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if cr.Is(err, t) {
			return true
		}
	}
	return false
}
