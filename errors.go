package cachelib

import (
	"fmt"
)

// OpError reports a failed facade operation. Key is empty for Flush.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cachelib: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cachelib: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
