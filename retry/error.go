package retry

// abortError marks an error that must not be retried.
type abortError struct {
	err error
}

func (e *abortError) Error() string {
	return e.err.Error()
}

func (e *abortError) Unwrap() error {
	return e.err
}

// Abort wraps err so that the retry loop stops and returns err unchanged.
// Abort(nil) returns nil.
func Abort(err error) error {
	if err == nil {
		return nil
	}

	return &abortError{err: err}
}
