package services

// PartialError reports a failure after some side effects already happened.
// Details are returned to the caller next to the error message so it can tell
// what did succeed.
type PartialError struct {
	Err     error
	Details map[string]any
}

func (e *PartialError) Error() string { return e.Err.Error() }
func (e *PartialError) Unwrap() error { return e.Err }
