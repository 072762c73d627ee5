package pipeline

import "fmt"

// StageError names the pipeline stage that raised an error, so failure
// notifications tell the caller where the job died.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
