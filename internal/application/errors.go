package application

import (
	"fmt"
	"path/filepath"
)

// ServiceError wraps a startup failure with where it happened.
type ServiceError struct {
	// Op names the startup step that failed.
	Op   string
	File string
	Line int
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("error occurred in [%s] line number [%d] operation [%s] error message [%v]",
		filepath.Base(e.File), e.Line, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
