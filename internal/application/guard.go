package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Task is a unit of startup work.
type Task func(ctx context.Context) error

// Guard runs task and converts any failure into a *ServiceError. A context
// that is already done fails the step without running it. Errors marked with
// locate and panics carry the line that produced them; other errors are
// located at the Guard call.
func Guard(ctx context.Context, op string, task Task) (err error) {
	callerFile, callerLine := callerSite(2)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ServiceError{Op: op, File: callerFile, Line: callerLine, Err: ctxErr}
	}

	defer func() {
		if r := recover(); r != nil {
			file, line := panicSite()
			err = &ServiceError{Op: op, File: file, Line: line, Err: panicError(r)}
		}
	}()

	taskErr := task(ctx)
	if taskErr == nil {
		return nil
	}

	var located *locatedError
	if errors.As(taskErr, &located) {
		return &ServiceError{Op: op, File: located.file, Line: located.line, Err: located.err}
	}
	return &ServiceError{Op: op, File: callerFile, Line: callerLine, Err: taskErr}
}

// locatedError records the source line a task error was produced at.
type locatedError struct {
	file string
	line int
	err  error
}

func (e *locatedError) Error() string {
	return e.err.Error()
}

func (e *locatedError) Unwrap() error {
	return e.err
}

// locate marks err with the location of the caller.
func locate(err error) error {
	if err == nil {
		return nil
	}
	file, line := callerSite(2)
	return &locatedError{file: file, line: line, err: err}
}

func callerSite(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", 0
	}
	return file, line
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

// panicSite walks the stack of a recovering goroutine and returns the first
// frame below runtime.gopanic that is outside the runtime.
func panicSite() (string, int) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	unwinding := false
	for {
		frame, more := frames.Next()
		switch {
		case frame.Function == "runtime.gopanic":
			unwinding = true
		case unwinding && !strings.HasPrefix(frame.Function, "runtime.") && frame.File != "<autogenerated>":
			return frame.File, frame.Line
		}
		if !more {
			break
		}
	}
	return "unknown", 0
}
