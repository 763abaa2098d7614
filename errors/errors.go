package errors

import "fmt"

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrNotFound     = fmt.Errorf("not found")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrValidation   = fmt.Errorf("validation failed")
	ErrStorage      = fmt.Errorf("storage failure")
	ErrConnectivity = fmt.Errorf("transport unreachable")
)
