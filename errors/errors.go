package errors

import "fmt"

var (
	ErrAuth          = fmt.Errorf("platform logon failed")
	ErrNotFound      = fmt.Errorf("conversation or call not found")
	ErrDial          = fmt.Errorf("dial-out failed")
	ErrSessionActive = fmt.Errorf("a session is already live for this conversation")
	ErrWorkerPanic   = fmt.Errorf("worker panic")
)
