package domain

import "errors"

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrMissingToken   = errors.New("missing auth token")
	ErrStreamClosed   = errors.New("stream closed")
	ErrUnknownStage   = errors.New("unknown audit stage")
	ErrStageNotFailed = errors.New("stage is not in FAIL")
	ErrRepairInFlight = errors.New("repair already in flight")
	ErrSessionClosed  = errors.New("audit session closed")
)
