package services

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotAParticipant     = errors.New("not a participant")
	ErrAlreadyParticipant  = errors.New("already a participant")
	ErrAlreadyInvited      = errors.New("already invited")
	ErrNoPendingInvitation = errors.New("no pending invitation")
	ErrNotFound            = errors.New("not found")
	ErrUpstream            = errors.New("upstream failure")
)
