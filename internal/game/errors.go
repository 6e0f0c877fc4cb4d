package game

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyCaptured        = errors.New("task already captured")
	ErrStaleTask              = errors.New("task is no longer open")
	ErrVoteRejected           = errors.New("vote rejected")
	ErrTransportDisconnected  = errors.New("transport disconnected")
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrOnCooldown             = errors.New("task is on cooldown")
	ErrUnknownPoint           = errors.New("unknown point")
	ErrUnknownTeam            = errors.New("unknown team")
	ErrInvalidBombDuration    = errors.New("invalid bomb duration")
)

// StaleTaskError is returned when a decision names a task other than the open one.
type StaleTaskError struct {
	Want string // currently open task, empty when none
	Got  string
}

func (e *StaleTaskError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("%s: %q decided while no task is open", ErrStaleTask, e.Got)
	}
	return fmt.Sprintf("%s: %q decided while %q is open", ErrStaleTask, e.Got, e.Want)
}

func (e *StaleTaskError) Unwrap() error { return ErrStaleTask }
