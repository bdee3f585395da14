package engine

import "errors"

// Rejected commands. None of these change reactor state or consume a turn.
var (
	ErrScrammed          = errors.New("reactor is scrammed: type 'reset' to restart or 'q' to quit")
	ErrMeltdown          = errors.New("core has melted down: type 'new' to start again or 'q' to quit")
	ErrNotScrammed       = errors.New("reset is only available after a SCRAM")
	ErrSubsystemDisabled = errors.New("subsystem is disabled in this session")
	ErrECCSCooldown      = errors.New("ECCS is recharging")
	ErrECCSDepleted      = errors.New("ECCS has no charges left")
	ErrDieselEmpty       = errors.New("diesel tank is empty")
	ErrNotEngineCommand  = errors.New("command is handled by the operator console")
	ErrDifficultyChanged = errors.New("session was saved under a different difficulty")
)
