package core

import "errors"

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidTeam   = errors.New("invalid team")
	ErrEpisodeOver   = errors.New("episode is over, reset required")
)
