package domain

import "time"

// GameSettings is the config document the core consumes. It is loaded once per
// process and treated as read-only by the game logic.
type GameSettings struct {
	MaxPlayers    int
	Questions     int
	Countdown     time.Duration
	TimeLimit     time.Duration
	FeedbackDwell time.Duration
	PodiumDwell   time.Duration
	PollInterval  time.Duration
	ActivityCode  *string // nil when registration is not gated
}

// DefaultSettings mirrors the seeded gameSettings document.
func DefaultSettings() GameSettings {
	return GameSettings{
		MaxPlayers:    3,
		Questions:     5,
		Countdown:     5 * time.Second,
		TimeLimit:     20 * time.Second,
		FeedbackDwell: 10 * time.Second,
		PodiumDwell:   10 * time.Second,
		PollInterval:  5 * time.Second,
	}
}
