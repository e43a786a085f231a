package core

import "time"

type (
	// SessionInfo describes an editing session held by the registry.
	SessionInfo struct {
		ID        string    `json:"id"`
		Width     int       `json:"width"`
		Height    int       `json:"height"`
		CreatedAt time.Time `json:"createdAt"`
		LastSeen  time.Time `json:"lastSeen"`
	}
)
