package model

import "time"

// Player is the transient per-session state the rules engine consults.
type Player struct {
	ID            string
	Position      Vec3
	Online        bool
	PvPEnabled    bool
	PvPToggleTime time.Time
}
