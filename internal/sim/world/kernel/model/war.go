package model

import "time"

type WarEndReason string

const (
	WarEndTreaty             WarEndReason = "TREATY"
	WarEndAttackerEliminated WarEndReason = "ATTACKER_ELIMINATED"
	WarEndDefenderEliminated WarEndReason = "DEFENDER_ELIMINATED"
	WarEndAdminDenied        WarEndReason = "ADMIN_DENIED"
	WarEndDefenderDenied     WarEndReason = "DEFENDER_DENIED"
)

type War struct {
	ID          string
	AttackerID  string
	DefenderID  string
	DeclarerID  string
	CassusBelli string

	StartTime time.Time
	EndTime   time.Time // zero while the war has not ended
	EndReason WarEndReason

	AdminApproved    bool
	DefenderApproved bool

	AttackerPeaceOfferTime time.Time
	DefenderPeaceOfferTime time.Time
}

func (w *War) IsEnded() bool {
	return w != nil && !w.EndTime.IsZero()
}

func (w *War) IsActive() bool {
	return w != nil && w.EndTime.IsZero() && w.AdminApproved && w.DefenderApproved
}

func (w *War) IsPending() bool {
	return w != nil && w.EndTime.IsZero() && !(w.AdminApproved && w.DefenderApproved)
}

// Involves reports whether factionID is either side of the war.
func (w *War) Involves(factionID string) bool {
	return w != nil && factionID != "" && (w.AttackerID == factionID || w.DefenderID == factionID)
}

// IsBetween matches the unordered pair (a, b).
func (w *War) IsBetween(a, b string) bool {
	if w == nil || a == "" || b == "" {
		return false
	}
	return (w.AttackerID == a && w.DefenderID == b) || (w.AttackerID == b && w.DefenderID == a)
}

func (w *War) Opponent(factionID string) string {
	switch factionID {
	case w.AttackerID:
		return w.DefenderID
	case w.DefenderID:
		return w.AttackerID
	}
	return ""
}
