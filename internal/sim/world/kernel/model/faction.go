package model

import (
	"slices"
	"time"
)

type FactionRole string

const (
	RoleOwner   FactionRole = "OWNER"
	RoleManager FactionRole = "MANAGER"
	RoleMember  FactionRole = "MEMBER"
)

type Faction struct {
	ID         string
	OwnerID    string
	MemberIDs  []string
	ManagerIDs []string
	InviteIDs  []string

	TaxRate  float64 // 0..1
	TaxChest EntityID

	NextUpkeepPaymentTime time.Time
	IsUpkeepPastDue       bool

	IsBadlands         bool
	BadlandsToggleTime time.Time

	CreationTime time.Time
}

func (f *Faction) MemberCount() int {
	if f == nil {
		return 0
	}
	return len(f.MemberIDs)
}

func (f *Faction) HasMember(userID string) bool {
	return f != nil && slices.Contains(f.MemberIDs, userID)
}

func (f *Faction) HasManager(userID string) bool {
	return f != nil && slices.Contains(f.ManagerIDs, userID)
}

func (f *Faction) HasInvite(userID string) bool {
	return f != nil && slices.Contains(f.InviteIDs, userID)
}

// HasLeader reports whether userID is the owner or a manager.
func (f *Faction) HasLeader(userID string) bool {
	if f == nil || userID == "" {
		return false
	}
	return f.OwnerID == userID || f.HasManager(userID)
}

func (f *Faction) RoleOf(userID string) (FactionRole, bool) {
	switch {
	case f == nil || !f.HasMember(userID):
		return "", false
	case f.OwnerID == userID:
		return RoleOwner, true
	case f.HasManager(userID):
		return RoleManager, true
	default:
		return RoleMember, true
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (f *Faction) Clone() *Faction {
	if f == nil {
		return nil
	}
	c := *f
	c.MemberIDs = slices.Clone(f.MemberIDs)
	c.ManagerIDs = slices.Clone(f.ManagerIDs)
	c.InviteIDs = slices.Clone(f.InviteIDs)
	return &c
}
