package factions

import (
	"slices"

	"outpost.gg/internal/sim/world/kernel/model"
)

// Export returns deep copies of all factions, sorted by id.
func (s *Store) Export() []model.Faction {
	all := s.GetAll()
	out := make([]model.Faction, 0, len(all))
	for _, f := range all {
		out = append(out, *f.Clone())
	}
	return out
}

// Load replaces the store contents without publishing events. Records are
// repaired in place: ids are normalized, duplicates dropped, the owner is
// forced into the member list, managers narrowed to members, invites made
// disjoint from members, and users already seen in an earlier faction
// removed. Factions left without members are dropped. It returns the number
// of repairs.
func (s *Store) Load(recs []model.Faction) int {
	s.byID = map[string]*model.Faction{}
	s.byUser = map[string]string{}
	repaired := 0
	for _, r := range recs {
		f := r.Clone()
		id := NormalizeID(f.ID)
		if id != f.ID {
			repaired++
			f.ID = id
		}
		if id == "" || s.byID[id] != nil {
			s.logf("[factions] load: dropping duplicate or empty id %q", r.ID)
			repaired++
			continue
		}
		if f.OwnerID != "" && !f.HasMember(f.OwnerID) {
			f.MemberIDs = append([]string{f.OwnerID}, f.MemberIDs...)
			repaired++
		}
		var members []string
		for _, m := range f.MemberIDs {
			if m == "" || s.byUser[m] != "" || slices.Contains(members, m) {
				repaired++
				continue
			}
			members = append(members, m)
		}
		f.MemberIDs = members
		if len(members) == 0 {
			s.logf("[factions] load: %s has no members, dropped", id)
			repaired++
			continue
		}
		if !f.HasMember(f.OwnerID) {
			f.OwnerID = SelectNextOwner(members)
			repaired++
		}
		n := len(f.ManagerIDs) + len(f.InviteIDs)
		f.ManagerIDs = slices.DeleteFunc(f.ManagerIDs, func(m string) bool { return !f.HasMember(m) || m == f.OwnerID })
		f.InviteIDs = slices.DeleteFunc(f.InviteIDs, func(m string) bool { return f.HasMember(m) })
		repaired += n - len(f.ManagerIDs) - len(f.InviteIDs)
		s.byID[id] = f
		for _, m := range members {
			s.byUser[m] = id
		}
	}
	return repaired
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
