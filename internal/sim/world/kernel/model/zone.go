package model

import "time"

type ZoneType string

const (
	ZoneMonument   ZoneType = "MONUMENT"
	ZoneDebris     ZoneType = "DEBRIS"
	ZoneSupplyDrop ZoneType = "SUPPLY_DROP"
	ZoneRaid       ZoneType = "RAID"
	ZoneCargoShip  ZoneType = "CARGO_SHIP"
)

var ZoneTypes = []ZoneType{ZoneMonument, ZoneDebris, ZoneSupplyDrop, ZoneRaid, ZoneCargoShip}

func (t ZoneType) Valid() bool {
	for _, z := range ZoneTypes {
		if z == t {
			return true
		}
	}
	return false
}

// Zone is a transient circular region tied to a host entity.
type Zone struct {
	ID      string
	Type    ZoneType
	Name    string
	Owner   EntityID
	Center  Vec3
	Radius  float64
	Expires time.Time // zero: lives until the owner goes away
}

func (z *Zone) Contains(pos Vec3) bool {
	return z != nil && z.Center.DistanceXZ(pos) <= z.Radius
}

func (z *Zone) Expired(now time.Time) bool {
	return z != nil && !z.Expires.IsZero() && !now.Before(z.Expires)
}
