package model

type PinType string

const (
	PinArena PinType = "ARENA"
	PinHotel PinType = "HOTEL"
	PinMine  PinType = "MINE"
	PinShop  PinType = "SHOP"
	PinTown  PinType = "TOWN"
)

func (t PinType) Valid() bool {
	switch t {
	case PinArena, PinHotel, PinMine, PinShop, PinTown:
		return true
	}
	return false
}

type Pin struct {
	Name      string
	Type      PinType
	Position  Vec3
	CellID    string
	CreatorID string
}
