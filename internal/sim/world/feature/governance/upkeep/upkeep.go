// Package upkeep charges factions for the land they hold.
package upkeep

import (
	"log"
	"time"

	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/kernel/model"
)

type Outcome string

const (
	NotDue    Outcome = "NOT_DUE"
	Paid      Outcome = "PAID"
	PastDue   Outcome = "PAST_DUE"
	Forfeited Outcome = "FORFEITED"
)

// AmountOwed sums costs[min(i, len-1)] over claims 0..claims-1.
func AmountOwed(costs []int, claims int) int {
	if len(costs) == 0 || claims <= 0 {
		return 0
	}
	total := 0
	for i := 0; i < claims; i++ {
		total += costs[min(i, len(costs)-1)]
	}
	return total
}

// NextDue advances a due time by one period. A zero due time schedules the
// first payment one period from now; a due time that would still lie in the
// past is pulled forward to now+period.
func NextDue(now, due time.Time, period time.Duration) time.Time {
	if period <= 0 {
		return due
	}
	if due.IsZero() {
		return now.Add(period)
	}
	next := due.Add(period)
	if !next.After(now) {
		return now.Add(period)
	}
	return next
}

type Config struct {
	Period      time.Duration
	GracePeriod time.Duration
	Item        string
	Costs       []int
}

type Territory interface {
	GetAllTaxableClaimsBy(factionID string) []*model.Cell
	Headquarters(factionID string) *model.Cell
	SetHeadquarters(cellID, factionID string) error
	MostExposedClaim(factionID string) *model.Cell
	SafestClaim(factionID string) *model.Cell
	Unclaim(cellIDs ...string) error
}

type Factions interface {
	SetUpkeepState(factionID string, next time.Time, pastDue bool) error
}

// Containers withdraws all-or-nothing from a host container.
type Containers interface {
	Withdraw(id model.EntityID, item string, n int) bool
}

type Structures interface {
	Destroy(id model.EntityID)
}

type Collector struct {
	Config     Config
	Territory  Territory
	Factions   Factions
	Containers Containers
	Structures Structures
	Sink       events.Sink
	Logger     *log.Logger
}

type Result struct {
	Outcome   Outcome
	Amount    int
	Forfeited string // cell id
}

// Collect runs one upkeep attempt for f. The amount is taken from the
// container behind the faction's headquarters claim structure.
func (c *Collector) Collect(f *model.Faction, now time.Time) (Result, error) {
	due := f.NextUpkeepPaymentTime
	if due.IsZero() {
		return Result{Outcome: NotDue}, c.Factions.SetUpkeepState(f.ID, NextDue(now, due, c.Config.Period), false)
	}
	if now.Before(due) {
		return Result{Outcome: NotDue}, nil
	}

	if err := c.ensureHeadquarters(f); err != nil {
		return Result{}, err
	}
	claims := c.Territory.GetAllTaxableClaimsBy(f.ID)
	owed := AmountOwed(c.Config.Costs, len(claims))
	if owed == 0 || c.withdraw(f, owed) {
		if err := c.Factions.SetUpkeepState(f.ID, NextDue(now, due, c.Config.Period), false); err != nil {
			return Result{}, err
		}
		res := Result{Outcome: Paid, Amount: owed}
		c.publish(f, res)
		return res, nil
	}

	if now.Sub(due) <= c.Config.GracePeriod {
		if err := c.Factions.SetUpkeepState(f.ID, due, true); err != nil {
			return Result{}, err
		}
		res := Result{Outcome: PastDue, Amount: owed}
		c.publish(f, res)
		return res, nil
	}

	cell := c.Territory.MostExposedClaim(f.ID)
	if cell == nil {
		return Result{Outcome: PastDue, Amount: owed}, c.Factions.SetUpkeepState(f.ID, due, true)
	}
	cellID, structure := cell.ID, cell.ClaimStructure
	if structure != 0 && c.Structures != nil {
		c.Structures.Destroy(structure)
	}
	if err := c.Territory.Unclaim(cellID); err != nil {
		return Result{}, err
	}
	// One forfeiture per period: the next one waits for the following due time.
	if err := c.Factions.SetUpkeepState(f.ID, NextDue(now, due, c.Config.Period), true); err != nil {
		return Result{}, err
	}
	if c.Logger != nil {
		c.Logger.Printf("[upkeep] %s forfeited %s: owed %d %s", f.ID, cellID, owed, c.Config.Item)
	}
	res := Result{Outcome: Forfeited, Amount: owed, Forfeited: cellID}
	c.publish(f, res)
	return res, nil
}

// ensureHeadquarters moves the headquarters to the faction's deepest claim
// when the old one was lost, so payment has a pool to draw from.
func (c *Collector) ensureHeadquarters(f *model.Faction) error {
	if c.Territory.Headquarters(f.ID) != nil {
		return nil
	}
	cell := c.Territory.SafestClaim(f.ID)
	if cell == nil {
		return nil
	}
	if err := c.Territory.SetHeadquarters(cell.ID, f.ID); err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.Printf("[upkeep] %s had no headquarters, moved it to %s", f.ID, cell.ID)
	}
	return nil
}

func (c *Collector) withdraw(f *model.Faction, n int) bool {
	hq := c.Territory.Headquarters(f.ID)
	if hq == nil || hq.ClaimStructure == 0 || c.Containers == nil {
		return false
	}
	return c.Containers.Withdraw(hq.ClaimStructure, c.Config.Item, n)
}

func (c *Collector) publish(f *model.Faction, res Result) {
	if c.Sink == nil {
		return
	}
	d := map[string]any{"outcome": string(res.Outcome), "amount": res.Amount}
	c.Sink.Publish(events.Event{Kind: events.UpkeepCollected, FactionID: f.ID, CellID: res.Forfeited, Details: d})
}
