package diplomacy

import (
	"time"

	"github.com/google/uuid"

	"outpost.gg/internal/sim/world/kernel/model"
)

func (e *Engine) Export() []model.War {
	all := e.All()
	out := make([]model.War, 0, len(all))
	for _, w := range all {
		out = append(out, *w)
	}
	return out
}

// Load replaces the war history without publishing. Records without an id get
// a fresh one; a second open war for the same pair is closed by treaty at now.
func (e *Engine) Load(recs []model.War, now time.Time) int {
	e.wars = map[string]*model.War{}
	e.open = map[pairKey]*model.War{}
	repaired := 0
	for _, r := range recs {
		w := r
		if w.ID == "" || e.wars[w.ID] != nil {
			w.ID = uuid.NewString()
			repaired++
		}
		if !w.IsEnded() {
			if prev := e.openWarBetween(w.AttackerID, w.DefenderID); prev != nil {
				if e.logger != nil {
					e.logger.Printf("[diplomacy] load: war %s duplicates open war %s, closing", w.ID, prev.ID)
				}
				w.EndTime = now
				w.EndReason = model.WarEndTreaty
				repaired++
			}
		}
		e.wars[w.ID] = &w
		if !w.IsEnded() {
			e.open[pairOf(w.AttackerID, w.DefenderID)] = &w
		}
	}
	return repaired
}
