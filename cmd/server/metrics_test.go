package main

import (
	"strings"
	"testing"

	"outpost.gg/internal/sim/world"
)

func TestWriteMetrics(t *testing.T) {
	var b strings.Builder
	writeMetrics(&b, "w1", world.WorldMetrics{Tick: 42, ActiveWars: 2, StepMS: 1.5}, 3, nil)
	out := b.String()
	for _, want := range []string{
		`outpost_world_tick{world="w1"} 42`,
		`outpost_wars{world="w1",state="active"} 2`,
		`outpost_step_ms{world="w1"} 1.500`,
		`outpost_dropped_total{world="w1",sink="event_log"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `sink="index"`) {
		t.Fatalf("index line without an index")
	}
}
