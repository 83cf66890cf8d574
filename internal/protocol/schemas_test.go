package protocol_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"outpost.gg/internal/protocol"
)

func TestSchemas_ValidateEventMsg(t *testing.T) {
	raw, err := os.ReadFile("event.schema.json")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	s, err := jsonschema.CompileString("event.schema.json", string(raw))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	msg := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Cursor:          7,
		Event: protocol.Event{
			"kind":       "CELL_CHANGED",
			"time":       "2026-01-02T03:04:05Z",
			"cell_id":    "B4",
			"faction_id": "RUST",
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var bad any
	_ = json.Unmarshal([]byte(`{"type":"EVENT","protocol_version":"1.0","cursor":0,"event":{"kind":"NOPE","time":"x"}}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("expected unknown kind and zero cursor to be rejected")
	}
}
