package events

import (
	"encoding/json"
	"errors"
	"testing"
)

type recordingPersister struct {
	got  []TurnEvent
	fail bool
}

func (p *recordingPersister) Append(e TurnEvent) error {
	if p.fail {
		return errors.New("disk full")
	}
	p.got = append(p.got, e)
	return nil
}

func TestRecordFillsIdentity(t *testing.T) {
	el := NewEventLog("", nil)
	if el.SessionID() == "" {
		t.Fatalf("Expected a generated session id")
	}

	e, err := el.Record(EventTypeRodsSet, 3, ActorOperator, map[string]any{"from": 0.5, "to": 0.8})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if e.ID == "" || e.SessionID != el.SessionID() || e.Turn != 3 {
		t.Errorf("Unexpected event: %+v", e)
	}
	if e.Float("to") != 0.8 {
		t.Errorf("Expected payload to=0.8, got %v", e.Float("to"))
	}
}

func TestPersisterWriteThrough(t *testing.T) {
	p := &recordingPersister{}
	el := NewEventLog("s1", p)

	el.Record(EventTypeTurnAdvanced, 1, ActorSystem, nil)
	el.Record(EventTypeScram, 1, ActorSafety, nil)

	if len(p.got) != 2 || p.got[1].Type != EventTypeScram {
		t.Errorf("Expected both events persisted in order, got %+v", p.got)
	}
}

func TestPersisterFailureKeepsEventInMemory(t *testing.T) {
	el := NewEventLog("s1", &recordingPersister{fail: true})
	if _, err := el.Record(EventTypeWarning, 1, ActorSystem, nil); err == nil {
		t.Errorf("Expected persister error to surface")
	}
	if el.Len() != 1 {
		t.Errorf("Expected event kept in memory, got %d", el.Len())
	}
}

func TestQueries(t *testing.T) {
	el := NewEventLog("s1", nil)
	el.Record(EventTypeTurnAdvanced, 1, ActorSystem, nil)
	el.Record(EventTypeRandomEvent, 1, ActorSystem, map[string]any{"kind": "coolant_leak"})
	el.Record(EventTypeTurnAdvanced, 2, ActorSystem, nil)

	if got := el.GetByType(EventTypeTurnAdvanced); len(got) != 2 {
		t.Errorf("Expected 2 turn events, got %d", len(got))
	}
	if got := el.GetByTurn(1); len(got) != 2 {
		t.Errorf("Expected 2 events on turn 1, got %d", len(got))
	}
	if got := el.Since(2); len(got) != 1 || got[0].Turn != 2 {
		t.Errorf("Expected the last event from offset 2, got %+v", got)
	}
	if got := el.Since(10); got != nil {
		t.Errorf("Expected nothing past the end, got %+v", got)
	}

	replay := el.Replay()
	replay[0].Turn = 99
	if el.Replay()[0].Turn == 99 {
		t.Errorf("Expected Replay to return a copy")
	}
}

func TestFloatAfterJSON(t *testing.T) {
	el := NewEventLog("s1", nil)
	e, _ := el.Record(EventTypeTurnAdvanced, 4, ActorSystem, map[string]any{"temperature": 412, "weather": "Storm"})

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back TurnEvent
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Float("temperature") != 412 || back.Text("weather") != "Storm" {
		t.Errorf("Unexpected payload after JSON: %v", back.Payload)
	}
}
