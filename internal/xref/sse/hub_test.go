package sse

import (
	"encoding/json"
	"testing"
)

func TestHub_PublishProgressOnlyReachesUser(t *testing.T) {
	hub := NewHub(nil)
	mine := &Client{ID: "c1", UserID: "u1", Events: make(chan Event, 4)}
	other := &Client{ID: "c2", UserID: "u2", Events: make(chan Event, 4)}
	hub.Register(mine)
	hub.Register(other)

	hub.PublishProgress("u1", EventImportProgress, Progress{BatchID: "imp_1", Stage: "resolving", Processed: 3, Total: 10})

	select {
	case ev := <-mine.Events:
		if ev.EventType != EventImportProgress {
			t.Fatalf("expected %s, got %s", EventImportProgress, ev.EventType)
		}
		var p Progress
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.BatchID != "imp_1" || p.Processed != 3 || p.Total != 10 {
			t.Errorf("unexpected payload %+v", p)
		}
	default:
		t.Fatal("expected an event for u1")
	}

	if len(other.Events) != 0 {
		t.Errorf("u2 should not receive u1 events")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{ID: "c1", UserID: "u1", Events: make(chan Event, 1)}
	hub.Register(c)

	hub.PublishProgress("u1", EventBOMProgress, Progress{ProjectID: "p1", Processed: 1, Total: 2})
	hub.PublishProgress("u1", EventBOMProgress, Progress{ProjectID: "p1", Processed: 2, Total: 2})

	if len(c.Events) != 1 {
		t.Errorf("expected 1 buffered event, got %d", len(c.Events))
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(nil)
	hub.Register(&Client{ID: "c1", UserID: "u1", Events: make(chan Event, 1)})
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	hub.Unregister("c1")
	hub.Unregister("c1")
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(" bom_progress , ", "proj-1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !f.Types[EventBOMProgress] || f.Types[EventImportProgress] || f.Subject != "proj-1" {
		t.Errorf("unexpected filter %+v", f)
	}

	if f, err := ParseFilter("", ""); err != nil || f.Types != nil {
		t.Errorf("expected an accept-all filter, got %+v, %v", f, err)
	}
	if _, err := ParseFilter("import_progress,nope", ""); err == nil {
		t.Error("expected an error for an unknown type")
	}
}

func TestHub_FilterBySubject(t *testing.T) {
	hub := NewHub(nil)
	batch := &Client{ID: "c1", UserID: "u1", Filter: Filter{Subject: "imp_1"}, Events: make(chan Event, 4)}
	bom := &Client{ID: "c2", UserID: "u1", Filter: Filter{Types: map[string]bool{EventBOMProgress: true}}, Events: make(chan Event, 4)}
	hub.Register(batch)
	hub.Register(bom)

	hub.PublishProgress("u1", EventImportProgress, Progress{BatchID: "imp_1", Stage: "done"})
	hub.PublishProgress("u1", EventImportProgress, Progress{BatchID: "imp_2", Stage: "done"})
	hub.PublishProgress("u1", EventBOMProgress, Progress{ProjectID: "p1", Stage: "submitted"})

	if len(batch.Events) != 1 {
		t.Fatalf("expected 1 event for the imp_1 subscription, got %d", len(batch.Events))
	}
	if ev := <-batch.Events; ev.Subject != "imp_1" {
		t.Errorf("expected subject imp_1, got %s", ev.Subject)
	}
	if len(bom.Events) != 1 {
		t.Fatalf("expected 1 bom event, got %d", len(bom.Events))
	}
	if ev := <-bom.Events; ev.EventType != EventBOMProgress || ev.Subject != "p1" {
		t.Errorf("unexpected event %+v", ev)
	}
}
