package journal

import (
	"testing"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

func TestLogNewestFirstAndBounded(t *testing.T) {
	l := NewLog(3, nil)
	for i := 0; i < 5; i++ {
		l.Logf(model.SeverityInfo, "entry %d", i)
	}
	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "entry 4" || entries[2].Message != "entry 2" {
		t.Fatalf("unexpected order: %v", entries)
	}
}

func TestHistoryIDsSortNewestLast(t *testing.T) {
	h := NewHistory(10)
	first := h.Add("Acme North", "FBA Jan", "AVP1")
	second := h.Add("Acme North", "FBA Jan", "BOS3", "MDW4")
	if first.ID >= second.ID {
		t.Fatalf("ids must be monotonic: %s then %s", first.ID, second.ID)
	}
	if second.Found != "BOS3, MDW4" {
		t.Fatalf("found join: %q", second.Found)
	}
	entries := h.Entries()
	if len(entries) != 2 || entries[0].ID != second.ID {
		t.Fatalf("expected newest first, got %v", entries)
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(2)
	h.Add("a", "d1")
	h.Add("a", "d2")
	h.Add("a", "d3")
	entries := h.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Draft != "d3" || entries[1].Draft != "d2" {
		t.Fatalf("unexpected retention: %v", entries)
	}
}
