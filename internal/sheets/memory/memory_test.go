package memory

import (
	"context"
	"testing"
	"time"

	"housefin/internal/sheets"
)

func TestMemoryStoreAppend(t *testing.T) {
	s := New()
	row := sheets.Row{
		ID:          "c-1",
		Date:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Username:    "alice",
		Description: "rice",
		Amount:      "42.50",
	}

	ref, err := s.AppendContribution(context.Background(), row)
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	row2 := row
	row2.ID = "c-2"
	ref, err = s.AppendContribution(context.Background(), row2)
	if err != nil || ref != "mem:3" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	if got := len(s.Rows()); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
}

func TestMemoryStoreAppendIsIdempotent(t *testing.T) {
	s := New()
	row := sheets.Row{ID: "c-1", Username: "alice", Amount: "1.00"}

	first, err := s.AppendContribution(context.Background(), row)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	again, err := s.AppendContribution(context.Background(), row)
	if err != nil {
		t.Fatalf("append again: %v", err)
	}

	if first != again {
		t.Errorf("expected same reference, got %q and %q", first, again)
	}
	if got := len(s.Rows()); got != 1 {
		t.Errorf("expected 1 row, got %d", got)
	}
}

func TestMemoryStoreRejectsMissingID(t *testing.T) {
	if _, err := New().AppendContribution(context.Background(), sheets.Row{}); err == nil {
		t.Fatal("expected error for row without ID")
	}
}
