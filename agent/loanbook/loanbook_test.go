package loanbook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryBookSaveAndLookup(t *testing.T) {
	book := NewMemoryBook()
	ctx := context.Background()

	first := &Record{
		Name:      "Priya Sharma",
		PAN:       "ABCDE1234F",
		Amount:    200000,
		Status:    "APPROVED",
		CreatedAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	if err := book.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := &Record{
		Name:      "priya sharma",
		PAN:       "ABCDE1234F",
		Amount:    350000,
		Status:    "REJECTED",
		CreatedAt: time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC),
	}
	if err := book.Save(ctx, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := book.MostRecentByName(ctx, "Priya Sharma")
	if err != nil {
		t.Fatalf("MostRecentByName: %v", err)
	}
	if rec.Amount != 350000 || rec.Status != "REJECTED" {
		t.Errorf("got %+v, want the most recent record", rec)
	}
}

func TestMemoryBookConcurrentAccess(t *testing.T) {
	book := NewMemoryBook()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &Record{
				Name:   "Priya Sharma",
				PAN:    "ABCDE1234F",
				Amount: int64(100000 + n),
				Status: "APPROVED",
			}
			if err := book.Save(ctx, rec); err != nil {
				t.Errorf("Save: %v", err)
			}
			if _, err := book.MostRecentByName(ctx, "Priya Sharma"); err != nil {
				t.Errorf("MostRecentByName: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(book.records) != 8 {
		t.Fatalf("records = %d, want 8", len(book.records))
	}
}

func TestMemoryBookNoHistory(t *testing.T) {
	book := NewMemoryBook()
	if _, err := book.MostRecentByName(context.Background(), "Nobody"); !errors.Is(err, ErrNoHistory) {
		t.Errorf("want ErrNoHistory, got %v", err)
	}
	if _, err := book.MostRecentByName(context.Background(), ""); !errors.Is(err, ErrNoHistory) {
		t.Errorf("empty name: want ErrNoHistory, got %v", err)
	}
}

func TestMemoryBookCopiesOnRead(t *testing.T) {
	book := NewMemoryBook()
	ctx := context.Background()
	_ = book.Save(ctx, &Record{Name: "Arun", PAN: "FGHIJ5678K", Amount: 100000, Status: "APPROVED"})

	rec, err := book.MostRecentByName(ctx, "Arun")
	if err != nil {
		t.Fatalf("MostRecentByName: %v", err)
	}
	rec.Amount = 1

	again, err := book.MostRecentByName(ctx, "Arun")
	if err != nil {
		t.Fatalf("MostRecentByName: %v", err)
	}
	if again.Amount != 100000 {
		t.Error("mutating a returned record must not change the stored one")
	}
}
