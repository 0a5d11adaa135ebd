package worker

import (
	"testing"
	"time"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/infrastructure/logger"
)

type memBroadcaster struct {
	events []string
}

func (b *memBroadcaster) Broadcast(kind, ref string) {
	b.events = append(b.events, kind+":"+ref)
}

func seasonCatalog() *catalog.Catalog {
	return catalog.New([]catalog.QuestDay{
		{Day: 1, Code: "c1"},
		{Day: 2, Code: "c2"},
		{Day: 3, Code: "c3"},
	}, nil, nil)
}

func TestCurrentDay(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	w := NewSeasonWorker(seasonCatalog(), nil, logger.NewLogger("error"), time.Minute, start)

	if d := w.CurrentDay(start.Add(-time.Hour)); d != 0 {
		t.Fatalf("expected day 0 before the season, got %d", d)
	}
	if d := w.CurrentDay(start.Add(time.Hour)); d != 1 {
		t.Fatalf("expected day 1, got %d", d)
	}
	if d := w.CurrentDay(start.Add(25 * time.Hour)); d != 2 {
		t.Fatalf("expected day 2, got %d", d)
	}
	// Past the catalog the season holds at its final day
	if d := w.CurrentDay(start.Add(40 * 24 * time.Hour)); d != 3 {
		t.Fatalf("expected day 3 after season end, got %d", d)
	}
}

func TestCurrentDayAcrossDSTTransition(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	days := make([]catalog.QuestDay, 15)
	for i := range days {
		days[i] = catalog.QuestDay{Day: i + 1, Code: "c"}
	}
	cat := catalog.New(days, nil, nil)

	// Summer time in Norway ends Oct 25 2026, so the season gains an hour
	start := time.Date(2026, 10, 20, 0, 0, 0, 0, oslo)
	w := NewSeasonWorker(cat, nil, logger.NewLogger("error"), time.Minute, start)

	// Oct 31 is the 12th calendar day; the extra hour must not roll it early
	if d := w.CurrentDay(time.Date(2026, 10, 31, 23, 30, 0, 0, oslo)); d != 12 {
		t.Fatalf("expected day 12 before midnight, got %d", d)
	}
	if d := w.CurrentDay(time.Date(2026, 11, 1, 0, 30, 0, 0, oslo)); d != 13 {
		t.Fatalf("expected day 13 after midnight, got %d", d)
	}
}

func TestCheckAnnouncesNewDays(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	b := &memBroadcaster{}
	w := NewSeasonWorker(seasonCatalog(), b, logger.NewLogger("error"), time.Minute, start)

	w.check(start.Add(time.Hour))
	if len(b.events) != 1 || b.events[0] != "day_opened:1" {
		t.Fatalf("expected day 1 announcement, got %v", b.events)
	}

	// Same day again: no repeat announcement
	w.check(start.Add(2 * time.Hour))
	if len(b.events) != 1 {
		t.Fatalf("day must be announced once, got %v", b.events)
	}

	// Skipped ticks catch up on every missed day
	w.check(start.Add(49 * time.Hour))
	if len(b.events) != 3 {
		t.Fatalf("expected catch-up announcements for days 2 and 3, got %v", b.events)
	}
}
