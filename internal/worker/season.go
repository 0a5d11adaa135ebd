package worker

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/observability/metrics"
)

// Broadcaster pushes an announcement to every connected device regardless of
// family namespace
type Broadcaster interface {
	Broadcast(kind, ref string)
}

// SeasonWorker watches the calendar and announces each quest day as it
// opens, so devices left open overnight refresh without polling
type SeasonWorker struct {
	catalog     *catalog.Catalog
	broadcaster Broadcaster
	logger      *slog.Logger
	interval    time.Duration
	seasonStart time.Time

	mu           sync.Mutex
	announcedDay int
}

// NewSeasonWorker creates a season worker. seasonStart is midnight before
// quest day 1.
func NewSeasonWorker(cat *catalog.Catalog, broadcaster Broadcaster, logger *slog.Logger, interval time.Duration, seasonStart time.Time) *SeasonWorker {
	return &SeasonWorker{
		catalog:     cat,
		broadcaster: broadcaster,
		logger:      logger,
		interval:    interval,
		seasonStart: seasonStart,
	}
}

// CurrentDay returns the quest day open at the given time, or 0 before the
// season starts. Days are counted on calendar dates in the season's zone so
// the rollover stays at local midnight across DST transitions.
func (w *SeasonWorker) CurrentDay(now time.Time) int {
	start := midnight(w.seasonStart)
	today := midnight(now.In(w.seasonStart.Location()))
	if today.Before(start) {
		return 0
	}
	day := 1
	for d := start.AddDate(0, 0, 1); !d.After(today) && day < w.catalog.TotalDays(); d = d.AddDate(0, 0, 1) {
		day++
	}
	return day
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Start begins the season worker loop
func (w *SeasonWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("season worker started",
		slog.Duration("interval", w.interval),
		slog.Time("season_start", w.seasonStart),
	)
	w.check(time.Now())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("season worker stopped")
			return
		case <-ticker.C:
			w.check(time.Now())
		}
	}
}

// check announces any day that opened since the last tick
func (w *SeasonWorker) check(now time.Time) {
	day := w.CurrentDay(now)
	metrics.SetSeasonDay(day)

	w.mu.Lock()
	last := w.announcedDay
	if day > last {
		w.announcedDay = day
	}
	w.mu.Unlock()
	if day <= last {
		return
	}

	for d := last + 1; d <= day; d++ {
		if _, ok := w.catalog.Day(d); !ok {
			continue
		}
		if w.broadcaster != nil {
			w.broadcaster.Broadcast("day_opened", strconv.Itoa(d))
		}
		w.logger.Info("quest day opened", slog.Int("day", d))
	}
}
