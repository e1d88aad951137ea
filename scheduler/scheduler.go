package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"stock_price_updater/market"

	"github.com/go-co-op/gocron"
)

// Job tags, one per recurring trigger range.
const (
	TagTaiwanMarket        = "tw_market_job"
	TagTaiwanMarketClosing = "tw_market_closing_job"
	TagUSMarketEvening     = "us_market_evening_job"
	TagUSMarketMorning     = "us_market_morning_job"
)

// RefreshScheduler owns the recurring triggers that fire refresh cycles. It
// knows nothing about what the supplied callback does; a callback failure
// never stops later triggers from firing.
type RefreshScheduler struct {
	cron    *gocron.Scheduler
	mu      sync.Mutex
	started bool
}

// NewRefreshScheduler creates a scheduler whose cron expressions are
// evaluated in the given location.
func NewRefreshScheduler(loc *time.Location) *RefreshScheduler {
	return &RefreshScheduler{cron: gocron.NewScheduler(loc)}
}

// ScheduleTaiwanJobs registers the Taiwan-session triggers: every five
// minutes through the trading window, plus a short tail right after the
// close to pick up settlement prices.
func (s *RefreshScheduler) ScheduleTaiwanJobs(job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.Cron("*/5 9-13 * * 1-5").Tag(TagTaiwanMarket).Do(job); err != nil {
		return fmt.Errorf("register %s: %w", TagTaiwanMarket, err)
	}
	if _, err := s.cron.Cron("30-35/5 13 * * 1-5").Tag(TagTaiwanMarketClosing).Do(job); err != nil {
		return fmt.Errorf("register %s: %w", TagTaiwanMarketClosing, err)
	}
	log.Println("Scheduled Taiwan market jobs")
	return nil
}

// ScheduleUSJobs registers triggers for the US session window that was in
// force at schedule-setup time; the window is not re-evaluated per tick. A
// cross-midnight window becomes an evening range (start hour through 23:xx,
// Mon-Fri) and a morning range (00:xx through the end hour, Tue-Sat since
// the session crosses into the next day). Hours outside the expected
// evening/morning bands skip the corresponding range without error; values
// that are not valid clock times are rejected synchronously.
func (s *RefreshScheduler) ScheduleUSJobs(job func(), window market.SessionWindow) error {
	if err := validateWindow(window); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if window.Start.Hour >= 21 {
		expr := fmt.Sprintf("%d/5 %d-23 * * 1-5", window.Start.Minute, window.Start.Hour)
		if _, err := s.cron.Cron(expr).Tag(TagUSMarketEvening).Do(job); err != nil {
			return fmt.Errorf("register %s: %w", TagUSMarketEvening, err)
		}
	}
	if window.End.Hour <= 5 {
		expr := fmt.Sprintf("*/5 0-%d * * 2-6", window.End.Hour)
		if _, err := s.cron.Cron(expr).Tag(TagUSMarketMorning).Do(job); err != nil {
			return fmt.Errorf("register %s: %w", TagUSMarketMorning, err)
		}
	}
	log.Printf("Scheduled US market jobs for window %s-%s", window.Start, window.End)
	return nil
}

func validateWindow(w market.SessionWindow) error {
	for _, t := range []market.TimeOfDay{w.Start, w.End} {
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return fmt.Errorf("invalid session window time %02d:%02d", t.Hour, t.Minute)
		}
	}
	return nil
}

// JobCount returns the number of registered triggers.
func (s *RefreshScheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cron.Jobs())
}

// Start begins dispatching triggers in the background.
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.StartAsync()
	log.Println("Refresh scheduler started")
}

// Shutdown stops dispatching triggers. Safe to call more than once; returns
// immediately when nothing was started.
func (s *RefreshScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.cron.Stop()
	log.Println("Refresh scheduler stopped")
}
