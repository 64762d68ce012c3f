// Package scheduler runs the ingestion pipeline on a fixed interval.
// It is a thin collaborator: the pipeline's store lock, not the
// scheduler, is what prevents overlapping cycles from clobbering each
// other.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newssift/newssift/app/pipeline"
	"github.com/robfig/cron/v3"
)

// CycleRunner is the part of the pipeline the scheduler needs.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.BatchReport, error)
}

type Scheduler struct {
	cron   *cron.Cron
	runner CycleRunner
}

// New schedules an ingestion cycle every interval.
func New(interval time.Duration, runner CycleRunner) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{cron: c, runner: runner}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("failed to schedule ingestion cycle: %w", err)
	}

	return s, nil
}

// Start begins periodic execution and kicks off an immediate first
// cycle so a fresh deployment has content before the first tick.
func (s *Scheduler) Start() {
	s.cron.Start()
	go s.runOnce()
}

// Stop halts scheduling and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runOnce() {
	report, err := s.runner.RunCycle(context.Background())
	if err != nil {
		slog.Error("Scheduled ingestion cycle failed", "error", err)
		return
	}

	slog.Info("Scheduled ingestion cycle finished",
		"new", report.NewCount,
		"duplicates", report.DuplicateCount,
		"spam", report.SpamCount,
		"sources", len(report.PerSource),
		"duration", report.Duration)
}
