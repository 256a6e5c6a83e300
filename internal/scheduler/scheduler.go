// Package scheduler runs the periodic maintenance jobs: the daily retention
// sweep over stored files and the hourly purge of downloaded label archives.
package scheduler

import (
	"context"
	"time"

	"inventario-go/internal/service"
	"inventario-go/pkg/log"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a seconds-granularity cron with the two maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// New builds a stopped scheduler; timeout bounds each job run.
func New(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		timeout: timeout,
	}
}

// AddRetentionSweep schedules the daily expired-file sweep.
func (s *Scheduler) AddRetentionSweep(spec string, storage service.StorageService) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		result := storage.SweepExpired(ctx)
		if len(result.Errors) > 0 {
			log.Warnf("retention sweep completed with %d errors", len(result.Errors))
		}
	})
	return err
}

// AddBatchPurge schedules the purge of label archives past their download
// grace window.
func (s *Scheduler) AddBatchPurge(spec string, labels service.LabelService) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		labels.PurgeDownloadedBatches(ctx)
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}
