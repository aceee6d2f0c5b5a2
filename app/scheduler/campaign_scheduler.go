// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	businessflow "github.com/voximate/voximate/business_flow"
)

// CampaignScheduler periodically scans for scheduled campaigns whose launch
// time has passed and hands them to the dispatcher.
type CampaignScheduler struct {
	dispatchFlow businessflow.DispatchFlow
	logger       *log.Logger
	interval     time.Duration

	logFile *os.File
}

func NewCampaignScheduler(dispatchFlow businessflow.DispatchFlow, interval time.Duration) *CampaignScheduler {
	if interval <= 0 {
		interval = time.Minute
	}

	s := &CampaignScheduler{
		dispatchFlow: dispatchFlow,
		interval:     interval,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *CampaignScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				s.close()
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *CampaignScheduler) runOnce(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	launched, err := s.dispatchFlow.LaunchDueCampaigns(scanCtx)
	if err != nil {
		s.logger.Printf("scheduler: launch due campaigns failed: %v", err)
		return
	}
	if launched > 0 {
		s.logger.Printf("scheduler: launched %d scheduled campaigns", launched)
	}
}

func (s *CampaignScheduler) close() {
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}
