package services

import (
	"context"
	"time"

	"github.com/ShaharSGA/Project/pkg/logger"
	"github.com/robfig/cron/v3"
)

const (
	DefaultLabAgingCron = "@every 1h"
	labAgingRunTimeout  = time.Minute
)

// LabScheduler runs lab aging on a cron schedule.
type LabScheduler struct {
	lab     *LabService
	spec    string
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewLabScheduler(lab *LabService, spec string) *LabScheduler {
	if spec == "" {
		spec = DefaultLabAgingCron
	}
	return &LabScheduler{lab: lab, spec: spec}
}

func (s *LabScheduler) Start() error {
	s.cron = cron.New()

	entryID, err := s.cron.AddFunc(s.spec, s.RunOnce)
	if err != nil {
		return err
	}
	s.entryID = entryID

	s.cron.Start()
	logger.Infof("[LabScheduler] Scheduled lab aging (cron: %s, threshold: %d days)", s.spec, s.lab.AgingDays())
	return nil
}

// Stop waits for a running job to finish.
func (s *LabScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *LabScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), labAgingRunTimeout)
	defer cancel()

	if _, err := s.lab.AutoAge(ctx); err != nil {
		logger.Warnf("[LabScheduler] aging run failed: %v", err)
	}
}
