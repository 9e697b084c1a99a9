package service

import (
	"context"
	"time"

	"newshub/internal/store"
	"newshub/internal/summarizer"
)

type StatusService struct {
	counts interface {
		Counts(ctx context.Context) (store.Counts, error)
	}
	ingest    *IngestService
	worker    interface{ Stats() summarizer.Stats }
	scheduler interface{ NextRuns() map[string]time.Time }
}

type SystemStatus struct {
	// 文章与订阅源统计
	store.Counts

	// summarizer 子进程
	Worker summarizer.Stats `json:"worker"`

	// 定时任务信息
	NextRuns   map[string]time.Time   `json:"next_runs"`
	LastCycles map[string]CycleReport `json:"last_cycles"`
}

func NewStatusService(counts interface {
	Counts(ctx context.Context) (store.Counts, error)
}, ingest *IngestService, worker interface{ Stats() summarizer.Stats }) *StatusService {
	return &StatusService{counts: counts, ingest: ingest, worker: worker}
}

// SetScheduler 设置调度器引用
func (s *StatusService) SetScheduler(scheduler interface{ NextRuns() map[string]time.Time }) {
	s.scheduler = scheduler
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	counts, err := s.counts.Counts(ctx)
	if err != nil {
		return nil, err
	}

	status := &SystemStatus{
		Counts:     counts,
		NextRuns:   map[string]time.Time{},
		LastCycles: map[string]CycleReport{},
	}
	if s.worker != nil {
		status.Worker = s.worker.Stats()
	}
	if s.ingest != nil {
		status.LastCycles = s.ingest.LastReports()
	}
	if s.scheduler != nil {
		status.NextRuns = s.scheduler.NextRuns()
	}
	return status, nil
}
