package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vpuppets-console/exposure"
	"vpuppets-console/models"
	"vpuppets-console/system"
)

// ScanStatus is the live-scan state of one actor
type ScanStatus struct {
	InProgress bool       `json:"in_progress"`
	LastError  string     `json:"last_error,omitempty"`
	ScannedAt  *time.Time `json:"scanned_at,omitempty"`
}

// ScanService runs live socket scans through the command channel and keeps
// the latest result per actor
type ScanService struct {
	cmds    *CommandService
	timeout time.Duration
	poll    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	results map[string]*models.ExposureTables
	status  map[string]*ScanStatus
	wg      sync.WaitGroup
}

func NewScanService(cmds *CommandService, timeout, poll time.Duration) *ScanService {
	return &ScanService{
		cmds:    cmds,
		timeout: timeout,
		poll:    poll,
		now:     time.Now,
		results: make(map[string]*models.ExposureTables),
		status:  make(map[string]*ScanStatus),
	}
}

// Run scans an actor and waits for the result. The wait is bounded by the
// scan timeout; on timeout the previous result is kept.
func (s *ScanService) Run(ctx context.Context, actorID string) (*models.ExposureTables, error) {
	if !s.begin(actorID) {
		return nil, ErrScanInProgress
	}
	tables, err := s.run(ctx, actorID)
	s.finish(actorID, tables, err)
	return tables, err
}

// Start runs a scan in the background. It fails when one is already running
// for the actor.
func (s *ScanService) Start(actorID string) error {
	if !s.begin(actorID) {
		return ErrScanInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tables, err := s.run(context.Background(), actorID)
		s.finish(actorID, tables, err)
	}()
	return nil
}

func (s *ScanService) run(ctx context.Context, actorID string) (*models.ExposureTables, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	jobID, err := s.cmds.Issue(ctx, actorID, exposure.ScanCommand)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.ctxError(ctx)
		}
		return nil, err
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		job, err := s.cmds.Result(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, s.ctxError(ctx)
			}
			return nil, err
		}
		if job.Done() {
			if job.Status == models.JobFailed {
				return nil, fmt.Errorf("scan job %s failed: %s", jobID, job.Output)
			}
			tables := exposure.ParseSocketTable(job.Output, s.now())
			return &tables, nil
		}

		select {
		case <-ctx.Done():
			return nil, s.ctxError(ctx)
		case <-ticker.C:
		}
	}
}

// ctxError reports an ended scan context. Whatever the store returned once
// the deadline passed, the caller sees a timeout.
func (s *ScanService) ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrScanTimeout, s.timeout)
	}
	return ctx.Err()
}

func (s *ScanService) begin(actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[actorID]
	if !ok {
		st = &ScanStatus{}
		s.status[actorID] = st
	}
	if st.InProgress {
		return false
	}
	st.InProgress = true
	st.LastError = ""
	return true
}

func (s *ScanService) finish(actorID string, tables *models.ExposureTables, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[actorID]
	st.InProgress = false
	if err != nil {
		st.LastError = err.Error()
		scansTotal.WithLabelValues("error").Inc()
		system.Warn("Live scan of %s failed: %v", actorID, err)
		return
	}
	s.results[actorID] = tables
	st.ScannedAt = tables.ScannedAt
	scansTotal.WithLabelValues("ok").Inc()
	system.Info("Live scan of %s: %d system, %d application ports", actorID, len(tables.System), len(tables.Application))
}

// Status reports the scan state of an actor
func (s *ScanService) Status(actorID string) ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[actorID]; ok {
		return *st
	}
	return ScanStatus{}
}

// Latest returns the most recent successful scan, nil when none
func (s *ScanService) Latest(actorID string) *models.ExposureTables {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[actorID]
}

// Forget drops the cached scan so exposure falls back to estimation
func (s *ScanService) Forget(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, actorID)
}

// Wait blocks until background scans finished
func (s *ScanService) Wait() {
	s.wg.Wait()
}
