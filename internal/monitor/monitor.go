// Package monitor periodically snapshots service state.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"gorm.io/gorm"

	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/influx"
	"github.com/hazardmap/mapservice/internal/model"
	"github.com/hazardmap/mapservice/internal/queue"
	"github.com/hazardmap/mapservice/internal/session"
)

// maxPending bounds status rows held while the database is unreachable.
const maxPending = 1000

// Sessions lists open sessions.
type Sessions interface {
	IDs() []string
	Get(id string) (*session.Session, error)
}

// Dependencies holds all dependencies for the monitor service. Only
// Sessions is required.
type Dependencies struct {
	Sessions Sessions
	Cache    interface{ Len() int }
	DB       *gorm.DB
	Metrics  geocode.PointWriter
	// StatusFile is rewritten with the latest snapshot on every tick.
	StatusFile string
	Interval   time.Duration
	// FlushEvery is the number of ticks between database batch writes.
	FlushEvery int
	Logger     *slog.Logger
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	started time.Time
	pending *queue.Queue[model.ServiceStatus]
	now     func() time.Time

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.FlushEvery <= 0 {
		deps.FlushEvery = 1
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
		pending: queue.New[model.ServiceStatus](maxPending),
		now:     time.Now,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Status takes a snapshot of the open sessions.
func (s *Service) Status() model.ServiceStatus {
	now := s.now()
	st := model.ServiceStatus{
		Time:          now.UTC(),
		UptimeSeconds: now.Sub(s.started).Seconds(),
	}
	for _, id := range s.deps.Sessions.IDs() {
		sess, err := s.deps.Sessions.Get(id)
		if err != nil {
			// closed between IDs and Get
			continue
		}
		st.Sessions++
		st.Markers += len(sess.Markers())
		if sess.Loading() {
			st.LoadingSessions++
		}
	}
	if s.deps.Cache != nil {
		st.CacheEntries = s.deps.Cache.Len()
	}
	return st
}

// Tick records one snapshot: status file, metrics point and a queued row.
// Queued rows are written every FlushEvery ticks.
func (s *Service) Tick(ctx context.Context, n int) model.ServiceStatus {
	st := s.Status()

	if s.deps.StatusFile != "" {
		if err := s.writeStatusFile(st); err != nil {
			s.deps.Logger.Warn("Failed to write status file", "path", s.deps.StatusFile, "error", err)
		}
	}

	if s.deps.Metrics != nil {
		p := influxdb2_write.NewPointWithMeasurement("status").
			AddField("sessions", st.Sessions).
			AddField("markers", st.Markers).
			AddField("loading_sessions", st.LoadingSessions).
			AddField("cache_entries", st.CacheEntries).
			AddField("uptime_s", st.UptimeSeconds).
			SetTime(st.Time)
		if err := s.deps.Metrics.WritePoint(ctx, influx.BucketMapSessions, p); err != nil {
			s.deps.Logger.Debug("Status point not written", "error", err)
		}
	}

	if s.deps.DB != nil {
		if dropped := s.pending.Push(st); dropped > 0 {
			s.deps.Logger.Warn("Status rows dropped", "dropped", dropped, "total", s.pending.Dropped())
		}
		if n%s.deps.FlushEvery == 0 {
			s.Flush(ctx)
		}
	}
	return st
}

func (s *Service) writeStatusFile(st model.ServiceStatus) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.deps.StatusFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.deps.StatusFile)
}

// Flush writes queued status rows. A failed batch is requeued.
func (s *Service) Flush(ctx context.Context) {
	if s.deps.DB == nil {
		return
	}
	batch := s.pending.Drain()
	if len(batch) == 0 {
		return
	}
	if err := s.deps.DB.WithContext(ctx).CreateInBatches(batch, 100).Error; err != nil {
		s.deps.Logger.Error("Error writing status rows", "rows", len(batch), "error", err)
		s.pending.Requeue(batch)
		return
	}
	s.deps.Logger.Debug("Wrote status rows", "rows", len(batch))
}

// Pending returns the number of rows waiting for a flush.
func (s *Service) Pending() int {
	return s.pending.Len()
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stopChan, s.done)
}

func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)
	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	ctx := context.Background()
	for n := 1; ; n++ {
		select {
		case <-stop:
			s.Flush(ctx)
			return
		case <-ticker.C:
			s.Tick(ctx, n)
		}
	}
}

// Stop stops the monitor, flushes pending rows and waits for the goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}
