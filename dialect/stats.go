package dialect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/unigraph"
)

// OpClass groups operations for statistics.
type OpClass uint8

// Operation classes.
const (
	ClassRead OpClass = iota
	ClassWrite
	ClassQuery
	ClassTraversal
	ClassSchema
	ClassTx
)

func (c OpClass) String() string {
	switch c {
	case ClassWrite:
		return "write"
	case ClassQuery:
		return "query"
	case ClassTraversal:
		return "traversal"
	case ClassSchema:
		return "schema"
	case ClassTx:
		return "tx"
	}
	return "read"
}

// OpInfo describes one finished operation.
type OpInfo struct {
	Dialect  string
	Op       string // e.g. "create-vertex", "commit"
	Class    OpClass
	Duration time.Duration
	Err      error
}

// Observer is notified after every operation issued through the client.
type Observer interface {
	Observe(ctx context.Context, info OpInfo)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, info OpInfo)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, info OpInfo) { f(ctx, info) }

// Observers fans out to several observers.
type Observers []Observer

// Observe implements Observer.
func (o Observers) Observe(ctx context.Context, info OpInfo) {
	for _, ob := range o {
		ob.Observe(ctx, info)
	}
}

// OpStats holds operation statistics.
type OpStats struct {
	// TotalReads is the number of element lookups and finds.
	TotalReads atomic.Int64
	// TotalWrites is the number of mutations.
	TotalWrites atomic.Int64
	// TotalQueries is the number of native queries.
	TotalQueries atomic.Int64
	// TotalTraversals is the number of traversal calls.
	TotalTraversals atomic.Int64
	// Commits and Rollbacks count finished transactions.
	Commits   atomic.Int64
	Rollbacks atomic.Int64
	// TotalDuration is the total time spent in operations.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowOps is the count of operations exceeding the slow threshold.
	SlowOps atomic.Int64
	// Errors is the count of failed operations.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *OpStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalReads:      s.TotalReads.Load(),
		TotalWrites:     s.TotalWrites.Load(),
		TotalQueries:    s.TotalQueries.Load(),
		TotalTraversals: s.TotalTraversals.Load(),
		Commits:         s.Commits.Load(),
		Rollbacks:       s.Rollbacks.Load(),
		TotalDuration:   time.Duration(s.TotalDuration.Load()),
		SlowOps:         s.SlowOps.Load(),
		Errors:          s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *OpStats) Reset() {
	for _, c := range []*atomic.Int64{
		&s.TotalReads, &s.TotalWrites, &s.TotalQueries, &s.TotalTraversals,
		&s.Commits, &s.Rollbacks, &s.TotalDuration, &s.SlowOps, &s.Errors,
	} {
		c.Store(0)
	}
}

// StatsSnapshot is a point-in-time snapshot of operation statistics.
type StatsSnapshot struct {
	TotalReads      int64
	TotalWrites     int64
	TotalQueries    int64
	TotalTraversals int64
	Commits         int64
	Rollbacks       int64
	TotalDuration   time.Duration
	SlowOps         int64
	Errors          int64
}

// Total returns the number of recorded operations, excluding commit and
// rollback.
func (s StatsSnapshot) Total() int64 {
	return s.TotalReads + s.TotalWrites + s.TotalQueries + s.TotalTraversals
}

// AvgDuration returns the average operation duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"reads=%d writes=%d queries=%d traversals=%d commits=%d rollbacks=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalReads, s.TotalWrites, s.TotalQueries, s.TotalTraversals, s.Commits, s.Rollbacks,
		s.TotalDuration, s.AvgDuration(), s.SlowOps, s.Errors,
	)
}

// SlowOpHook is a function called when a slow operation is detected.
type SlowOpHook func(ctx context.Context, info OpInfo)

// StatsObserver collects OpStats.
type StatsObserver struct {
	stats         *OpStats
	slowThreshold time.Duration
	slowHook      SlowOpHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsObserver.
type StatsOption func(*StatsObserver)

// WithSlowThreshold sets the threshold for slow operation detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsObserver) {
		s.slowThreshold = d
	}
}

// WithSlowOpHook sets a callback function for slow operations.
func WithSlowOpHook(hook SlowOpHook) StatsOption {
	return func(s *StatsObserver) {
		s.slowHook = hook
	}
}

// WithSlowOpLog logs slow operations to the given logger, or to the default
// logger when l is nil.
func WithSlowOpLog(l *slog.Logger) StatsOption {
	return WithSlowOpHook(func(ctx context.Context, info OpInfo) {
		logger := l
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "slow graph operation detected",
			"dialect", info.Dialect, "op", info.Op, "duration", info.Duration)
	})
}

// NewStatsObserver returns an observer collecting statistics.
//
// Example:
//
//	stats := dialect.NewStatsObserver(
//	    dialect.WithSlowThreshold(200*time.Millisecond),
//	    dialect.WithSlowOpLog(nil),
//	)
//	g, _ := client.Open(ctx, dialect.Neo4j, cfg, client.WithObserver(stats))
//
//	// Later, check statistics:
//	fmt.Println(stats.OpStats().Stats())
func NewStatsObserver(opts ...StatsOption) *StatsObserver {
	s := &StatsObserver{
		stats:         &OpStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpStats returns the underlying statistics.
func (s *StatsObserver) OpStats() *OpStats {
	return s.stats
}

// SlowThreshold returns the current slow operation threshold.
func (s *StatsObserver) SlowThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slowThreshold
}

// SetSlowThreshold updates the slow operation threshold.
func (s *StatsObserver) SetSlowThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowThreshold = threshold
}

// Observe implements Observer.
func (s *StatsObserver) Observe(ctx context.Context, info OpInfo) {
	switch info.Class {
	case ClassRead:
		s.stats.TotalReads.Add(1)
	case ClassWrite, ClassSchema:
		s.stats.TotalWrites.Add(1)
	case ClassQuery:
		s.stats.TotalQueries.Add(1)
	case ClassTraversal:
		s.stats.TotalTraversals.Add(1)
	case ClassTx:
		if info.Err == nil {
			switch info.Op {
			case "commit":
				s.stats.Commits.Add(1)
			case "rollback":
				s.stats.Rollbacks.Add(1)
			}
		}
	}
	s.stats.TotalDuration.Add(int64(info.Duration))
	if info.Err != nil {
		s.stats.Errors.Add(1)
	}

	s.mu.RLock()
	threshold := s.slowThreshold
	hook := s.slowHook
	s.mu.RUnlock()

	if info.Duration > threshold {
		s.stats.SlowOps.Add(1)
		if hook != nil {
			hook(ctx, info)
		}
	}
}

// DebugObserver logs every operation.
type DebugObserver struct {
	log *slog.Logger
}

// NewDebugObserver returns an observer logging operations at debug level,
// and failures at warn level.
func NewDebugObserver(l *slog.Logger) *DebugObserver {
	if l == nil {
		l = slog.Default()
	}
	return &DebugObserver{log: l}
}

// Observe implements Observer.
func (d *DebugObserver) Observe(ctx context.Context, info OpInfo) {
	if info.Err != nil {
		d.log.WarnContext(ctx, "graph operation failed",
			"dialect", info.Dialect, "op", info.Op, "duration", info.Duration,
			"kind", unigraph.KindOf(info.Err).String(), "error", info.Err)
		return
	}
	d.log.DebugContext(ctx, "graph operation",
		"dialect", info.Dialect, "op", info.Op, "class", info.Class.String(), "duration", info.Duration)
}

// Ensure interfaces are implemented.
var (
	_ Observer = (*StatsObserver)(nil)
	_ Observer = (*DebugObserver)(nil)
	_ Observer = Observers(nil)
	_ Observer = ObserverFunc(nil)
)
