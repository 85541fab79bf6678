package services

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/reckon-app/apiserver/types"
)

const recentWindow = 30 * 24 * time.Hour

// StatsRepository aggregates user counts.
type StatsRepository interface {
	Stats(ctx context.Context, since time.Time) (types.UserStats, error)
}

// PoolStatter reports connection pool usage. *sql.DB satisfies it.
type PoolStatter interface {
	Stats() sql.DBStats
}

// ReportStore persists generated reports.
type ReportStore interface {
	PutJSON(ctx context.Context, key string, value any) error
	Bucket() string
}

// SystemInfo identifies the running deployment.
type SystemInfo struct {
	Environment string
	Version     string
	StartedAt   time.Time
}

type SystemStats struct {
	Environment   string      `json:"environment"`
	Version       string      `json:"version"`
	GoVersion     string      `json:"go_version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Goroutines    int         `json:"goroutines"`
	Database      DBPoolStats `json:"database"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

// UserReport is the document written by ExportUserReport.
type UserReport struct {
	ID          string          `json:"id"`
	GeneratedAt time.Time       `json:"generated_at"`
	GeneratedBy string          `json:"generated_by"`
	Stats       types.UserStats `json:"stats"`
}

// ReportRef locates a stored report.
type ReportRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// AdminService backs the superuser-only endpoints.
type AdminService struct {
	stats   StatsRepository
	pool    PoolStatter
	reports ReportStore
	info    SystemInfo
	now     func() time.Time
}

// NewAdminService wires the service. pool and reports may be nil.
func NewAdminService(stats StatsRepository, pool PoolStatter, reports ReportStore, info SystemInfo) *AdminService {
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	return &AdminService{
		stats:   stats,
		pool:    pool,
		reports: reports,
		info:    info,
		now:     time.Now,
	}
}

func (s *AdminService) UserStats(ctx context.Context) (types.UserStats, error) {
	return s.stats.Stats(ctx, s.now().Add(-recentWindow))
}

func (s *AdminService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		Environment:   s.info.Environment,
		Version:       s.info.Version,
		GoVersion:     runtime.Version(),
		UptimeSeconds: int64(s.now().Sub(s.info.StartedAt) / time.Second),
		Goroutines:    runtime.NumGoroutine(),
	}
	if s.pool != nil {
		db := s.pool.Stats()
		stats.Database = DBPoolStats{
			MaxOpenConnections: db.MaxOpenConnections,
			OpenConnections:    db.OpenConnections,
			InUse:              db.InUse,
			Idle:               db.Idle,
			WaitCount:          db.WaitCount,
			WaitDuration:       db.WaitDuration.String(),
		}
	}
	return stats
}

// ExportUserReport snapshots user statistics into object storage.
func (s *AdminService) ExportUserReport(ctx context.Context, requestedBy types.User) (ReportRef, error) {
	if s.reports == nil {
		return ReportRef{}, ErrStorageDisabled
	}

	userStats, err := s.UserStats(ctx)
	if err != nil {
		return ReportRef{}, err
	}

	now := s.now().UTC()
	report := UserReport{
		ID:          uuid.NewString(),
		GeneratedAt: now,
		GeneratedBy: requestedBy.Email,
		Stats:       userStats,
	}
	key := fmt.Sprintf("reports/users/%s-%s.json", now.Format("20060102T150405Z"), report.ID)
	if err := s.reports.PutJSON(ctx, key, report); err != nil {
		return ReportRef{}, fmt.Errorf("store user report: %w", err)
	}
	return ReportRef{Bucket: s.reports.Bucket(), Key: key}, nil
}
