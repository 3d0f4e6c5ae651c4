package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Store     string    `json:"store"`
	StoreUp   bool      `json:"storeUp"`
	Redis     []bool    `json:"redis"`
	CheckedAt time.Time `json:"checkedAt"`
}

// HealthMonitor checks whatever backends are configured. Nil fields are skipped.
type HealthMonitor struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	Redis    []*redis.Client
	Interval time.Duration

	mu      sync.RWMutex
	current HealthStatus
}

// Healthy reports whether the store and every redis client answered.
func (s HealthStatus) Healthy() bool {
	if !s.StoreUp {
		return false
	}
	for _, up := range s.Redis {
		if !up {
			return false
		}
	}
	return true
}

// Status returns latest stored health snapshot.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Store: "memory", StoreUp: true, CheckedAt: time.Now()}

	switch {
	case m.Postgres != nil:
		status.Store = "postgres"
		sqlDB, err := m.Postgres.DB()
		status.StoreUp = err == nil && sqlDB.PingContext(ctx) == nil
	case m.Mongo != nil:
		status.Store = "mongo"
		status.StoreUp = m.Mongo.Ping(ctx, nil) == nil
	}
	for _, client := range m.Redis {
		status.Redis = append(status.Redis, client.Ping(ctx).Err() == nil)
	}

	m.mu.Lock()
	m.current = status
	m.mu.Unlock()
	return status
}

// Start performs periodic health checks until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				m.Check(checkCtx)
				cancel()
			}
		}
	}()
}
