package repository

import (
	"time"

	"github.com/okian/whovapes/pkg/logger"
)

// Default store configuration constants.
const (
	defaultScanPageSize = 200
	maxScanPageSize     = 5000
)

// Option applies a configuration option to the GormStore.
type Option func(*GormStore)

// WithScanPageSize sets the page size used by AllCelebrities.
func WithScanPageSize(size int) Option {
	return func(s *GormStore) {
		if size > 0 && size <= maxScanPageSize {
			s.pageSize = size
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *GormStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GormStore) {
		if now != nil {
			s.now = now
		}
	}
}
