package ports

import "time"

// BufferPolicy configures the outbound buffer used while disconnected.
type BufferPolicy struct {
	Enabled      bool `yaml:"enabled"`
	Capacity     int  `yaml:"capacity"`
	Persist      bool `yaml:"persist"`
	DeleteOldest bool `yaml:"delete_oldest"`
}

// DefaultBufferPolicy holds 100 messages in memory and drops new ones when full.
func DefaultBufferPolicy() BufferPolicy {
	return BufferPolicy{Enabled: true, Capacity: 100}
}

// ArchivePolicy controls the finalized-session archive pipeline.
type ArchivePolicy struct {
	MaxQueueLen  int           `yaml:"queue_len"`
	MaxBatchSize int           `yaml:"batch_size"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`
}
