package ternhttp

import (
	"golang.org/x/time/rate"

	"github.com/tern-dl/tern/internal/utils"
)

// SessionConfig is the per-transfer configuration handed to the multi and
// simple paths. It is immutable once a session starts.
type SessionConfig struct {
	URL         string
	OutputPath  string
	Connections int
	ChunkSize   int64
	RateLimit   int64 // bytes/sec shared by all segments, 0 = unlimited
	Resume      bool
	KeepParts   bool
}

func (c *SessionConfig) chunkSize() int64 {
	if c.ChunkSize <= 0 {
		return utils.DefaultBufferSize
	}
	return c.ChunkSize
}

// newLimiter builds the session-wide bandwidth limiter. The cap is enforced
// across all segments of a session, not per segment: every worker waits on
// the same token bucket. Burst covers at least one read buffer so a single
// WaitN can always be satisfied.
func (c *SessionConfig) newLimiter() *rate.Limiter {
	if c.RateLimit <= 0 {
		return nil
	}
	burst := int(c.RateLimit)
	if int64(burst) < c.chunkSize() {
		burst = int(c.chunkSize())
	}
	return rate.NewLimiter(rate.Limit(c.RateLimit), burst)
}
