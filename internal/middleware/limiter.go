package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"

	"github.com/haierkeys/evidence-board-service/pkg/app"
	"github.com/haierkeys/evidence-board-service/pkg/code"
)

// BucketRule token bucket of one route
type BucketRule struct {
	FillInterval time.Duration
	Capacity     int64
	Quantum      int64
}

// RouteLimiter one token bucket per matched route and client ip
type RouteLimiter struct {
	rule    BucketRule
	mu      sync.Mutex
	buckets map[string]*ratelimit.Bucket
}

// NewRouteLimiter 创建限流器；Capacity <= 0 时不限流
func NewRouteLimiter(rule BucketRule) *RouteLimiter {
	if rule.Quantum <= 0 {
		rule.Quantum = 1
	}
	return &RouteLimiter{rule: rule, buckets: make(map[string]*ratelimit.Bucket)}
}

func (l *RouteLimiter) bucket(key string) *ratelimit.Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = ratelimit.NewBucketWithQuantum(l.rule.FillInterval, l.rule.Capacity, l.rule.Quantum)
		l.buckets[key] = b
	}
	return b
}

// RateLimiter 限流中间件
func RateLimiter(l *RouteLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.rule.Capacity <= 0 || l.rule.FillInterval <= 0 {
			c.Next()
			return
		}
		if l.bucket(c.FullPath()+"|"+c.ClientIP()).TakeAvailable(1) == 0 {
			app.NewResponse(c).ToResponse(code.ErrorTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
