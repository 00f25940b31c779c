package health

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// ProbeRunner evaluates readiness checkers with a per-check timeout. Results
// are cached for the configured interval so a busy /health/ready endpoint
// does not hammer the dependencies.
type ProbeRunner struct {
	timeout  time.Duration
	interval time.Duration
	checkers []Checker

	mu       sync.Mutex
	last     []CheckResult
	lastOK   bool
	lastTime time.Time
}

func NewProbeRunner(timeout, interval time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, interval: interval, checkers: checkers}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interval > 0 && time.Since(p.lastTime) < p.interval && p.last != nil {
		return p.lastOK, p.last
	}

	results := make([]CheckResult, 0, len(p.checkers))
	ok := true
	for _, c := range p.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := c.Check(checkCtx)
		cancel()
		res := CheckResult{Name: c.Name(), Healthy: err == nil}
		if err != nil {
			res.Error = err.Error()
			ok = false
		}
		results = append(results, res)
	}
	p.last = results
	p.lastOK = ok
	p.lastTime = time.Now()
	return ok, results
}

type databaseChecker struct{ db *gorm.DB }

func DatabaseChecker(db *gorm.DB) Checker { return &databaseChecker{db: db} }

func (c *databaseChecker) Name() string { return "database" }

func (c *databaseChecker) Check(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type redisChecker struct{ client *redis.Client }

func RedisChecker(client *redis.Client) Checker { return &redisChecker{client: client} }

func (c *redisChecker) Name() string { return "redis" }

func (c *redisChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
