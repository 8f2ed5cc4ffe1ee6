package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const limiterIdleTTL = 10 * time.Minute

type sharedLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy defines the throttling parameters for a traffic surface.
type RateLimitPolicy struct {
	name      string
	perMinute int
	burst     int
}

// NewRateLimitPolicy builds a policy allowing perMinute requests per actor with the given burst.
func NewRateLimitPolicy(name string, perMinute, burst int) RateLimitPolicy {
	if burst <= 0 {
		burst = 1
	}
	return RateLimitPolicy{
		name:      strings.ToLower(strings.TrimSpace(name)),
		perMinute: perMinute,
		burst:     burst,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.perMinute > 0
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "default"
	}
	return p.name
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles each actor with a token bucket held in process, then checks an
// optional fixed window shared across API nodes.
type RateLimiter struct {
	policy RateLimitPolicy
	shared sharedLimiter
	logg   *logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

func NewRateLimiter(policy RateLimitPolicy, shared sharedLimiter, logg *logger.Logger) *RateLimiter {
	return &RateLimiter{
		policy:   policy,
		shared:   shared,
		logg:     logg,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (l *RateLimiter) allowLocal(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[key]
	if !ok {
		every := time.Minute / time.Duration(l.policy.perMinute)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), l.policy.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Handler enforces the policy keyed by the authenticated user, or the client IP for
// anonymous callers.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	if !l.policy.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		scope, actor := "user", UserIDFromContext(ctx)
		if actor == "" {
			scope, actor = "ip", clientIP(r)
		}
		key := l.policy.normalizedName() + ":" + scope + ":" + actor

		if !l.allowLocal(key) {
			l.respondRateLimited(ctx, w, scope, actor, "local", 0)
			return
		}

		if l.shared != nil {
			allowed, count, err := l.shared.FixedWindowAllow(ctx, key, int64(l.policy.perMinute), time.Minute)
			if err != nil {
				responses.WriteError(ctx, l.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				l.respondRateLimited(ctx, w, scope, actor, "shared", count)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) respondRateLimited(ctx context.Context, w http.ResponseWriter, scope, actor, tier string, count int64) {
	if l.logg != nil {
		fields := map[string]any{
			"scope":      scope,
			"actor":      actor,
			"policy":     l.policy.normalizedName(),
			"tier":       tier,
			"per_minute": l.policy.perMinute,
		}
		if count > 0 {
			fields["attempts"] = count
		}
		l.logg.Warn(l.logg.WithFields(ctx, fields), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", "60")
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
