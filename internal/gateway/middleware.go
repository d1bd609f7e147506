package gateway

import (
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// IPRateLimiter enforces a per-client-IP request budget with a token bucket
// per visitor. Stale visitors are evicted in the background.
type IPRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	log      *zap.Logger
}

// lastSeen is unix nanos, atomic: request handlers bump it while the cleanup
// goroutine reads it.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func newVisitor(rps rate.Limit, burst int) *visitor {
	v := &visitor{limiter: rate.NewLimiter(rps, burst)}
	v.lastSeen.Store(time.Now().UnixNano())
	return v
}

// NewIPRateLimiter returns a limiter allowing perMinute requests per IP.
func NewIPRateLimiter(perMinute int, logger *zap.Logger) *IPRateLimiter {
	l := &IPRateLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: 5,
		log:   logger,
	}
	go l.cleanupVisitors()
	return l
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	v, ok := l.visitors.Load(ip)
	if !ok {
		// LoadOrStore keeps one bucket per IP when two first requests race.
		v, _ = l.visitors.LoadOrStore(ip, newVisitor(l.rps, l.burst))
	}
	vi := v.(*visitor)
	vi.lastSeen.Store(time.Now().UnixNano())
	return vi.limiter
}

func (l *IPRateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		cutoff := time.Now().Add(-5 * time.Minute).UnixNano()
		l.visitors.Range(func(k, v interface{}) bool {
			if v.(*visitor).lastSeen.Load() < cutoff {
				l.visitors.Delete(k)
			}
			return true
		})
	}
}

// Handler rejects requests over budget with 429.
func (l *IPRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := clientIP(c)
		if !l.getLimiter(ip).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"statusCode": fiber.StatusTooManyRequests,
				"message":    "rate limit exceeded",
			})
		}
		return c.Next()
	}
}

func clientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}

// JWTGuard validates HS256 bearer tokens on protected routes and stores the
// subject in locals as user_id.
type JWTGuard struct {
	secret []byte
	log    *zap.Logger
}

// NewJWTGuard returns a guard signing-checked against secret.
func NewJWTGuard(secret string, logger *zap.Logger) *JWTGuard {
	return &JWTGuard{secret: []byte(secret), log: logger}
}

// Handler rejects requests without a valid bearer token.
func (j *JWTGuard) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return unauthorized(c, "missing or malformed authorization header")
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return j.secret, nil
		})
		if err != nil || !token.Valid {
			j.log.Debug("jwt rejected", zap.Error(err))
			return unauthorized(c, "invalid or expired token")
		}

		var uid string
		if v, ok := claims["user_id"].(string); ok && v != "" {
			uid = v
		} else if v, ok := claims["sub"].(string); ok && v != "" {
			uid = v
		}
		if uid == "" {
			return unauthorized(c, "token carries no subject")
		}
		c.Locals("user_id", uid)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"statusCode": fiber.StatusUnauthorized,
		"message":    msg,
	})
}
