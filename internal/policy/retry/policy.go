// Package retry decides when a failed fetch of the listing page is worth another attempt.
package retry

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"math/big"
	"net"
	"time"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

const (
	defaultBaseDelay = 250 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Config holds retry settings. MaxAttempts counts the first try; values below 1 mean 1.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Exponential retries transient fetch failures with jittered exponential backoff.
// A server-sent Retry-After is honored up to MaxDelay.
type Exponential struct {
	cfg Config
}

// NewExponential builds a policy, filling unset fields with defaults.
func NewExponential(cfg Config) *Exponential {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	return &Exponential{cfg: cfg}
}

// Next reports whether attempt (1-based) failing with err is followed by another,
// and how long to wait first.
func (p *Exponential) Next(err error, attempt int) (time.Duration, bool) {
	if err == nil || attempt >= p.cfg.MaxAttempts || !transient(err) {
		return 0, false
	}
	delay := p.backoff(attempt)
	var statusErr *internship.StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > delay {
		delay = min(statusErr.RetryAfter, p.cfg.MaxDelay)
	}
	return delay, true
}

// transient classifies fetch failures. Cancellation, 4xx answers other than 408/429
// and certificate rejections repeat identically, everything else may not.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *internship.StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Permanent()
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// backoff is half the capped exponential delay plus up to the same again in jitter.
func (p *Exponential) backoff(attempt int) time.Duration {
	full := p.cfg.MaxDelay
	if shift := attempt - 1; shift < 32 {
		if d := p.cfg.BaseDelay << shift; d > 0 && d < full {
			full = d
		}
	}
	half := full / 2
	return half + jitter(half)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
