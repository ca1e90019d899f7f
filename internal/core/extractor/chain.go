package extractor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/platform"
)

// Target is what a strategy works from
type Target struct {
	URL      string // original URL as supplied
	CleanURL string // URL with query string and fragment removed
	ID       string // short code or recording id
	Platform platform.Platform
}

// Strategy is one independent way of turning a target into media.
// A strategy that finds nothing returns an error; it must never panic.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, t Target) (*Media, error)
}

// Attempt records the outcome of running a single strategy
type Attempt struct {
	Strategy string
	OK       bool
	Err      error
}

// Chain runs strategies strictly in order and stops at the first that
// returns a valid result.
type Chain struct {
	platform   platform.Platform
	strategies []Strategy
	log        *logrus.Entry
}

// NewChain creates a chain for a platform
func NewChain(p platform.Platform, log *logrus.Logger, strategies ...Strategy) *Chain {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Chain{
		platform:   p,
		strategies: strategies,
		log:        log.WithField("platform", string(p)),
	}
}

// Strategies returns the strategy names in execution order
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run tries each strategy in turn. The returned attempts describe every
// strategy that ran; media is nil when none succeeded.
func (c *Chain) Run(ctx context.Context, t Target) (*Media, []Attempt) {
	attempts := make([]Attempt, 0, len(c.strategies))

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Strategy: s.Name(), Err: err})
			break
		}

		media, err := runStrategy(ctx, s, t)
		if err == nil && !media.Valid() {
			err = fmt.Errorf("strategy returned no usable media")
		}

		entry := c.log.WithField("strategy", s.Name())
		if err != nil {
			entry.WithField("outcome", "miss").WithError(err).Debug("strategy produced nothing")
			attempts = append(attempts, Attempt{Strategy: s.Name(), Err: err})
			continue
		}

		entry.WithFields(logrus.Fields{"outcome": "ok", "kind": media.Kind}).Debug("strategy succeeded")
		media.SourcePlatform = c.platform
		attempts = append(attempts, Attempt{Strategy: s.Name(), OK: true})
		return media, attempts
	}

	c.log.WithField("attempts", len(attempts)).Warn("all strategies failed")
	return nil, attempts
}

func runStrategy(ctx context.Context, s Strategy, t Target) (media *Media, err error) {
	defer func() {
		if r := recover(); r != nil {
			media = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Attempt(ctx, t)
}

// lastError returns the error of the final attempt, if any
func lastError(attempts []Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	return attempts[len(attempts)-1].Err
}
