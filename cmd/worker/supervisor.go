package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/menusam/partner-billing/pkg/logger"
)

const defaultCheckInterval = time.Minute

type runner interface {
	Run(context.Context) error
}

// consumerSet runs every subscription side by side. The first one to fail cancels the others.
type consumerSet []runner

func (cs consumerSet) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range cs {
		g.Go(func() error { return c.Run(ctx) })
	}
	return g.Wait()
}

// Dependency is a backing service the worker needs reachable.
type Dependency struct {
	Name string
	Ping func(context.Context) error
}

// Supervisor runs the consumers once every dependency answers, then keeps probing
// them so a degraded Redis or Pub/Sub shows up in logs before deliveries start failing.
type Supervisor struct {
	logg     *logger.Logger
	consumer runner
	deps     []Dependency
	every    time.Duration
}

func NewSupervisor(logg *logger.Logger, consumer runner, every time.Duration, deps ...Dependency) (*Supervisor, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if consumer == nil {
		return nil, errors.New("consumer is required")
	}
	for _, d := range deps {
		if d.Name == "" || d.Ping == nil {
			return nil, errors.New("dependency needs a name and a ping")
		}
	}
	if every <= 0 {
		every = defaultCheckInterval
	}
	return &Supervisor{logg: logg, consumer: consumer, deps: deps, every: every}, nil
}

// checkDependencies pings every dependency and returns all failures, not just the first.
func (s *Supervisor) checkDependencies(ctx context.Context) error {
	var errs error
	for _, d := range s.deps {
		if err := d.Ping(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
	}
	return errs
}

func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return fmt.Errorf("worker not ready: %w", err)
	}
	s.logg.Info(ctx, "worker dependencies ready")

	done := make(chan error, 1)
	go func() { done <- s.consumer.Run(ctx) }()

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case err := <-done:
			if err == nil || errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("consumer stopped: %w", err)
		case <-ticker.C:
			if err := s.checkDependencies(ctx); err != nil {
				s.logg.WarnErr(ctx, "worker dependency degraded", err)
			}
		}
	}
}
