package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type dispatchRunner interface {
	Run(ctx context.Context) (*DispatchResult, error)
}

// DispatchTicker invokes the dispatch loop on a fixed interval. It is
// the in-process substitute for an external scheduler hitting the
// dispatch endpoint; a non-positive interval disables it so an external
// scheduler can be the only driver.
type DispatchTicker struct {
	dispatcher dispatchRunner
	logger     *zap.Logger
	interval   time.Duration
}

func NewDispatchTicker(dispatcher dispatchRunner, interval time.Duration, logger *zap.Logger) (*DispatchTicker, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchTicker{
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
	}, nil
}

// Enabled reports whether the ticker will drive dispatch.
func (t *DispatchTicker) Enabled() bool {
	return t.interval > 0
}

func (t *DispatchTicker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !t.Enabled() {
		t.logger.Info("scheduled dispatch disabled, external scheduler drives the queue")
		return nil
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := t.dispatcher.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				t.logger.Error("scheduled dispatch failed", zap.Error(err))
			}
		}
	}
}
