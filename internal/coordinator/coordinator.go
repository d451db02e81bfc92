// Package coordinator implements the transaction coordinator: a
// three-phase (init / execute / free) sequential runner over one
// transaction's operations, with distinct stop-on-first-error (init)
// versus never-stop (execute, free) fan-out policies.
package coordinator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kartikbazzad/bunbase/opbridge/internal/logger"
	"github.com/kartikbazzad/bunbase/opbridge/internal/operation"
)

// Coordinator runs one transaction's operations through their lifecycle
// in input order.
type Coordinator struct {
	Operations []operation.Operation
	Logger     *slog.Logger

	// TransactionNum correlates this run's log lines. If empty, Run generates one so every
	// transaction — including ones arriving without an explicit
	// transactionNum — still gets a stable correlation id.
	TransactionNum string
}

// Run executes the three phases of If init fails partway
// through, free is still run for every already-initialised operation,
// and a single top-level error is returned with no per-operation
// results. Otherwise every operation is executed (regardless of
// per-operation failure) and results are returned in input order.
func (c *Coordinator) Run(ctx context.Context) ([]*operation.Result, error) {
	if c.TransactionNum == "" {
		c.TransactionNum = uuid.NewString()
	}
	ctx, txnLogger := logger.WithTransactionNum(ctx, c.TransactionNum)
	if c.Logger == nil {
		c.Logger = txnLogger
	}

	initialized := 0
	for _, op := range c.Operations {
		if err := op.Init(); err != nil {
			c.freeInitialized(initialized)
			return nil, err
		}
		initialized++
	}

	results := make([]*operation.Result, len(c.Operations))
	for i, op := range c.Operations {
		results[i] = op.Execute(ctx)
	}

	c.freeInitialized(len(c.Operations))
	return results, nil
}

// freeInitialized runs freeResources sequentially and best-effort over
// the first n operations.
func (c *Coordinator) freeInitialized(n int) {
	for i := 0; i < n; i++ {
		c.Operations[i].FreeResources()
	}
}
