// Package migrate executes planned view statements against PostgreSQL and installs the
// extraction-function library they depend on.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/jsonview/internal/orm/codegen"
)

// Result summarizes one executed plan
type Result struct {
	RunID    string
	Executed int
	Duration time.Duration
}

// Executor runs plans statement by statement. Apply runs once; ApplyWithRetry
// reruns the whole transaction after transient lock failures.
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExecutor creates an executor. A nil logger discards output.
func NewExecutor(db *sql.DB, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{db: db, logger: logger}
}

// Apply executes the plan inside a transaction of its own. On failure the
// transaction is rolled back and the error is a *DatabaseError.
func (e *Executor) Apply(ctx context.Context, plan *codegen.Plan) (*Result, error) {
	var result *Result
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = e.ApplyTx(ctx, tx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyTx executes the plan inside a caller transaction. The transaction is
// left open; on error the caller decides whether to roll back.
func (e *Executor) ApplyTx(ctx context.Context, tx *sql.Tx, plan *codegen.Plan) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := e.logger.With(zap.String("run_id", runID), zap.String("view", plan.View.Name))

	log.Info("applying plan", zap.Int("statements", len(plan.Statements)))

	for i, stmt := range plan.Statements {
		stepStart := time.Now()
		if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
			log.Error("statement failed",
				zap.Int("step", i+1),
				zap.Stringer("kind", stmt.Kind),
				zap.String("target", stmt.Target),
				zap.Error(err),
			)
			return nil, &DatabaseError{Statement: stmt, Err: err}
		}
		log.Debug("statement executed",
			zap.Int("step", i+1),
			zap.Stringer("kind", stmt.Kind),
			zap.String("target", stmt.Target),
			zap.Duration("duration", time.Since(stepStart)),
		)
	}

	result := &Result{RunID: runID, Executed: len(plan.Statements), Duration: time.Since(start)}
	log.Info("plan applied", zap.Duration("duration", result.Duration))
	return result, nil
}

// Refresh refreshes every materialized relation of the plan in one
// transaction. Plans without materialized relations are a no-op.
func (e *Executor) Refresh(ctx context.Context, plan *codegen.Plan) error {
	stmts := plan.Refresh()
	if len(stmts) == 0 {
		return nil
	}

	return e.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			start := time.Now()
			if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
				return &DatabaseError{Statement: stmt, Err: err}
			}
			e.logger.Debug("relation refreshed", zap.String("target", stmt.Target), zap.Duration("duration", time.Since(start)))
		}
		return nil
	})
}

func (e *Executor) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			e.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
