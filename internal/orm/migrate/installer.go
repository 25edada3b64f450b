package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/jsonview/internal/orm/codegen"
	"github.com/conduit-lang/jsonview/internal/orm/extract"
)

// Installer installs the extraction-function library. Every statement is
// CREATE OR REPLACE, so installing twice is harmless.
type Installer struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstaller creates an installer. A nil logger discards output.
func NewInstaller(db *sql.DB, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{db: db, logger: logger}
}

// Install installs the given bundles in order inside one transaction
func (i *Installer) Install(ctx context.Context, bundles ...extract.Bundle) error {
	if len(bundles) == 0 {
		bundles = []extract.Bundle{extract.Core}
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, b := range bundles {
		start := time.Now()
		for _, stmt := range extract.Library(b) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return &DatabaseError{
					Statement: codegen.Statement{Kind: codegen.StatementInstall, Target: b.String() + " library", SQL: stmt},
					Err:       err,
				}
			}
		}
		i.logger.Info("library installed", zap.Stringer("bundle", b), zap.Duration("duration", time.Since(start)))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Installed reports whether the marker function of bundle b exists
func (i *Installer) Installed(ctx context.Context, b extract.Bundle) (bool, error) {
	marker := extract.String.Name()
	if b == extract.PostGIS {
		marker = extract.Geopoint.Name()
	}

	var exists bool
	err := i.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1)", marker).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s library: %w", b, err)
	}
	return exists, nil
}
