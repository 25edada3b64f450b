package migrate

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/conduit-lang/jsonview/internal/orm/codegen"
)

// PostgreSQL SQLSTATE codes classified by the helpers below
const (
	codeDuplicateTable    = "42P07"
	codeDuplicateObject   = "42710"
	codeUndefinedTable    = "42P01"
	codeUndefinedObject   = "42704"
	codeUndefinedFunction = "42883"

	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// DatabaseError wraps a driver error with the plan statement that raised it.
// The driver error is kept verbatim.
type DatabaseError struct {
	Statement codegen.Statement
	Err       error
}

// Error implements the error interface
func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Statement.Kind, e.Statement.Target, e.Err)
}

// Unwrap returns the driver error
func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// IsDatabaseError returns true if err is or wraps a *DatabaseError
func IsDatabaseError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}

// IsDuplicateObject reports whether err was raised because a relation or
// index of the same name already exists
func IsDuplicateObject(err error) bool {
	code := sqlState(err)
	return code == codeDuplicateTable || code == codeDuplicateObject
}

// IsUndefinedObject reports whether err names a relation, function or index
// that does not exist, usually because the extraction library is missing
func IsUndefinedObject(err error) bool {
	code := sqlState(err)
	return code == codeUndefinedTable || code == codeUndefinedObject || code == codeUndefinedFunction
}

// IsRetryable reports whether PostgreSQL aborted the transaction for a
// reason that may not recur, such as a deadlock with concurrent DDL
func IsRetryable(err error) bool {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
