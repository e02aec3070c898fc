package store

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE class prefixes. Classification is by code family rather than
// by individual code so new backend codes in a known family behave
// sensibly without a release.
const (
	classConnection           = "08" // connection exception
	classIntegrityViolation   = "23" // integrity constraint violation
	classInvalidTransaction   = "25" // invalid transaction state
	classSyntaxOrAccess       = "42" // syntax error or access rule violation
	classSerializationFailure = "40" // transaction rollback (serialization, deadlock)
	classInsufficientResource = "53" // insufficient resources
	classOperatorIntervention = "57" // operator intervention (admin cancel, shutdown)
)

// IsTransient classifies a storage-layer failure as retryable.
//
// Connection loss, serialization/deadlock rollbacks, resource
// exhaustion, and operator intervention are transient. Integrity
// violations and syntax/permission errors are permanent. The check
// walks the full cause chain, so a transient cause wrapped in another
// error still counts. A nil error or one with no classifiable code is
// treated as permanent: unknown failures are not retried indefinitely.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientSQLState(pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// pgx surfaces some connection failures as plain errors before a
	// PgError exists.
	msg := err.Error()
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") {
		return true
	}

	return false
}

func isTransientSQLState(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case classConnection, classSerializationFailure,
		classInsufficientResource, classOperatorIntervention:
		return true
	case classIntegrityViolation, classSyntaxOrAccess, classInvalidTransaction:
		return false
	}
	return false
}
