package outbox

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
)

// errInvalidPayload marks a job that can never succeed because its payload does not decode.
var errInvalidPayload = errors.New("outbox: invalid job payload")

// IsRetryableSQLState determines if a SQLSTATE should be retried, by class.
//
// Non-retryable classes (bad data, the job can never succeed):
//   - 22 Data Exception - value out of range, invalid format
//   - 23 Integrity Constraint Violation - not null, check, foreign key
//
// Retryable classes:
//   - 08 Connection Exception
//   - 40 Transaction Rollback - serialization failure, deadlock
//   - 53 Insufficient Resources - disk full, too many connections
//   - 57 Operator Intervention - admin shutdown, query canceled
//   - 58 System Error
//
// Unknown classes are treated as retryable: a job is only dropped when the
// error proves the write is invalid.
func IsRetryableSQLState(code string) bool {
	if len(code) < 2 {
		return true
	}
	switch code[:2] {
	case "22", "23":
		return false
	default:
		return true
	}
}

// IsRetryableError determines if a repository error should be retried.
//
// Classification strategy:
//  1. Context cancellation and deadlines keep the job for the next flush
//  2. Known sentinels (sql.ErrNoRows, invalid payload) never succeed on retry
//  3. PostgreSQL errors are classified by SQLSTATE class
//  4. Network errors are retryable
//  5. Fallback to message pattern matching (SQLite reports errors as text)
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Strategy 1: Context errors
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Strategy 2: Known sentinels
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, errInvalidPayload) {
		return false
	}

	// Strategy 3: PostgreSQL SQLSTATE
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return IsRetryableSQLState(string(pqErr.Code))
	}

	// Strategy 4: Network failures
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Strategy 5: Pattern matching
	errMsg := strings.ToLower(err.Error())

	nonRetryablePatterns := []string{
		"constraint failed",
		"datatype mismatch",
		"invalid input syntax",
		"value too long",
		"out of range",
	}

	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return false
		}
	}

	// All other errors are considered retryable
	// (database is locked, connection refused, broken pipe, etc.)
	return true
}
