package mysql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// isRetryable checks if an error is retryable (transient failure).
// Returns true for deadlocks, lock timeouts, and connection errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check for MySQL-specific retryable errors
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1213: // ER_LOCK_DEADLOCK
			return true
		case 1205: // ER_LOCK_WAIT_TIMEOUT
			return true
		case 2006: // ER_SERVER_GONE_ERROR - MySQL server has gone away
			return true
		case 2013: // ER_SERVER_LOST - Lost connection to MySQL server during query
			return true
		}
	}

	// Check for connection errors
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}

	return false
}

// isDuplicateColumnError checks if an ALTER TABLE failed because the column exists.
func isDuplicateColumnError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1060 // ER_DUP_FIELDNAME
	}
	return false
}
