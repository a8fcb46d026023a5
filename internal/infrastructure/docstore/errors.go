package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/returnflow/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes that mean the service account is misconfigured
var pgPermissionCodes = map[string]bool{
	"42501": true, // insufficient_privilege
	"28000": true, // invalid_authorization_specification
	"28P01": true, // invalid_password
}

// redis error prefixes that mean the service account is misconfigured
var redisPermissionPrefixes = []string{"NOPERM", "NOAUTH", "WRONGPASS"}

// classify maps driver errors onto the store sentinels. Errors it does not
// recognise are returned unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if isPermissionError(err) {
		return shared.WrapDomainError(shared.ErrStorePermission.Code,
			shared.ErrStorePermission.Message+" ("+op+")", err)
	}
	if isUnavailableError(err) {
		return shared.WrapDomainError(shared.ErrStoreUnavailable.Code,
			shared.ErrStoreUnavailable.Message+" ("+op+")", err)
	}
	return err
}

func isPermissionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgPermissionCodes[pgErr.Code] {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pgPermissionCodes[string(pqErr.Code)] {
		return true
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		msg := redisErr.Error()
		for _, prefix := range redisPermissionPrefixes {
			if strings.HasPrefix(msg, prefix) {
				return true
			}
		}
	}
	return false
}

func isUnavailableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isRetryable reports whether a SQL transaction failed on a write conflict
func isRetryable(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505": // serialization_failure, deadlock_detected, unique_violation
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "database is locked")
}
