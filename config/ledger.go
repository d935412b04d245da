package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/ledger"
	redisledger "github.com/heibot/chatguard/ledger/redis"
	sqlledger "github.com/heibot/chatguard/ledger/sql"
)

// OpenLedger connects the configured backend and wraps it in a
// ledger.Resilient. SQL backends need their driver registered by the
// caller. Close the returned ledger to release connections.
func OpenLedger(ctx context.Context, c Ledger, logger *slog.Logger) (*ledger.Resilient, error) {
	next, err := openBackend(ctx, c)
	if err != nil {
		return nil, err
	}

	rc := ledger.DefaultResilientConfig()
	rc.Backend = c.Backend
	rc.MaxRetries = c.MaxRetries
	rc.RetryWrites = c.RetryWrites
	rc.Logger = logger
	if c.RetryDelay > 0 {
		rc.InitialDelay = c.RetryDelay
	}
	return ledger.NewResilient(next, rc), nil
}

func openBackend(ctx context.Context, c Ledger) (ledger.Ledger, error) {
	switch c.Backend {
	case BackendMemory, "":
		return ledger.NewMemory(), nil

	case BackendRedis:
		opts := redisledger.DefaultOptions()
		if c.RedisAddr != "" {
			opts.Address = c.RedisAddr
		}
		opts.Password = c.RedisPassword
		opts.DB = c.RedisDB
		if c.KeyPrefix != "" {
			opts.KeyPrefix = c.KeyPrefix
		}
		opts.HistoryLimit = int64(c.HistoryLimit)
		return redisledger.New(ctx, opts)

	case BackendSQLite, BackendMySQL, BackendTiDB, BackendPostgres:
		sc := sqlledger.DefaultConfig()
		sc.Dialect = sqlledger.Dialect(c.Backend)
		sc.Driver = c.Driver
		sc.DSN = c.DSN
		if c.MaxOpenConns > 0 {
			sc.MaxOpenConns = c.MaxOpenConns
		}

		l, err := sqlledger.New(ctx, sc)
		if err != nil {
			return nil, err
		}
		if c.Migrate {
			if err := l.Migrate(ctx); err != nil {
				l.Close()
				return nil, err
			}
		}
		return l, nil
	}
	return nil, fmt.Errorf("%w: unknown ledger backend %q", chatguard.ErrInvalidConfig, c.Backend)
}
