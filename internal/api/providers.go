package api

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github/chapool/go-withdrawer/internal/alert"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/queue/memqueue"
	"github/chapool/go-withdrawer/internal/queue/redisqueue"
	"github/chapool/go-withdrawer/internal/queue/sqlqueue"
	"github/chapool/go-withdrawer/internal/wallet/keystore"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

// PROVIDERS - define here only providers that for various reasons (e.g. cyclic dependency) can't live in their corresponding packages
// or for wrapping providers that only accept sub-configs to prevent the requirements for defining providers for sub-configs.
// https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

const (
	QueueBackendSQL    = "sql"
	QueueBackendRedis  = "redis"
	QueueBackendMemory = "memory"
)

// NoTest is used to pass nil for *testing.T in wire injectors outside of tests.
func NoTest() []*testing.T {
	return nil
}

func NewClock(t ...*testing.T) time2.Clock {
	var clock time2.Clock

	useMock := len(t) > 0 && t[0] != nil

	if useMock {
		clock = time2.NewMockClock(time2.DefaultClock.Now())
	} else {
		clock = time2.DefaultClock
	}

	return clock
}

// NewDB opens the SQL database backing the queue. It returns nil for other
// queue backends.
func NewDB(cfg config.Server) (*sql.DB, error) {
	if cfg.Queue.Backend != QueueBackendSQL {
		return nil, nil //nolint:nilnil // no database for this backend
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	if cfg.Database.Driver == config.DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return db, nil
}

// NewRedis returns the redis client for the redis queue backend, nil otherwise.
//
//nolint:ireturn // redis.UniversalClient is the client abstraction
func NewRedis(cfg config.Server) redis.UniversalClient {
	if cfg.Queue.Backend != QueueBackendRedis {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
}

// NewStore selects the queue backend.
//
//nolint:ireturn // withdraw.Store is the queue abstraction
func NewStore(cfg config.Server, db *sql.DB, rdb redis.UniversalClient, clock time2.Clock) (withdraw.Store, error) {
	switch cfg.Queue.Backend {
	case QueueBackendSQL:
		if db == nil {
			return nil, errors.New("sql queue backend requires a database")
		}
		return sqlqueue.New(db, clock), nil
	case QueueBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis queue backend requires a redis client")
		}
		return redisqueue.New(rdb, cfg.Queue.RedisKeyPrefix, clock), nil
	case QueueBackendMemory:
		log.Warn().Msg("Using in-memory queue, requests are lost on exit")
		return memqueue.New(clock), nil
	default:
		return nil, errors.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// NewAlerter always logs alerts and additionally posts them to the webhook when configured.
//
//nolint:ireturn // alert.Alerter is the alerting abstraction
func NewAlerter(cfg config.Server, clock time2.Clock) alert.Alerter {
	alerters := []alert.Alerter{alert.NewLogAlerter(log.Logger)}

	if cfg.Alert.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alert.WebhookURL, clock))
	}

	return alert.NewMultiAlerter(cfg.Alert.Cooldown, clock, alerters...)
}

//nolint:ireturn // keystore.Service is the keystore abstraction
func NewKeystore(cfg config.Server) keystore.Service {
	return keystore.NewService(cfg.Wallet.KeystorePath)
}
