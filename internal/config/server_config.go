package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"github/chapool/go-withdrawer/internal/util"
)

type LoggerServer struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
}

type Database struct {
	// Driver is either "postgres" or "sqlite3".
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string `json:"-"`
	SSLMode  string
	// Path is the sqlite3 database file, ignored for postgres.
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Queue struct {
	// Backend is one of "sql", "redis" or "memory".
	Backend        string
	RedisAddr      string
	RedisPassword  string `json:"-"`
	RedisDB        int
	RedisKeyPrefix string
}

type Ledger struct {
	RPCURLs                    []string
	RequestTimeout             time.Duration
	RateLimitRPS               float64
	RateLimitBurst             int
	BreakerConsecutiveFailures uint32
	BreakerTimeout             time.Duration
}

type Wallet struct {
	Mnemonic         string `json:"-"`
	KeystorePath     string
	KeystorePassword string `json:"-"`
	DerivationPath   string
	AssetsFile       string
	Assets           map[string]Asset
}

type Engine struct {
	TickInterval  time.Duration
	TickTimeout   time.Duration
	ScanWindow    int
	FeeReserve    *big.Int
	AttachedValue *big.Int
	ExitWhenEmpty bool
}

type Alert struct {
	WebhookURL string
	Cooldown   time.Duration
}

type Management struct {
	Enabled       bool
	ListenAddress string
}

type Server struct {
	Logger     LoggerServer
	Database   Database
	Queue      Queue
	Ledger     Ledger
	Wallet     Wallet
	Engine     Engine
	Alert      Alert
	Management Management
}

const (
	defaultFeeReserve    = 50_000_000 // 0.05 native units at 9 decimals
	defaultTickInterval  = 10 * time.Second
	defaultTickTimeout   = 45 * time.Second
	defaultScanWindow    = 20
	defaultRateLimitRPS  = 10
	defaultRateBurst     = 20
	defaultBreakerFails  = 5
	defaultBreakerWait   = 30 * time.Second
	defaultRPCTimeout    = 15 * time.Second
	defaultAlertCooldown = 30 * time.Minute
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.pretty_print_console", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "withdrawer")
	v.SetDefault("database.user", "dbuser")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "withdrawer.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("queue.backend", "sql")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.redis_key_prefix", "withdrawer")

	v.SetDefault("ledger.request_timeout", defaultRPCTimeout)
	v.SetDefault("ledger.rate_limit_rps", defaultRateLimitRPS)
	v.SetDefault("ledger.rate_limit_burst", defaultRateBurst)
	v.SetDefault("ledger.breaker_consecutive_failures", defaultBreakerFails)
	v.SetDefault("ledger.breaker_timeout", defaultBreakerWait)

	v.SetDefault("wallet.derivation_path", "m/44'/60'/0'/0/0")
	v.SetDefault("wallet.keystore_path", "keystore.json")
	v.SetDefault("wallet.assets_file", "assets.toml")

	v.SetDefault("engine.tick_interval", defaultTickInterval)
	v.SetDefault("engine.tick_timeout", defaultTickTimeout)
	v.SetDefault("engine.scan_window", defaultScanWindow)
	v.SetDefault("engine.fee_reserve", big.NewInt(defaultFeeReserve).String())
	v.SetDefault("engine.attached_value", big.NewInt(defaultFeeReserve).String())
	v.SetDefault("engine.exit_when_empty", true)

	v.SetDefault("alert.cooldown", defaultAlertCooldown)

	v.SetDefault("management.enabled", true)
	v.SetDefault("management.listen_address", ":8080")

	return v
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined above. A ".env" file in the working directory is
// loaded first if present; variables already set in the environment win.
func DefaultServiceConfigFromEnv() Server {
	if err := gotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	v := newViper()

	return Server{
		Logger: LoggerServer{
			Level:              util.LogLevelFromString(v.GetString("logger.level")),
			PrettyPrintConsole: v.GetBool("logger.pretty_print_console"),
		},
		Database: Database{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			Database:        v.GetString("database.name"),
			Username:        v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Queue: Queue{
			Backend:        v.GetString("queue.backend"),
			RedisAddr:      v.GetString("queue.redis_addr"),
			RedisPassword:  v.GetString("queue.redis_password"),
			RedisDB:        v.GetInt("queue.redis_db"),
			RedisKeyPrefix: v.GetString("queue.redis_key_prefix"),
		},
		Ledger: Ledger{
			RPCURLs:                    splitList(v.GetString("ledger.rpc_urls")),
			RequestTimeout:             v.GetDuration("ledger.request_timeout"),
			RateLimitRPS:               v.GetFloat64("ledger.rate_limit_rps"),
			RateLimitBurst:             v.GetInt("ledger.rate_limit_burst"),
			BreakerConsecutiveFailures: v.GetUint32("ledger.breaker_consecutive_failures"),
			BreakerTimeout:             v.GetDuration("ledger.breaker_timeout"),
		},
		Wallet: Wallet{
			Mnemonic:         v.GetString("wallet.mnemonic"),
			KeystorePath:     v.GetString("wallet.keystore_path"),
			KeystorePassword: v.GetString("wallet.keystore_password"),
			DerivationPath:   v.GetString("wallet.derivation_path"),
			AssetsFile:       v.GetString("wallet.assets_file"),
		},
		Engine: Engine{
			TickInterval:  v.GetDuration("engine.tick_interval"),
			TickTimeout:   v.GetDuration("engine.tick_timeout"),
			ScanWindow:    v.GetInt("engine.scan_window"),
			FeeReserve:    parseBigInt(v.GetString("engine.fee_reserve"), defaultFeeReserve),
			AttachedValue: parseBigInt(v.GetString("engine.attached_value"), defaultFeeReserve),
			ExitWhenEmpty: v.GetBool("engine.exit_when_empty"),
		},
		Alert: Alert{
			WebhookURL: v.GetString("alert.webhook_url"),
			Cooldown:   v.GetDuration("alert.cooldown"),
		},
		Management: Management{
			Enabled:       v.GetBool("management.enabled"),
			ListenAddress: v.GetString("management.listen_address"),
		},
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}

	return result
}

func parseBigInt(raw string, fallback int64) *big.Int {
	const base10 = 10
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), base10)
	if !ok || value.Sign() < 0 {
		log.Warn().Str("value", raw).Msg("Invalid integer amount in config, using default")
		return big.NewInt(fallback)
	}

	return value
}
