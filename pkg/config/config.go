package config

import (
	"time"
)

type DB struct {
	Url             string        `envconfig:"URL" default:"file:bankcards.db"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"true"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
	Issuer string        `envconfig:"ISSUER" default:"bankcards"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// Idempotency configures the request deduplication store. An empty Redis URL
// selects the in-memory store.
type Idempotency struct {
	TTL      time.Duration `envconfig:"TTL" default:"3600s"`
	ClaimTTL time.Duration `envconfig:"CLAIM_TTL" default:"30s"`
	Prefix   string        `envconfig:"PREFIX" default:"bankcards:idem:"`
}

type Ledger struct {
	LockTimeout time.Duration `envconfig:"LOCK_TIMEOUT" default:"5s"`
}

type Card struct {
	DefaultCurrency string `envconfig:"DEFAULT_CURRENCY" default:"RUB"`
	NumberPrefix    string `envconfig:"NUMBER_PREFIX" default:"4000"`
	ValidityYears   int    `envconfig:"VALIDITY_YEARS" default:"4"`
	// EncryptionKey is a 32 byte AES-256 key, hex or base64 encoded.
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" required:"true"`
	// IndexKey keys the HMAC used to look cards up by number.
	IndexKey       string `envconfig:"INDEX_KEY" required:"true"`
	ExpirySchedule string `envconfig:"EXPIRY_SCHEDULE" default:"@daily"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[bankcards]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env         string       `envconfig:"APP_ENV" default:"development"`
	Server      *Server      `envconfig:"SERVER"`
	Log         *Log         `envconfig:"LOG"`
	DB          *DB          `envconfig:"DATABASE"`
	Auth        *Auth        `envconfig:"AUTH"`
	Redis       *Redis       `envconfig:"REDIS"`
	Idempotency *Idempotency `envconfig:"IDEMPOTENCY"`
	Ledger      *Ledger      `envconfig:"LEDGER"`
	Card        *Card        `envconfig:"CARD"`
}
