package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/lib/pq"
	"github.com/mcuadros/go-defaults"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/graphflow/store"
	"github.com/warriorguo/graphflow/types"
)

var (
	_ store.Store = &pgStore{}
)

// Config holds PostgreSQL connection configuration
type Config struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"postgres"`
	Password string `default:"postgres"`
	Database string `default:"graphflow"`
	SSLMode  string `default:"disable"` // disable, require, verify-ca, verify-full

	// Table keeps every prefix/key pair of the store.
	Table string `default:"graphflow_store"`

	MaxOpenConns    int           `default:"10"`
	ConnMaxIdleTime time.Duration `default:"5m"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	defaults.SetDefaults(config)
	return config
}

// FromEngineConfig fills a Config from the engine options, unset fields keep
// their defaults.
func FromEngineConfig(c *types.PostgresConfig) *Config {
	config := DefaultConfig()
	if c == nil {
		return config
	}
	if c.Host != "" {
		config.Host = c.Host
	}
	if c.Port != 0 {
		config.Port = c.Port
	}
	if c.User != "" {
		config.User = c.User
	}
	if c.Password != "" {
		config.Password = c.Password
	}
	if c.Database != "" {
		config.Database = c.Database
	}
	if c.SSLMode != "" {
		config.SSLMode = c.SSLMode
	}
	return config
}

// pgStore implements Store with one row per prefix and key
type pgStore struct {
	db    *sql.DB
	table string

	getQuery    string
	setQuery    string
	removeQuery string
	listQuery   string
}

// NewPostgresStore connects with config and makes sure the table exists
func NewPostgresStore(ctx context.Context, config *Config) (store.Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open postgres connection")
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Annotatef(err, "failed to ping postgres at %s:%d", config.Host, config.Port)
	}

	s, err := newPgStore(ctx, db, config.Table)
	if err != nil {
		db.Close()
		return nil, errors.Trace(err)
	}
	log.Infof("postgres store ready on %s:%d/%s table %s", config.Host, config.Port, config.Database, config.Table)
	return s, nil
}

// NewPostgresStoreWithDB creates a store over an existing connection. An
// empty table means the default one.
func NewPostgresStoreWithDB(ctx context.Context, db *sql.DB, table string) (store.Store, error) {
	if db == nil {
		return nil, errors.BadRequestf("db cannot be nil")
	}
	if table == "" {
		table = DefaultConfig().Table
	}
	return newPgStore(ctx, db, table)
}

func newPgStore(ctx context.Context, db *sql.DB, table string) (*pgStore, error) {
	quoted := pq.QuoteIdentifier(table)
	s := &pgStore{
		db:          db,
		table:       table,
		getQuery:    fmt.Sprintf(`SELECT value FROM %s WHERE prefix = $1 AND key = $2`, quoted),
		removeQuery: fmt.Sprintf(`DELETE FROM %s WHERE prefix = $1 AND key = $2`, quoted),
		listQuery:   fmt.Sprintf(`SELECT key FROM %s WHERE prefix = $1 ORDER BY key`, quoted),
		setQuery: fmt.Sprintf(`
		INSERT INTO %s (prefix, key, value, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (prefix, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP`, quoted),
	}

	if err := s.initTable(ctx); err != nil {
		return nil, errors.Annotatef(err, "failed to initialize table %s", table)
	}
	return s, nil
}

func (p *pgStore) initTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			prefix VARCHAR(255) NOT NULL,
			key VARCHAR(255) NOT NULL,
			value BYTEA,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (prefix, key)
		);

		CREATE INDEX IF NOT EXISTS %s ON %s(prefix);
	`, pq.QuoteIdentifier(p.table), pq.QuoteIdentifier("idx_"+p.table+"_prefix"), pq.QuoteIdentifier(p.table))

	_, err := p.db.ExecContext(ctx, query)
	return errors.Trace(err)
}

func (p *pgStore) Get(ctx context.Context, prefix, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, p.getQuery, prefix, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Annotatef(err, "failed to get value for prefix=%s, key=%s", prefix, key)
	}
	return value, nil
}

func (p *pgStore) Set(ctx context.Context, prefix, key string, value []byte) error {
	if _, err := p.db.ExecContext(ctx, p.setQuery, prefix, key, value); err != nil {
		return errors.Annotatef(err, "failed to set value for prefix=%s, key=%s", prefix, key)
	}
	return nil
}

func (p *pgStore) Remove(ctx context.Context, prefix, key string) error {
	if _, err := p.db.ExecContext(ctx, p.removeQuery, prefix, key); err != nil {
		return errors.Annotatef(err, "failed to remove value for prefix=%s, key=%s", prefix, key)
	}
	return nil
}

// List walks the keys of prefix in order. Keys are read fully before the
// iterator runs so it can use the store without exhausting connections.
func (p *pgStore) List(ctx context.Context, prefix string, iterator func(key string) bool) error {
	rows, err := p.db.QueryContext(ctx, p.listQuery, prefix)
	if err != nil {
		return errors.Annotatef(err, "failed to list keys for prefix=%s", prefix)
	}

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return errors.Annotatef(err, "failed to scan key")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.Annotatef(err, "error iterating rows")
	}
	rows.Close()

	for _, key := range keys {
		if !iterator(key) {
			break
		}
	}
	return nil
}

// Close closes the database connection
func (p *pgStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// DSN builds a PostgreSQL connection string from Config
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.NotValidf("empty host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NotValidf("port %d", c.Port)
	}
	if c.User == "" {
		return errors.NotValidf("empty user")
	}
	if c.Database == "" {
		return errors.NotValidf("empty database")
	}
	if c.Table == "" {
		c.Table = "graphflow_store"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if !validSSLModes[c.SSLMode] {
		return errors.NotValidf("sslmode %s", c.SSLMode)
	}
	return nil
}

// ParseDSN parses a PostgreSQL connection string into a Config
// Format: "host=localhost port=5432 user=postgres password=secret dbname=graphflow sslmode=disable"
func ParseDSN(dsn string) (*Config, error) {
	config := DefaultConfig()

	for _, part := range strings.Fields(dsn) {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}

		switch key {
		case "host":
			config.Host = value
		case "port":
			var port int
			if _, err := fmt.Sscanf(value, "%d", &port); err == nil {
				config.Port = port
			}
		case "user":
			config.User = value
		case "password":
			config.Password = value
		case "dbname":
			config.Database = value
		case "sslmode":
			config.SSLMode = value
		}
	}

	return config, config.Validate()
}
