package connection

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings is a validated, named configuration for one database target.
//
// Construct with NewSettings or FromNameAndDSN; zero values for the optional
// fields mean "leave the driver default in place". DefaultSettings carries the
// documented defaults. The DSN component accessors (Host/SetHost and friends)
// read and write through to the underlying DSN value, so mutating an accessor
// mutates the DSN in place.
type Settings struct {
	// Name uniquely identifies this target (required).
	Name string
	// DSN is the connection-target descriptor (required).
	DSN *DSN

	// Behavioral
	Echo     bool   // log SQL statements
	Encoding string // client encoding, default "utf8"
	Timezone string // IANA timezone name, default "UTC"
	ReadOnly bool   // open connections in read-only mode

	// Timeouts
	ConnectionTimeout time.Duration // bound on acquiring a connection, default 10s
	CommandTimeout    time.Duration // bound on statement execution, 0 = none

	// Pooling
	PoolMinConnections int           // default 5
	PoolMaxConnections int           // default 10
	PoolMaxOverflow    int           // connections beyond the pool size limit, default 10
	PoolMaxIdleTime    time.Duration // default 5m
	PoolMaxLifetime    time.Duration // default 1h
	PoolRecycleTime    time.Duration // default 30m
	PoolPrePing        bool          // health-check pooled connections, default true

	// TCP keepalives
	Keepalives         bool          // default true
	KeepalivesIdle     time.Duration // default 60s
	KeepalivesInterval time.Duration // default 10s
	KeepalivesCount    int           // default 5
}

// DefaultSettings returns a Settings with every optional field at its
// documented default. Name and DSN are left for the caller.
func DefaultSettings() Settings {
	return Settings{
		Encoding:           "utf8",
		Timezone:           "UTC",
		ConnectionTimeout:  10 * time.Second,
		PoolMinConnections: 5,
		PoolMaxConnections: 10,
		PoolMaxOverflow:    10,
		PoolMaxIdleTime:    5 * time.Minute,
		PoolMaxLifetime:    time.Hour,
		PoolRecycleTime:    30 * time.Minute,
		PoolPrePing:        true,
		Keepalives:         true,
		KeepalivesIdle:     60 * time.Second,
		KeepalivesInterval: 10 * time.Second,
		KeepalivesCount:    5,
	}
}

// NewSettings creates validated settings for a named target.
func NewSettings(name string, dsn *DSN) (*Settings, error) {
	if name == "" {
		return nil, ErrMissingName
	}
	if dsn == nil {
		return nil, fmt.Errorf("%w: settings %q built without a DSN", ErrInvalidDSN, name)
	}
	s := DefaultSettings()
	s.Name = name
	s.DSN = dsn
	return &s, nil
}

// FromNameAndDSN creates validated settings from a name and a DSN string.
func FromNameAndDSN(name, dsn string) (*Settings, error) {
	parsed, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewSettings(name, parsed)
}

// DSN component accessors. Each reads and writes the DSN in place.

func (s *Settings) Driver() string          { return s.DSN.Driver }
func (s *Settings) SetDriver(driver string) { s.DSN.Driver = driver }

func (s *Settings) Username() string      { return s.DSN.Username }
func (s *Settings) SetUsername(u string)  { s.DSN.Username = u }
func (s *Settings) Password() string      { return s.DSN.Password }
func (s *Settings) SetPassword(p string)  { s.DSN.Password = p }
func (s *Settings) Host() string          { return s.DSN.Host }
func (s *Settings) SetHost(host string)   { s.DSN.Host = host }
func (s *Settings) Port() int             { return s.DSN.Port }
func (s *Settings) SetPort(port int)      { s.DSN.Port = port }
func (s *Settings) Database() string      { return s.DSN.Database }
func (s *Settings) SetDatabase(db string) { s.DSN.Database = db }
func (s *Settings) Query() url.Values     { return s.DSN.Query }

// PoolConfig maps the settings onto pgxpool engine-construction parameters.
// Unset optional values are left alone so the driver's own defaults apply.
func (s *Settings) PoolConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(s.DSN.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}

	if s.PoolMinConnections > 0 {
		cfg.MinConns = int32(s.PoolMinConnections)
	}
	if s.PoolMaxConnections > 0 {
		cfg.MaxConns = int32(s.PoolMaxConnections + s.PoolMaxOverflow)
	}
	if lifetime := s.connLifetime(); lifetime > 0 {
		cfg.MaxConnLifetime = lifetime
	}
	if s.PoolMaxIdleTime > 0 {
		cfg.MaxConnIdleTime = s.PoolMaxIdleTime
	}
	if s.PoolPrePing {
		cfg.HealthCheckPeriod = 30 * time.Second
	}
	if s.ConnectionTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = s.ConnectionTimeout
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	params := cfg.ConnConfig.RuntimeParams
	if s.Encoding != "" {
		params["client_encoding"] = s.Encoding
	}
	if s.Timezone != "" {
		params["TimeZone"] = s.Timezone
	}
	if s.CommandTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(s.CommandTimeout.Milliseconds(), 10)
	}
	if s.ReadOnly {
		params["default_transaction_read_only"] = "on"
	}

	if s.Keepalives {
		dialer := &net.Dialer{
			Timeout: s.ConnectionTimeout,
			KeepAliveConfig: net.KeepAliveConfig{
				Enable:   true,
				Idle:     s.KeepalivesIdle,
				Interval: s.KeepalivesInterval,
				Count:    s.KeepalivesCount,
			},
		}
		cfg.ConnConfig.DialFunc = dialer.DialContext
	}

	return cfg, nil
}

// connLifetime resolves the effective maximum connection lifetime: the recycle
// time and hard lifetime both bound it, whichever is shorter.
func (s *Settings) connLifetime() time.Duration {
	switch {
	case s.PoolRecycleTime > 0 && s.PoolMaxLifetime > 0:
		if s.PoolRecycleTime < s.PoolMaxLifetime {
			return s.PoolRecycleTime
		}
		return s.PoolMaxLifetime
	case s.PoolRecycleTime > 0:
		return s.PoolRecycleTime
	default:
		return s.PoolMaxLifetime
	}
}
