package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"influxdb-listener/internal/domain"
)

var (
	ErrMissingPassword = errors.New("influxDBPassword is required when influxDBUser is set")
	ErrUnknownStorage  = errors.New("unknown storage type")
)

type Config struct {
	Run      domain.RunContext
	Samplers SamplersConfig
	Storage  StorageConfig
	InfluxDB InfluxDBConfig
	Sink     SinkConfig
}

type SamplersConfig struct {
	List               string
	UseRegex           bool
	RecordSubSamples   bool
	IncludeFailureBody bool
}

type StorageConfig struct {
	Type       string
	SQLitePath string
}

type InfluxDBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	RetentionPolicy string
	Timeout         time.Duration
}

// URL is the base address of the InfluxDB HTTP API.
func (c InfluxDBConfig) URL() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type SinkConfig struct {
	FlushInterval time.Duration
	BatchSize     int
}

// FromParams builds the listener configuration. Absent keys fall back to
// the same values the listener has always used when a host omits them.
func FromParams(p Params) (*Config, error) {
	var cfg Config

	cfg.Run = domain.RunContext{
		TestName: p.Get(KeyTestName, DefaultTestName),
		RunID:    p.Get(KeyRunID, DefaultRunID),
		NodeName: p.Get(KeyNodeName, DefaultNodeName),
	}

	cfg.Samplers = SamplersConfig{
		List:               p.Get(KeySamplersList, ""),
		UseRegex:           p.Bool(KeyUseRegexForSamplerList, false),
		RecordSubSamples:   p.Bool(KeyRecordSubSamples, false),
		IncludeFailureBody: p.Bool(KeyIncludeBodyOfFailures, false),
	}

	cfg.Storage = StorageConfig{
		Type:       p.Get(KeyStorageType, StorageInfluxDB),
		SQLitePath: p.Get(KeySQLitePath, DefaultSQLitePath),
	}

	port, err := p.Int(KeyInfluxDBPort, DefaultInfluxDBPort)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyInfluxDBPort, err)
	}
	timeoutMs, err := p.Int(KeyInfluxDBTimeoutMs, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyInfluxDBTimeoutMs, err)
	}
	cfg.InfluxDB = InfluxDBConfig{
		Host:            p.Get(KeyInfluxDBHost, DefaultInfluxDBHost),
		Port:            port,
		User:            p.Get(KeyInfluxDBUser, ""),
		Password:        p.Get(KeyInfluxDBPassword, ""),
		Database:        p.Get(KeyInfluxDBDatabase, DefaultDatabase),
		RetentionPolicy: p.Get(KeyRetentionPolicy, DefaultRetentionPolicy),
		Timeout:         time.Duration(timeoutMs) * time.Millisecond,
	}

	flushMs, err := p.Int(KeyInfluxDBFlushIntervalMs, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyInfluxDBFlushIntervalMs, err)
	}
	batchSize, err := p.Int(KeyInfluxDBBatchSize, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyInfluxDBBatchSize, err)
	}
	cfg.Sink = SinkConfig{
		FlushInterval: time.Duration(flushMs) * time.Millisecond,
		BatchSize:     batchSize,
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.InfluxDB.Timeout <= 0 {
		c.InfluxDB.Timeout = time.Minute
	}
	if c.InfluxDB.Host == "" {
		c.InfluxDB.Host = DefaultInfluxDBHost
	}
	if c.InfluxDB.Database == "" {
		c.InfluxDB.Database = DefaultDatabase
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = DefaultSQLitePath
	}
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case StorageInfluxDB:
		if c.InfluxDB.User != "" && c.InfluxDB.Password == "" {
			return ErrMissingPassword
		}
		if c.InfluxDB.Port <= 0 || c.InfluxDB.Port > 65535 {
			return fmt.Errorf("%s out of range: %d", KeyInfluxDBPort, c.InfluxDB.Port)
		}
	case StorageSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage.Type)
	}
	return nil
}

// Load reads a flat YAML mapping of parameter names to values.
func Load(path string) (Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	params := make(Params, len(values))
	for k, v := range values {
		if v == nil {
			params[k] = ""
			continue
		}
		params[k] = fmt.Sprint(v)
	}
	return params, nil
}
