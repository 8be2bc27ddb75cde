package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"influxdb-listener/internal/domain"
)

var ErrNotInitialized = errors.New("influxdb client is not initialized")

type InfluxConfig struct {
	URL             string
	Username        string
	Password        string
	Database        string
	RetentionPolicy string
	Timeout         time.Duration
}

// InfluxStore writes points to an InfluxDB 1.x server over HTTP.
type InfluxStore struct {
	cfg    InfluxConfig
	client client.Client
}

func NewInfluxStore(cfg InfluxConfig) *InfluxStore {
	return &InfluxStore{cfg: cfg}
}

func (s *InfluxStore) Init() error {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     s.cfg.URL,
		Username: s.cfg.Username,
		Password: s.cfg.Password,
		Timeout:  s.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("error creating influxdb client: %w", err)
	}
	s.client = c
	return nil
}

func (s *InfluxStore) query(ctx context.Context, command string) (*client.Response, error) {
	if s.client == nil {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.client.Query(client.NewQuery(command, "", ""))
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *InfluxStore) ListStorages(ctx context.Context) ([]string, error) {
	resp, err := s.query(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("error listing databases: %w", err)
	}

	var names []string
	for _, result := range resp.Results {
		for _, row := range result.Series {
			for _, values := range row.Values {
				if len(values) == 0 {
					continue
				}
				names = append(names, fmt.Sprint(values[0]))
			}
		}
	}
	return names, nil
}

func (s *InfluxStore) CreateStorage(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("database name must not be empty")
	}
	if _, err := s.query(ctx, fmt.Sprintf(`CREATE DATABASE "%s"`, escapeIdent(name))); err != nil {
		return fmt.Errorf("error creating database %s: %w", name, err)
	}
	return nil
}

// WritePoints sends points in a single request. All points are expected to
// share the precision of the first one.
func (s *InfluxStore) WritePoints(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	if s.client == nil {
		return ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:        s.cfg.Database,
		RetentionPolicy: s.cfg.RetentionPolicy,
		Precision:       string(points[0].Precision),
	})
	if err != nil {
		return fmt.Errorf("error creating batch: %w", err)
	}

	for _, p := range points {
		pt, err := client.NewPoint(p.Measurement, p.TagMap(), p.FieldMap(), p.Time)
		if err != nil {
			return fmt.Errorf("error building point %s: %w", p.Measurement, err)
		}
		bp.AddPoint(pt)
	}

	if err := s.client.Write(bp); err != nil {
		return fmt.Errorf("error writing to influxdb: %w", err)
	}
	return nil
}

func (s *InfluxStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func escapeIdent(name string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
}

var _ domain.PointStore = (*InfluxStore)(nil)
