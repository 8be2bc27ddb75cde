package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Precision string

const (
	PrecisionNanoseconds  Precision = "ns"
	PrecisionMilliseconds Precision = "ms"
)

var (
	ErrNoFields         = errors.New("point has no fields")
	ErrNoMeasurement    = errors.New("point has no measurement name")
	ErrDuplicateKey     = errors.New("tag and field keys overlap")
	ErrUnsupportedField = errors.New("unsupported field value type")
)

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Field values are string, int64 or float64.
type Field struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Point is one timestamped record of a measurement.
type Point struct {
	Measurement string    `json:"measurement"`
	Time        time.Time `json:"time"`
	Precision   Precision `json:"precision"`
	Tags        []Tag     `json:"tags"`
	Fields      []Field   `json:"fields"`
}

func NewPoint(measurement string, t time.Time, precision Precision) *Point {
	return &Point{Measurement: measurement, Time: t, Precision: precision}
}

func (p *Point) Tag(key, value string) *Point {
	p.Tags = append(p.Tags, Tag{Key: key, Value: value})
	return p
}

func (p *Point) AddField(key string, value interface{}) *Point {
	p.Fields = append(p.Fields, Field{Key: key, Value: value})
	return p
}

// TagValue returns the value of the tag with the given key.
func (p Point) TagValue(key string) (string, bool) {
	for _, t := range p.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// FieldValue returns the value of the field with the given key.
func (p Point) FieldValue(key string) (interface{}, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (p Point) TagMap() map[string]string {
	m := make(map[string]string, len(p.Tags))
	for _, t := range p.Tags {
		m[t.Key] = t.Value
	}
	return m
}

func (p Point) FieldMap() map[string]interface{} {
	m := make(map[string]interface{}, len(p.Fields))
	for _, f := range p.Fields {
		m[f.Key] = f.Value
	}
	return m
}

func (p Point) Validate() error {
	if p.Measurement == "" {
		return ErrNoMeasurement
	}
	if len(p.Fields) == 0 {
		return ErrNoFields
	}

	tagKeys := make(map[string]struct{}, len(p.Tags))
	for _, t := range p.Tags {
		tagKeys[t.Key] = struct{}{}
	}
	for _, f := range p.Fields {
		if _, ok := tagKeys[f.Key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, f.Key)
		}
		switch f.Value.(type) {
		case string, int64, float64:
		default:
			return fmt.Errorf("%w: %s=%T", ErrUnsupportedField, f.Key, f.Value)
		}
	}
	return nil
}

// PointStore is the storage backend behind the write sink.
type PointStore interface {
	Init() error
	ListStorages(ctx context.Context) ([]string, error)
	CreateStorage(ctx context.Context, name string) error
	WritePoints(ctx context.Context, points []Point) error
	Close() error
}
