// Package charts serves the {label, value} series shown next to the map. The
// values are supplied from outside (profile or redis); nothing here generates
// data.
package charts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"regionmap/internal/logger"

	"github.com/redis/go-redis/v9"
)

// ErrUnknownSeries is returned for a name no provider knows.
var ErrUnknownSeries = errors.New("charts: unknown series")

// Point is one record of a series.
type Point struct {
	Label string  `yaml:"label" json:"label"`
	Value float64 `yaml:"value" json:"value"`
}

// Series is a named list of points. Kind is a rendering hint (bar, line, pie,
// area).
type Series struct {
	Name   string  `yaml:"name" json:"name"`
	Title  string  `yaml:"title" json:"title,omitempty"`
	Kind   string  `yaml:"kind" json:"kind,omitempty"`
	Points []Point `yaml:"points" json:"points"`
}

// Provider resolves series by name.
type Provider interface {
	Series(ctx context.Context, name string) (Series, error)
}

// Static serves a fixed set of series.
type Static struct {
	byName map[string]Series
	names  []string
}

func NewStatic(series []Series) *Static {
	s := &Static{byName: make(map[string]Series, len(series))}
	for _, x := range series {
		if _, dup := s.byName[x.Name]; !dup {
			s.names = append(s.names, x.Name)
		}
		s.byName[x.Name] = x
	}
	return s
}

func (s *Static) Series(_ context.Context, name string) (Series, error) {
	x, ok := s.byName[name]
	if !ok {
		return Series{}, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	return x, nil
}

// Names lists the series in profile order.
func (s *Static) Names() []string { return append([]string(nil), s.names...) }

// RedisGetter is the part of a redis client Redis needs.
type RedisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// KeyPrefix prefixes series stored in redis as JSON.
const KeyPrefix = "regionmap:chart:"

// Redis reads series pushed by an external job as JSON under KeyPrefix+name.
type Redis struct {
	rdb     RedisGetter
	timeout time.Duration
}

func NewRedis(rdb RedisGetter) *Redis { return &Redis{rdb: rdb, timeout: time.Second} }

func (r *Redis) Series(ctx context.Context, name string) (Series, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	b, err := r.rdb.Get(ctx, KeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return Series{}, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	if err != nil {
		return Series{}, err
	}
	var s Series
	if err := json.Unmarshal(b, &s); err != nil {
		return Series{}, fmt.Errorf("charts: decode %q: %w", name, err)
	}
	if s.Name == "" {
		s.Name = name
	}
	return s, nil
}

// Lister is implemented by providers that know their series up front.
type Lister interface {
	Names() []string
}

// Chain asks providers in order; the first answer wins. Errors other than
// ErrUnknownSeries are logged and skipped.
type Chain []Provider

func (c Chain) Series(ctx context.Context, name string) (Series, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		s, err := p.Series(ctx, name)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrUnknownSeries) {
			logger.L().Debug("chart_provider_error", "series", name, "err", err)
		}
	}
	return Series{}, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
}

// Names merges the names of every listing provider, first seen first.
func (c Chain) Names() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range c {
		l, ok := p.(Lister)
		if !ok {
			continue
		}
		for _, n := range l.Names() {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Total sums the values of s, used for share-of-total charts.
func Total(s Series) float64 {
	var t float64
	for _, p := range s.Points {
		t += p.Value
	}
	return t
}

// Sorted returns the points of s by descending value, ties by label.
func Sorted(s Series) []Point {
	out := append([]Point(nil), s.Points...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}
