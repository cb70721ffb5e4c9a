// Package regionsrc resolves region boundary data from an ordered list of
// candidate sources. The first source that both fetches and parses wins;
// failures of one source are logged and the next one is tried.
package regionsrc

import (
	"errors"
	"fmt"
	"strings"

	"regionmap/internal/topojson"

	"github.com/paulmach/orb/geojson"
)

var (
	// ErrSourceUnavailable covers network failures, non-2xx statuses and
	// missing files.
	ErrSourceUnavailable = errors.New("regionsrc: source unavailable")
	// ErrParse covers malformed bodies and unexpected schemas.
	ErrParse = errors.New("regionsrc: parse failure")
	// ErrExhausted is reported when every source failed.
	ErrExhausted = errors.New("regionsrc: all sources exhausted")
)

// StatusError is a non-2xx HTTP answer. It matches ErrSourceUnavailable.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("regionsrc: %s answered %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrSourceUnavailable }

// Format is the declared encoding of a source.
type Format string

const (
	FormatGeoJSON  Format = "geojson"
	FormatTopoJSON Format = "topojson"
)

// ParseFormat accepts the format names used in profiles.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geojson", "geo":
		return FormatGeoJSON, nil
	case "topojson", "topo":
		return FormatTopoJSON, nil
	}
	return "", fmt.Errorf("regionsrc: unknown format %q", s)
}

// SourceDescriptor is one candidate source.
type SourceDescriptor struct {
	URL    string `yaml:"url" json:"url"`
	Format Format `yaml:"format" json:"format"`
}

// Decoded is a parsed source body. Exactly one of Collection and Topology is
// set, according to Format.
type Decoded struct {
	Format     Format
	Collection *geojson.FeatureCollection
	Topology   *topojson.Topology
}

// Decode parses body as f.
func Decode(f Format, body []byte) (Decoded, error) {
	switch f {
	case FormatGeoJSON:
		fc, err := geojson.UnmarshalFeatureCollection(body)
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: geojson: %v", ErrParse, err)
		}
		return Decoded{Format: f, Collection: fc}, nil
	case FormatTopoJSON:
		t, err := topojson.Decode(body)
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return Decoded{Format: f, Topology: t}, nil
	}
	return Decoded{}, fmt.Errorf("%w: unsupported format %q", ErrParse, f)
}
