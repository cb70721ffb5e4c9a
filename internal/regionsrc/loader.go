package regionsrc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"regionmap/internal/logger"
	"regionmap/internal/metrics"
)

// Status of a load.
type Status int

const (
	StatusPending Status = iota
	StatusLoaded
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusUnavailable:
		return "unavailable"
	}
	return "pending"
}

// MarshalText makes Status render as its name in JSON.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Attempt kinds.
const (
	KindOK                = "ok"
	KindSourceUnavailable = "source_unavailable"
	KindParseFailure      = "parse_failure"
)

// Attempt records one try of one source.
type Attempt struct {
	Source   SourceDescriptor
	Kind     string
	Err      error
	Duration time.Duration
}

// LoadResult is the outcome of one run of the chain. Data and Source are set
// only when Status is StatusLoaded; Err is ErrExhausted when Status is
// StatusUnavailable.
type LoadResult struct {
	Status   Status
	Source   SourceDescriptor
	Data     Decoded
	Attempts []Attempt
	Err      error
}

// Loader runs the fallback chain. It holds no per-run state and may be shared
// between views.
type Loader struct {
	Sources []SourceDescriptor
	Fetcher Fetcher
	Log     *slog.Logger
}

func NewLoader(sources []SourceDescriptor, f Fetcher) *Loader {
	return &Loader{Sources: sources, Fetcher: f, Log: logger.Component("regionsrc")}
}

// Load tries each source in order and stops at the first that fetches and
// parses. alive is consulted before every attempt and before a loaded result
// is returned; once it reports false (or ctx is done) Load gives up and
// returns StatusPending, meaning there is nothing to commit. A nil alive
// counts as always alive.
func (l *Loader) Load(ctx context.Context, alive func() bool) LoadResult {
	log := l.Log
	if log == nil {
		log = logger.Component("regionsrc")
	}
	live := func() bool {
		return ctx.Err() == nil && (alive == nil || alive())
	}
	res := LoadResult{Status: StatusPending}
	for _, src := range l.Sources {
		if !live() {
			return l.stale(log, res)
		}
		start := time.Now()
		body, err := l.Fetcher.Fetch(ctx, src.URL)
		var dec Decoded
		if err == nil {
			dec, err = Decode(src.Format, body)
		}
		at := Attempt{Source: src, Kind: KindOK, Err: err, Duration: time.Since(start)}
		if err != nil {
			at.Kind = KindSourceUnavailable
			if errors.Is(err, ErrParse) {
				at.Kind = KindParseFailure
			}
		}
		res.Attempts = append(res.Attempts, at)
		metrics.SourceAttemptsTotal.WithLabelValues(src.URL, at.Kind).Inc()
		metrics.SourceFetchDurationMs.WithLabelValues(src.URL).Observe(float64(at.Duration.Milliseconds()))
		if err != nil {
			log.Warn("source_attempt_failed", "source", src.URL, "format", src.Format, "kind", at.Kind, "err", err)
			continue
		}
		if !live() {
			return l.stale(log, res)
		}
		res.Status = StatusLoaded
		res.Source = src
		res.Data = dec
		metrics.LoadsTotal.WithLabelValues(res.Status.String()).Inc()
		log.Info("source_loaded", "source", src.URL, "format", src.Format, "attempts", len(res.Attempts))
		return res
	}
	if !live() {
		return l.stale(log, res)
	}
	res.Status = StatusUnavailable
	res.Err = ErrExhausted
	metrics.LoadsTotal.WithLabelValues(res.Status.String()).Inc()
	log.Warn("sources_exhausted", "tried", len(res.Attempts))
	return res
}

func (l *Loader) stale(log *slog.Logger, res LoadResult) LoadResult {
	metrics.StaleCompletionsTotal.Inc()
	log.Debug("source_load_abandoned", "attempts", len(res.Attempts))
	res.Status = StatusPending
	return res
}
