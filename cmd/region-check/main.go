package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"regionmap/internal/config"
	"regionmap/internal/logger"
	"regionmap/internal/regionindex"
	"regionmap/internal/regionsrc"
)

type attempt struct {
	URL        string `json:"url"`
	Format     string `json:"format"`
	Kind       string `json:"kind"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type report struct {
	Profile  string             `json:"profile"`
	Status   regionsrc.Status   `json:"status"`
	Source   string             `json:"source,omitempty"`
	Attempts []attempt          `json:"attempts"`
	Stats    *regionindex.Stats `json:"stats,omitempty"`
	Sample   []string           `json:"sample,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Runs the profile's source chain once, without redis, and prints what the
// server would index. Exits 1 when no overlay would be shown.
func main() {
	config.LoadDotEnv()
	l := logger.Setup()
	env := config.FromEnv()
	profile, err := config.LoadProfile(env.ProfilePath)
	if err != nil {
		l.Error("profile_error", "path", env.ProfilePath, "err", err)
		os.Exit(1)
	}

	var f regionsrc.Fetcher = regionsrc.DirFetcher{FS: os.DirFS(env.AssetDir)}
	if env.AssetBaseURL != "" {
		f = &regionsrc.HTTPFetcher{Client: &http.Client{Timeout: env.FetchTimeout}, BaseURL: env.AssetBaseURL}
	}
	ctx, cancel := context.WithTimeout(context.Background(), env.FetchTimeout*time.Duration(len(profile.Sources)+1))
	defer cancel()
	res := regionsrc.NewLoader(profile.Sources, f).Load(ctx, nil)

	rep := report{Profile: profile.Name, Status: res.Status, Attempts: []attempt{}}
	for _, a := range res.Attempts {
		at := attempt{URL: a.Source.URL, Format: string(a.Source.Format), Kind: a.Kind, DurationMs: a.Duration.Milliseconds()}
		if a.Err != nil {
			at.Error = a.Err.Error()
		}
		rep.Attempts = append(rep.Attempts, at)
	}
	if res.Status == regionsrc.StatusLoaded {
		rep.Source = res.Source.URL
		ix, st, err := regionindex.Build(res.Data, profile.IndexOptions())
		if err != nil {
			rep.Status = regionsrc.StatusUnavailable
			rep.Error = err.Error()
		} else {
			rep.Stats = &st
			for i, feat := range ix.Features() {
				if i == 5 {
					break
				}
				rep.Sample = append(rep.Sample, feat.ID)
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
	if rep.Status != regionsrc.StatusLoaded {
		os.Exit(1)
	}
}
