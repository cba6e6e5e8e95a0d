package main

import (
	"context"
	"errors"
	"fmt"

	"briefer/internal/checkpoint"
	"briefer/internal/config"
	"briefer/internal/logging"
	"briefer/internal/perception"
	"briefer/internal/pipeline"
	"briefer/internal/retry"
	"briefer/internal/store"
	"briefer/internal/tools/research"
)

// app holds the process-wide resources shared by every run.
type app struct {
	cfg      *config.Config
	models   perception.Models
	history  store.HistoryStore
	local    *store.LocalStore // checkpoint database, may be nil
	pipeline *pipeline.Pipeline
	closers  []func() error
}

func historyOptions(c *config.Config) store.Options {
	return store.Options{
		Backend:             c.History.Backend,
		DatabasePath:        c.History.DatabasePath,
		JSONPath:            c.History.JSONPath,
		FirestoreProject:    c.History.FirestoreProject,
		FirestoreCollection: c.History.FirestoreCollection,
	}
}

// openStores opens the history backend and, when checkpoints go to SQLite,
// the local database (shared with history for the sqlite backend).
func openStores(ctx context.Context, c *config.Config, a *app) error {
	history, err := store.OpenHistory(ctx, historyOptions(c))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	a.history = history
	a.closers = append(a.closers, history.Close)

	if local, ok := history.(*store.LocalStore); ok {
		a.local = local
		return nil
	}
	if c.Checkpoint.SQLite {
		local, err := store.NewLocalStore(c.History.DatabasePath)
		if err != nil {
			return fmt.Errorf("open checkpoint database: %w", err)
		}
		a.local = local
		a.closers = append(a.closers, local.Close)
	}
	return nil
}

// newApp wires the full pipeline from config.
func newApp(ctx context.Context, c *config.Config) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &app{cfg: c}
	if err := openStores(ctx, c, a); err != nil {
		a.Close()
		return nil, err
	}

	models, err := perception.NewModelsFromConfig(ctx, c.LLM, c.GetLLMTimeout())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init models: %w", err)
	}
	a.models = models

	var sinks checkpoint.MultiSink
	if c.Checkpoint.Dir != "" {
		sinks = append(sinks, checkpoint.NewFileSink(c.Checkpoint.Dir))
	}
	if c.Checkpoint.SQLite && a.local != nil {
		sinks = append(sinks, store.NewCheckpointStore(a.local))
	}
	var recorder *checkpoint.Recorder
	if len(sinks) > 0 {
		recorder = checkpoint.NewRecorder(sinks)
	}

	var fetcher research.Fetcher
	if c.Research.Browser {
		bf := research.NewBrowserFetcher(research.BrowserConfig{
			Headless: true,
			Timeout:  c.GetFetchTimeout(),
			MaxChars: c.Research.MaxPageChars,
		})
		a.closers = append(a.closers, bf.Close)
		fetcher = bf
	} else {
		fetcher = research.NewHTTPFetcher(c.Research.UserAgent, c.GetFetchTimeout(), c.Research.MaxPageChars)
	}
	fetcher = research.NewCachedFetcher(fetcher, research.NewResearchCache(c.Research.CacheSize, c.GetCacheTTL()))

	p, err := pipeline.New(pipeline.Deps{
		Models:   models,
		Searcher: research.NewDuckDuckGoSearcher(c.Research.SearchURL, c.Research.UserAgent, 0),
		Fetcher:  fetcher,
		History:  a.history,
		Recorder: recorder,
	}, pipeline.Options{
		Retry:            retry.Config{MaxRetries: c.Pipeline.MaxRetries, Backoff: c.GetRetryBackoff()},
		FetchConcurrency: c.Pipeline.FetchConcurrency,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	logging.Boot("pipeline ready: provider=%s history=%s checkpoints=%d sink(s)", c.LLM.Provider, c.History.Backend, len(sinks))
	return a, nil
}

// logUsage reports generation call statistics for the process so far.
func (a *app) logUsage() {
	for name, client := range map[string]perception.LLMClient{"fast": a.models.Fast, "deep": a.models.Deep} {
		tc, ok := client.(*perception.TracingClient)
		if !ok {
			continue
		}
		s := tc.Stats()
		logging.Perception("%s model: calls=%d failures=%d prompt_chars=%d reply_chars=%d total=%dms",
			name, s.Calls, s.Failures, s.PromptChars, s.ReplyChars, s.TotalMillis)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
