// Package ingest keeps Repo documents fresh. A periodic sweep enumerates
// every layer; a REST-side trigger schedules a single layer after a save.
// Both feed the same worker pool through an in-flight registry keyed by
// layer id, so two runs for the same id never execute in parallel.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/store"
	"github.com/layersite/layersite/pkg/logger"
	"github.com/layersite/layersite/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

const (
	rulesSuffix  = ".rules"
	schemaSuffix = ".schema"
)

// Options tunes the scheduler. Zero values fall back to sensible defaults.
type Options struct {
	Interval      time.Duration
	Workers       int
	QueueSize     int
	RunTimeout    time.Duration
	FallbackToken string
	Archive       *Archive
}

type job struct {
	layerID string
	token   string
}

// Scheduler owns the worker pool and the in-flight registry.
type Scheduler struct {
	store      store.Store
	kinds      *document.KindSet
	provider   ContentProvider
	archive    *Archive
	fallback   string
	interval   time.Duration
	runTimeout time.Duration
	nworkers   int

	mu       sync.Mutex
	inflight map[string]struct{}
	queue    chan job
	closed   bool
	wg       sync.WaitGroup
}

func NewScheduler(s store.Store, kinds *document.KindSet, provider ContentProvider, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 12 * time.Hour
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	return &Scheduler{
		store:      s,
		kinds:      kinds,
		provider:   provider,
		archive:    opts.Archive,
		fallback:   opts.FallbackToken,
		interval:   opts.Interval,
		runTimeout: opts.RunTimeout,
		nworkers:   opts.Workers,
		inflight:   map[string]struct{}{},
		queue:      make(chan job, opts.QueueSize),
	}
}

// Run starts the workers and the periodic sweep. Cancelling ctx stops new
// ticks and closes the queue; in-flight runs finish. Call Wait to drain.
func (s *Scheduler) Run(ctx context.Context) {
	for i := 0; i < s.nworkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the loop and all workers have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.sweep()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.closed = true
			close(s.queue)
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep enumerates every layer and schedules an ingest for each. A layer
// already in flight is skipped; the next sweep covers it.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	layers, err := s.store.Find(ctx, s.kinds.Layers, bson.M{}, s.kinds.Layers.DefaultSort)
	if err != nil {
		logger.Warnf("ingest: sweep enumeration failed: %v", err)
		return
	}
	for _, layer := range layers {
		s.Trigger(layer.ID(), "")
	}
}

// Trigger schedules one ingest run for a layer id. A second trigger for an id
// already in flight is dropped as redundant. Returns whether the run was
// accepted. token is the delegated repository credential; empty falls back to
// the configured unscoped token.
func (s *Scheduler) Trigger(layerID, token string) bool {
	if layerID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, busy := s.inflight[layerID]; busy {
		metrics.IngestRuns.WithLabelValues("skipped").Inc()
		logger.Debugf("ingest: %s already in flight, dropping trigger", layerID)
		return false
	}
	select {
	case s.queue <- job{layerID: layerID, token: token}:
		s.inflight[layerID] = struct{}{}
		return true
	default:
		logger.Warnf("ingest: queue full, dropping trigger for %s", layerID)
		metrics.IngestRuns.WithLabelValues("skipped").Inc()
		return false
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for j := range s.queue {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		err := s.Ingest(ctx, j.layerID, j.token)
		cancel()
		s.mu.Lock()
		delete(s.inflight, j.layerID)
		s.mu.Unlock()
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.IngestRuns.WithLabelValues("error").Inc()
			logger.Warnf("ingest: %s failed: %v", j.layerID, err)
			continue
		}
		metrics.IngestRuns.WithLabelValues("ok").Inc()
	}
}

// Ingest fetches the layer's repository content and materializes the Repo
// document: readme text plus every top-level *.rules and *.schema file parsed
// as YAML. Idempotent: unchanged source content yields an equivalent document
// modulo lastmodified.
func (s *Scheduler) Ingest(ctx context.Context, layerID, token string) error {
	if token == "" {
		token = s.fallback
	}
	layer, err := s.store.LoadOne(ctx, s.kinds.Layers, layerID)
	if err != nil {
		return err
	}
	if layer.IsSkeleton() {
		return fmt.Errorf("unknown layer %q", layerID)
	}
	repoURL, _ := layer.Fields["repo"].(string)
	if repoURL == "" {
		return fmt.Errorf("layer %q has no repo url", layerID)
	}
	logger.Infof("ingest: %s from %s", layerID, repoURL)

	readme, err := s.provider.Readme(ctx, repoURL, token)
	if err != nil {
		return fmt.Errorf("readme: %w", err)
	}
	entries, err := s.provider.ListDirectory(ctx, repoURL, token)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	rules, schemas, err := s.collect(ctx, layerID, entries, token)
	if err != nil {
		return err
	}
	s.snapshot(ctx, layerID, "README", []byte(readme))

	doc := document.New(s.kinds.Repos)
	doc.Fields["id"] = layerID
	doc.Fields["readme"] = readme
	doc.Fields["rules"] = rules
	doc.Fields["schema"] = schemas
	if err := doc.Validate(); err != nil {
		return err
	}
	return s.store.Upsert(ctx, s.kinds.Repos, doc)
}

// collect fetches and parses the matching top-level files. Output is sorted
// by path so repeated runs produce identical documents.
func (s *Scheduler) collect(ctx context.Context, layerID string, entries []Entry, token string) (rules, schemas []any, err error) {
	rules, schemas = []any{}, []any{}
	for _, e := range entries {
		if e.Type != "file" {
			continue
		}
		isRules := strings.HasSuffix(e.Name, rulesSuffix)
		isSchema := strings.HasSuffix(e.Name, schemaSuffix)
		if !isRules && !isSchema {
			continue
		}
		raw, err := s.provider.FetchContent(ctx, e.URL, token)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s: %w", e.Path, err)
		}
		s.snapshot(ctx, layerID, e.Path, raw)
		var parsed any
		if err := yaml.Unmarshal(raw, &parsed); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", e.Path, err)
		}
		item := map[string]any{"path": e.Path, "content": parsed}
		if isRules {
			rules = append(rules, item)
		} else {
			schemas = append(schemas, item)
		}
	}
	sortByPath(rules)
	sortByPath(schemas)
	return rules, schemas, nil
}

func sortByPath(items []any) {
	sort.SliceStable(items, func(i, j int) bool {
		a, _ := items[i].(map[string]any)
		b, _ := items[j].(map[string]any)
		ap, _ := a["path"].(string)
		bp, _ := b["path"].(string)
		return ap < bp
	})
}

// snapshot archives the raw fetched bytes, best-effort.
func (s *Scheduler) snapshot(ctx context.Context, layerID, path string, raw []byte) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Put(ctx, layerID+"/"+path, raw); err != nil {
		logger.Warnf("ingest: snapshot %s/%s failed: %v", layerID, path, err)
	}
}
