// Package synchronizer keeps the local store in line with the SDK API. It
// runs full resyncs, the polling loops used when streaming is unavailable and
// the targeted refreshes requested by streamed notifications.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/flagsync/internal/fetcher"
	"github.com/stacklok/flagsync/internal/httpclient"
	"github.com/stacklok/flagsync/internal/otel"
	"github.com/stacklok/flagsync/internal/storage"
	"github.com/stacklok/flagsync/internal/telemetry"
)

const (
	// DefaultFeaturesRefreshRate is the split polling interval
	DefaultFeaturesRefreshRate = 60 * time.Second

	// DefaultSegmentsRefreshRate is the segment polling interval
	DefaultSegmentsRefreshRate = 60 * time.Second

	// DefaultSegmentConcurrency bounds parallel segment fetches
	DefaultSegmentConcurrency = 10

	// DefaultRetryBackoffBase is the first delay between failed fetches
	DefaultRetryBackoffBase = time.Second

	// DefaultRetryBackoffMax caps the delay between failed fetches
	DefaultRetryBackoffMax = time.Minute

	// DefaultSyncAllMaxElapsed bounds how long a full resync keeps retrying
	DefaultSyncAllMaxElapsed = 15 * time.Minute

	// onDemandFetchAttempts is how many plain fetches a targeted refresh tries
	// before asking for the exact change number
	onDemandFetchAttempts = 10

	// pollingJitter is the fraction of the polling interval applied as random offset
	pollingJitter = 0.1

	syncKindFull     = "full"
	syncKindSplits   = "splits"
	syncKindSegments = "segments"
	syncKindSegment  = "segment"
)

var errChangeNumberNotReached = errors.New("fetched data is older than the requested change number")

// Option configures the synchronizer
type Option func(*Synchronizer)

// WithRefreshRates sets the split and segment polling intervals
func WithRefreshRates(features, segments time.Duration) Option {
	return func(s *Synchronizer) {
		if features > 0 {
			s.featuresRate = features
		}
		if segments > 0 {
			s.segmentsRate = segments
		}
	}
}

// WithSegmentConcurrency bounds how many segments are fetched in parallel
func WithSegmentConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.segmentConcurrency = n
		}
	}
}

// WithRetryBackoff sets the delays between failed fetches
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(s *Synchronizer) {
		if base > 0 {
			s.retryBase = base
		}
		if maxDelay > 0 {
			s.retryMax = maxDelay
		}
	}
}

// WithSyncAllMaxElapsed bounds how long a full resync keeps retrying
func WithSyncAllMaxElapsed(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.syncAllMaxElapsed = d
		}
	}
}

// WithSyncMetrics records fetch durations and change numbers on m
func WithSyncMetrics(m *telemetry.SyncMetrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithTracer creates spans around fetches
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Synchronizer) {
		s.tracer = tracer
	}
}

// Synchronizer fetches changes into the store
type Synchronizer struct {
	fetcher fetcher.Fetcher
	storage storage.Storage

	featuresRate       time.Duration
	segmentsRate       time.Duration
	segmentConcurrency int
	retryBase          time.Duration
	retryMax           time.Duration
	syncAllMaxElapsed  time.Duration
	metrics            *telemetry.SyncMetrics
	tracer             trace.Tracer

	// Full resync requests, coalesced
	requests chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}

	// Serializes split fetches so change numbers only move forward
	splitsMu     sync.Mutex
	segmentLocks sync.Map

	mu         sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a synchronizer and starts its resync loop. Close stops it.
func New(f fetcher.Fetcher, store storage.Storage, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		fetcher:            f,
		storage:            store,
		featuresRate:       DefaultFeaturesRefreshRate,
		segmentsRate:       DefaultSegmentsRefreshRate,
		segmentConcurrency: DefaultSegmentConcurrency,
		retryBase:          DefaultRetryBackoffBase,
		retryMax:           DefaultRetryBackoffMax,
		syncAllMaxElapsed:  DefaultSyncAllMaxElapsed,
		requests:           make(chan struct{}, 1),
		ctx:                ctx,
		cancel:             cancel,
		loopDone:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.resyncLoop()
	return s
}

// SyncAll requests a full resync and returns immediately. Requests made while
// one is pending are merged into it.
func (s *Synchronizer) SyncAll() {
	select {
	case s.requests <- struct{}{}:
	default:
		slog.Debug("Full resync already pending")
	}
}

// StartPeriodicFetching starts the polling loops. Calling it while they run
// is a no-op.
func (s *Synchronizer) StartPeriodicFetching() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.pollCancel = cancel
	s.pollDone = done

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.poll(ctx, syncKindSplits, s.featuresRate, s.fetchSplits)
	}()
	go func() {
		defer wg.Done()
		s.poll(ctx, syncKindSegments, s.segmentsRate, s.fetchAllSegments)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	slog.Info("Periodic fetching started",
		"features_refresh_rate", s.featuresRate,
		"segments_refresh_rate", s.segmentsRate)
}

// StopPeriodicFetching stops the polling loops and waits for them to exit.
// Calling it while they are stopped is a no-op.
func (s *Synchronizer) StopPeriodicFetching() {
	s.mu.Lock()
	cancel, done := s.pollCancel, s.pollDone
	s.pollCancel = nil
	s.pollDone = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("Periodic fetching stopped")
}

// Polling reports whether the polling loops are running
func (s *Synchronizer) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCancel != nil
}

// Close stops polling and the resync loop
func (s *Synchronizer) Close() {
	s.StopPeriodicFetching()
	s.cancel()
	<-s.loopDone
}

// RefreshSplits fetches split changes until the store reaches changeNumber.
// It returns immediately if the store is already there.
func (s *Synchronizer) RefreshSplits(ctx context.Context, changeNumber int64) (err error) {
	ctx, span := otel.Start(ctx, s.tracer, otel.SpanRefreshSplits, otel.AttrTargetTill.Int64(changeNumber))
	defer func() { otel.End(span, err) }()

	reached := func() (bool, error) {
		local, err := s.storage.SplitsChangeNumber(ctx)
		if err != nil {
			return false, err
		}
		return local >= changeNumber, nil
	}
	if err := s.fetchUntil(ctx, syncKindSplits, reached, s.fetchSplitsUpTo, changeNumber); err != nil {
		return err
	}

	// Splits may now refer to segments that were never fetched
	return s.fetchNewSegments(ctx)
}

// RefreshSegment fetches changes of one segment until the store reaches changeNumber
func (s *Synchronizer) RefreshSegment(ctx context.Context, name string, changeNumber int64) (err error) {
	ctx, span := otel.Start(ctx, s.tracer, otel.SpanRefreshSegment,
		otel.AttrSegmentName.String(name), otel.AttrTargetTill.Int64(changeNumber))
	defer func() { otel.End(span, err) }()

	reached := func() (bool, error) {
		local, err := s.storage.SegmentChangeNumber(ctx, name)
		if err != nil {
			return false, err
		}
		return local >= changeNumber, nil
	}
	return s.fetchUntil(ctx, syncKindSegment, reached, func(ctx context.Context, till int64) error {
		return s.fetchSegment(ctx, name, till)
	}, changeNumber)
}

// LocalKill marks a split as killed without waiting for the next fetch
func (s *Synchronizer) LocalKill(ctx context.Context, splitName, defaultTreatment string, changeNumber int64) (err error) {
	ctx, span := otel.Start(ctx, s.tracer, otel.SpanLocalKill,
		otel.AttrSplitName.String(splitName), otel.AttrChangeNumber.Int64(changeNumber))
	defer func() { otel.End(span, err) }()

	if err := s.storage.KillSplit(ctx, splitName, defaultTreatment, changeNumber); err != nil {
		return fmt.Errorf("failed to kill split %s locally: %w", splitName, err)
	}
	slog.Info("Split killed locally",
		"split", splitName,
		"default_treatment", defaultTreatment,
		"change_number", changeNumber)
	return nil
}

func (s *Synchronizer) resyncLoop() {
	defer close(s.loopDone)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.requests:
			s.syncAllWithRetry(s.ctx)
		}
	}
}

func (s *Synchronizer) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryBase
	b.MaxInterval = s.retryMax
	return b
}

func (s *Synchronizer) syncAllWithRetry(ctx context.Context) {
	ctx, span := otel.Start(ctx, s.tracer, otel.SpanSyncAll, otel.AttrSyncKind.String(syncKindFull))

	start := time.Now()
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.syncAllOnce(ctx)
		if isPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxElapsedTime(s.syncAllMaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Full resync failed, retrying", "error", err, "retry_in", next)
		}),
	)
	span.SetAttributes(otel.AttrFetchAttempts.Int(attempts))
	otel.End(span, err)
	s.metrics.RecordSyncDuration(ctx, syncKindFull, time.Since(start), err == nil)

	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Full resync failed", "error", err, "attempts", attempts)
		}
		return
	}
	slog.Info("Full resync completed", "attempts", attempts, "duration", time.Since(start))
}

func (s *Synchronizer) syncAllOnce(ctx context.Context) error {
	if err := s.fetchSplits(ctx); err != nil {
		return err
	}
	return s.fetchAllSegments(ctx)
}

// fetchUntil runs fetch until reached reports true. After the plain attempts
// are exhausted it tries once more asking for the exact change number, which
// bypasses intermediate caches.
func (s *Synchronizer) fetchUntil(
	ctx context.Context,
	kind string,
	reached func() (bool, error),
	fetch func(ctx context.Context, till int64) error,
	changeNumber int64,
) error {
	done, err := reached()
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	start := time.Now()
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := fetch(ctx, 0); err != nil {
			if isPermanent(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		done, err := reached()
		if err != nil {
			return struct{}{}, err
		}
		if !done {
			return struct{}{}, errChangeNumberNotReached
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(onDemandFetchAttempts),
	)
	if err == nil || !errors.Is(err, errChangeNumberNotReached) {
		s.metrics.RecordSyncDuration(ctx, kind, time.Since(start), err == nil)
		return err
	}

	slog.Debug("Change number not reached, fetching it explicitly",
		"kind", kind, "change_number", changeNumber)
	err = fetch(ctx, changeNumber)
	if err == nil {
		done, err = reached()
		if err == nil && !done {
			err = errChangeNumberNotReached
		}
	}
	s.metrics.RecordSyncDuration(ctx, kind, time.Since(start), err == nil)
	return err
}

func (s *Synchronizer) fetchSplits(ctx context.Context) error {
	return s.fetchSplitsUpTo(ctx, 0)
}

// fetchSplitsUpTo applies split change pages until the API reports no more
// changes, or until till is reached when till is positive
func (s *Synchronizer) fetchSplitsUpTo(ctx context.Context, till int64) error {
	s.splitsMu.Lock()
	defer s.splitsMu.Unlock()

	for {
		since, err := s.storage.SplitsChangeNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to read splits change number: %w", err)
		}

		changes, err := s.fetcher.FetchSplitChanges(ctx, since, till)
		if err != nil {
			return err
		}

		var active []storage.Split
		var archived []string
		for _, split := range changes.Splits {
			if split.Status == storage.StatusActive {
				active = append(active, split)
			} else {
				archived = append(archived, split.Name)
			}
		}
		if err := s.storage.UpdateSplits(ctx, active, archived, changes.Till); err != nil {
			return fmt.Errorf("failed to store split changes: %w", err)
		}
		if len(changes.Splits) > 0 {
			trace.SpanFromContext(ctx).AddEvent("split changes applied", trace.WithAttributes(
				otel.AttrChangeNumber.Int64(changes.Till),
				otel.AttrUpdatedSplits.Int(len(changes.Splits)),
			))
			slog.Debug("Split changes applied",
				"since", changes.Since,
				"till", changes.Till,
				"updated", len(active),
				"archived", len(archived))
		}
		s.metrics.RecordChangeNumber(ctx, changes.Till)

		if changes.Till == changes.Since || changes.Till <= since || (till > 0 && changes.Till >= till) {
			return nil
		}
	}
}

func (s *Synchronizer) segmentLock(name string) *sync.Mutex {
	lock, _ := s.segmentLocks.LoadOrStore(name, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *Synchronizer) fetchSegment(ctx context.Context, name string, till int64) error {
	lock := s.segmentLock(name)
	lock.Lock()
	defer lock.Unlock()

	for {
		since, err := s.storage.SegmentChangeNumber(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read change number of segment %s: %w", name, err)
		}

		changes, err := s.fetcher.FetchSegmentChanges(ctx, name, since, till)
		if err != nil {
			return err
		}
		if err := s.storage.UpdateSegment(ctx, name, changes.Added, changes.Removed, changes.Till); err != nil {
			return fmt.Errorf("failed to store changes of segment %s: %w", name, err)
		}

		if changes.Till == changes.Since || changes.Till <= since || (till > 0 && changes.Till >= till) {
			return nil
		}
	}
}

func (s *Synchronizer) fetchSegments(ctx context.Context, names []string) error {
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrSegmentCount.Int(len(names)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.segmentConcurrency)
	for _, name := range names {
		g.Go(func() error {
			return s.fetchSegment(ctx, name, 0)
		})
	}
	return g.Wait()
}

func (s *Synchronizer) fetchAllSegments(ctx context.Context) error {
	names, err := s.storage.SegmentNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}
	return s.fetchSegments(ctx, names)
}

// fetchNewSegments fetches the segments that have never been fetched
func (s *Synchronizer) fetchNewSegments(ctx context.Context) error {
	names, err := s.storage.SegmentNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}

	var missing []string
	for _, name := range names {
		cn, err := s.storage.SegmentChangeNumber(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read change number of segment %s: %w", name, err)
		}
		if cn == storage.NoChangeNumber {
			missing = append(missing, name)
		}
	}
	return s.fetchSegments(ctx, missing)
}

// pollingInterval applies up to ±10% random jitter to base so that many
// SDK instances do not poll in lockstep
func pollingInterval(base time.Duration) time.Duration {
	jitter := int64(float64(base) * pollingJitter)
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(2*jitter) - jitter)
	return base + offset
}

func (s *Synchronizer) poll(ctx context.Context, kind string, rate time.Duration, fetch func(context.Context) error) {
	ticker := time.NewTicker(pollingInterval(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			s.metrics.RecordSyncDuration(ctx, kind, time.Since(start), err == nil)
			if err != nil {
				slog.Error("Periodic fetch failed", "kind", kind, "error", err)
			}
			ticker.Reset(pollingInterval(rate))
		}
	}
}

// isPermanent reports whether retrying err with the same request is pointless
func isPermanent(err error) bool {
	var httpErr *httpclient.HTTPError
	return errors.As(err, &httpErr) && httpErr.IsClientError()
}
