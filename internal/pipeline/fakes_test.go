package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/couchcryptid/ghg-merge/internal/mockdata"
	"github.com/couchcryptid/ghg-merge/internal/pipeline"
)

var (
	testStart = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	testRange = domain.TimeRange{Start: testStart, End: testStart.Add(6 * time.Hour)}
	testGrid  = mockdata.DefaultGrid()
	testTimes = mockdata.HourlyTimes(testStart, 6)
)

// fakeStores serves deterministic mock datasets for every port and counts calls.
type fakeStores struct {
	scales  map[string]string
	units   map[string]string
	missing map[string]bool
	obsErr  error

	bc *domain.BoundaryConditionField

	obsCalls  atomic.Int64
	fpCalls   atomic.Int64
	fluxCalls atomic.Int64
	bcCalls   atomic.Int64

	mu         sync.Mutex
	obsQueries []domain.ObservationQuery
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		scales:  map[string]string{},
		units:   map[string]string{},
		missing: map[string]bool{},
		bc:      mockdata.BoundaryCondition("ch4", "EUROPE", "CAMS", testGrid, testTimes[:1], 1.85e-6),
	}
}

func (f *fakeStores) stores() pipeline.Stores {
	return pipeline.Stores{
		Observations:       f,
		Footprints:         f,
		Fluxes:             f,
		BoundaryConditions: f,
	}
}

func siteSeed(site string) uint64 {
	var s uint64
	for _, r := range site {
		s = s*31 + uint64(r)
	}
	return s
}

func (f *fakeStores) FetchObservation(_ context.Context, q domain.ObservationQuery) (*domain.ObservationSeries, error) {
	f.obsCalls.Add(1)
	f.mu.Lock()
	f.obsQueries = append(f.obsQueries, q)
	f.mu.Unlock()

	if f.obsErr != nil {
		return nil, f.obsErr
	}
	if f.missing[q.Site] {
		return nil, fmt.Errorf("observation %s/%s: %w", q.Site, q.Species, domain.ErrNotFound)
	}
	scale := f.scales[q.Site]
	if scale == "" {
		scale = "WMO-CH4-X2004A"
	}
	opts := mockdata.ObservationOptions{
		CalibrationScale: scale,
		Units:            f.units[q.Site],
		Inlet:            q.Inlet,
		MissingEvery:     2,
	}
	return mockdata.Observation(q.Site, q.Species, testTimes, 1900, siteSeed(q.Site), opts), nil
}

func (f *fakeStores) FetchFootprint(_ context.Context, q domain.FootprintQuery) (*domain.FootprintField, error) {
	f.fpCalls.Add(1)
	return mockdata.Footprint(q.Site, q.Domain, testGrid, testTimes, siteSeed(q.Site)+1), nil
}

func (f *fakeStores) FetchFlux(_ context.Context, q domain.FluxQuery) (*domain.FluxField, error) {
	f.fluxCalls.Add(1)
	mag := map[string]float64{"anthropogenic": 1e-8, "natural": 4e-9, "waste": 2e-9}[q.Sector]
	if mag == 0 {
		return nil, fmt.Errorf("flux %s: %w", q.Sector, domain.ErrNotFound)
	}
	return mockdata.Flux(strings.ToLower(q.Species), q.Domain, q.Sector, testGrid, testTimes[:1], mag), nil
}

func (f *fakeStores) FetchBoundaryCondition(_ context.Context, _ domain.BoundaryConditionQuery) (*domain.BoundaryConditionField, error) {
	f.bcCalls.Add(1)
	return f.bc, nil
}

type fakeWriter struct {
	err   error
	paths []string
}

func (w *fakeWriter) WriteRunOutput(_ context.Context, _ *domain.RunOutput, path string) error {
	w.paths = append(w.paths, path)
	return w.err
}

type fakeNotifier struct {
	err       error
	summaries []domain.RunSummary
}

func (n *fakeNotifier) NotifyRunCompleted(_ context.Context, s domain.RunSummary) error {
	n.summaries = append(n.summaries, s)
	return n.err
}

type fakeAugmenter struct {
	calls []domain.AugmentRequest
	err   error
}

func (a *fakeAugmenter) Augment(_ context.Context, out *domain.RunOutput, req domain.AugmentRequest) error {
	a.calls = append(a.calls, req)
	if a.err != nil {
		return a.err
	}
	for _, ds := range out.Sites {
		rep := ds.Var(domain.VarRepeatability)
		for i := range rep {
			rep[i] += 100
		}
	}
	return nil
}

var errStoreDown = errors.New("store unavailable")

// recordingHandler keeps the message of every log record.
type recordingHandler struct {
	mu   sync.Mutex
	msgs []string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, r.Message)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func (h *recordingHandler) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.msgs {
		if m == msg {
			n++
		}
	}
	return n
}
