// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperharvest/internal/source"
	"github.com/pdiddy/paperharvest/pkg/types"
)

type stubAdapter struct {
	ids        []string
	listErr    error
	parseErr   map[string]error
	parseCalls []string
	onParse    func(n int)
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) ItemIDs(context.Context, types.Partition) ([]string, error) {
	return a.ids, a.listErr
}

func (a *stubAdapter) ParseItem(_ context.Context, pageURL string) (*types.Paper, error) {
	a.parseCalls = append(a.parseCalls, pageURL)
	if a.onParse != nil {
		a.onParse(len(a.parseCalls))
	}
	if err, ok := a.parseErr[pageURL]; ok {
		return nil, err
	}
	return &types.Paper{
		ID:      pageURL,
		Title:   "Title for " + pageURL,
		PageURL: pageURL,
		PDFURL:  pageURL + ".pdf",
	}, nil
}

type memStore struct {
	prior    []types.Paper
	saves    [][]types.Paper
	failSave bool
}

func (s *memStore) Load(types.Partition) []types.Paper { return s.prior }

func (s *memStore) Save(_ types.Partition, papers []types.Paper) error {
	if s.failSave {
		return errors.New("disk full")
	}
	s.saves = append(s.saves, append([]types.Paper(nil), papers...))
	return nil
}

func (s *memStore) latest() []types.Paper {
	if len(s.saves) == 0 {
		return nil
	}
	return s.saves[len(s.saves)-1]
}

type stubFetcher struct {
	calls []string
	fail  map[string]bool
}

func (f *stubFetcher) FetchDocument(_ context.Context, url, _ string) bool {
	f.calls = append(f.calls, url)
	return !f.fail[url]
}

func pages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://example.com/p%02d.html", i)
	}
	return out
}

func testConfig() types.HarvestConfig {
	return types.HarvestConfig{
		DataDir:      "data",
		BatchSize:    10,
		DownloadPDFs: true,
		Resume:       true,
	}
}

var testPartition = types.Partition{Source: "stub", Year: 2023}

func TestRunFreshPartition(t *testing.T) {
	adapter := &stubAdapter{
		ids: pages(3),
		parseErr: map[string]error{
			pages(3)[1]: &source.ParseError{PageURL: pages(3)[1], Reason: "missing title"},
		},
	}
	store := &memStore{}
	fetcher := &stubFetcher{}

	res, err := New(adapter, store, fetcher, testConfig(), nil).Run(context.Background(), testPartition)
	require.NoError(t, err)

	assert.Equal(t, 2, res.NewlyParsed)
	assert.Equal(t, 1, res.SkippedFailed)
	assert.Equal(t, 0, res.ReusedComplete)
	assert.Len(t, res.Papers, 2)
	assert.Len(t, fetcher.calls, 2)

	// The unparseable page is absent from the checkpoint; the run continued.
	require.Len(t, store.latest(), 2)
	for _, p := range store.latest() {
		assert.Equal(t, "stub", p.Source)
		assert.Equal(t, 2023, p.Year)
		assert.True(t, p.PDFDownloaded)
		assert.NotEmpty(t, p.PDFPath)
	}
}

func TestRunResumeReusesCompleteRecords(t *testing.T) {
	ids := pages(2)
	store := &memStore{prior: []types.Paper{
		{ID: "a", Title: "A", PageURL: ids[0], PDFURL: ids[0] + ".pdf", PDFDownloaded: true},
		{ID: "b", Title: "B", PageURL: ids[1], PDFURL: ids[1] + ".pdf", PDFDownloaded: true},
	}}
	adapter := &stubAdapter{ids: ids}
	fetcher := &stubFetcher{}

	res, err := New(adapter, store, fetcher, testConfig(), nil).Run(context.Background(), testPartition)
	require.NoError(t, err)

	// A fully complete partition costs zero parses and zero downloads.
	assert.Equal(t, 2, res.ReusedComplete)
	assert.Empty(t, adapter.parseCalls)
	assert.Empty(t, fetcher.calls)
	assert.Len(t, store.latest(), 2)
}

func TestRunRetriesDocumentWithoutReparsing(t *testing.T) {
	ids := pages(1)
	store := &memStore{prior: []types.Paper{
		{ID: "a", Title: "A", PageURL: ids[0], PDFURL: ids[0] + ".pdf", PDFDownloaded: false},
	}}
	adapter := &stubAdapter{ids: ids}
	fetcher := &stubFetcher{}

	res, err := New(adapter, store, fetcher, testConfig(), nil).Run(context.Background(), testPartition)
	require.NoError(t, err)

	assert.Equal(t, 1, res.DocumentRetried)
	assert.Empty(t, adapter.parseCalls)
	assert.Equal(t, []string{ids[0] + ".pdf"}, fetcher.calls)

	saved := store.latest()
	require.Len(t, saved, 1)
	assert.True(t, saved[0].PDFDownloaded)
	assert.Equal(t, "A", saved[0].Title)
}

func TestRunDownloadFailureKeepsRecord(t *testing.T) {
	ids := pages(1)
	adapter := &stubAdapter{ids: ids}
	store := &memStore{}
	fetcher := &stubFetcher{fail: map[string]bool{ids[0] + ".pdf": true}}

	res, err := New(adapter, store, fetcher, testConfig(), nil).Run(context.Background(), testPartition)
	require.NoError(t, err)

	assert.Equal(t, 1, res.NewlyParsed)
	saved := store.latest()
	require.Len(t, saved, 1)
	assert.False(t, saved[0].PDFDownloaded)
	assert.Empty(t, saved[0].PDFPath)
	assert.Equal(t, ids[0]+".pdf", saved[0].PDFURL)
}

func TestRunBatchCheckpointAndInterrupt(t *testing.T) {
	ids := pages(25)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &stubAdapter{ids: ids, onParse: func(n int) {
		if n == 12 {
			cancel()
		}
	}}
	store := &memStore{}
	fetcher := &stubFetcher{}

	res, err := New(adapter, store, fetcher, testConfig(), nil).Run(ctx, testPartition)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, 12, res.NewlyParsed)

	// One batch write at the 10-record boundary, then the interrupt flush.
	require.Len(t, store.saves, 2)
	assert.Len(t, store.saves[0], 10)
	assert.Len(t, store.saves[1], 12)

	// Resume from the batch-boundary state: the first 10 are reused, the
	// remaining 15 are parsed fresh.
	resumed := &memStore{prior: store.saves[0]}
	adapter2 := &stubAdapter{ids: ids}
	res2, err := New(adapter2, resumed, &stubFetcher{}, testConfig(), nil).Run(context.Background(), testPartition)
	require.NoError(t, err)
	assert.Equal(t, 10, res2.ReusedComplete)
	assert.Equal(t, 15, res2.NewlyParsed)
	assert.Len(t, adapter2.parseCalls, 15)
	assert.Len(t, resumed.latest(), 25)
}

func TestRunCancelledBeforeStartFlushesNothingNew(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := &stubAdapter{ids: pages(3)}
	store := &memStore{}

	_, err := New(adapter, store, &stubFetcher{}, testConfig(), nil).Run(ctx, testPartition)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Empty(t, adapter.parseCalls)
	require.Len(t, store.saves, 1)
	assert.Empty(t, store.saves[0])
}

func TestRunCheckpointFailureAborts(t *testing.T) {
	adapter := &stubAdapter{ids: pages(1)}
	store := &memStore{failSave: true}

	_, err := New(adapter, store, &stubFetcher{}, testConfig(), nil).Run(context.Background(), testPartition)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInterrupted)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunListingFailureAborts(t *testing.T) {
	adapter := &stubAdapter{listErr: errors.New("listing down")}
	_, err := New(adapter, &memStore{}, &stubFetcher{}, testConfig(), nil).Run(context.Background(), testPartition)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing down")
}

func TestRunNoResumeIgnoresPrior(t *testing.T) {
	ids := pages(2)
	store := &memStore{prior: []types.Paper{
		{ID: "a", Title: "A", PageURL: ids[0], PDFDownloaded: true},
	}}
	adapter := &stubAdapter{ids: ids}

	cfg := testConfig()
	cfg.Resume = false
	res, err := New(adapter, store, &stubFetcher{}, cfg, nil).Run(context.Background(), testPartition)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ReusedComplete)
	assert.Equal(t, 2, res.NewlyParsed)
	assert.Len(t, adapter.parseCalls, 2)
}

func TestRunDownloadsDisabled(t *testing.T) {
	adapter := &stubAdapter{ids: pages(1)}
	fetcher := &stubFetcher{}

	cfg := testConfig()
	cfg.DownloadPDFs = false
	res, err := New(adapter, &memStore{}, fetcher, cfg, nil).Run(context.Background(), testPartition)
	require.NoError(t, err)

	assert.Equal(t, 1, res.NewlyParsed)
	assert.Empty(t, fetcher.calls)
	assert.False(t, res.Papers[0].PDFDownloaded)
}

func TestBuildPlan(t *testing.T) {
	prior := []types.Paper{
		{ID: "done", PageURL: "u1", PDFURL: "u1.pdf", PDFDownloaded: true},
		{ID: "pending", PageURL: "u2", PDFURL: "u2.pdf", PDFDownloaded: false},
		{ID: "gone", PageURL: "u9", PDFDownloaded: true},
	}
	pl := buildPlan(prior, []string{"u1", "u2", "u3"})

	require.Len(t, pl.Reuse, 1)
	assert.Equal(t, "done", pl.Reuse[0].ID)
	require.Len(t, pl.Retry, 1)
	assert.Equal(t, "pending", pl.Retry[0].ID)
	assert.Equal(t, []string{"u3"}, pl.New)
}
