package router

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravyprompts/discovery/cache"
	"github.com/gravyprompts/discovery/observe"
	"github.com/gravyprompts/discovery/resilience"
	"github.com/gravyprompts/discovery/store"
	"github.com/gravyprompts/discovery/templates"
)

var (
	epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	boom  = errors.New("boom")
)

func corpus() []templates.Template {
	public := func(id, owner, title string, tags []string, content string, uses int, age time.Duration) templates.Template {
		return templates.Template{
			ID:               id,
			Title:            title,
			Content:          content,
			Tags:             tags,
			Visibility:       templates.VisibilityPublic,
			ModerationStatus: templates.ModerationApproved,
			OwnerID:          owner,
			CreatedAt:        epoch.Add(-age),
			UseCount:         uses,
		}
	}
	return []templates.Template{
		public("p1", "alice", "Email Marketing Template", []string{"email", "marketing"}, "Reach your list.", 5, 1*time.Hour),
		public("p2", "bob", "Marketing Newsletter", []string{"newsletter"}, "A weekly email digest.", 40, 2*time.Hour),
		public("p3", "bob", "Sales Pitch Email", []string{"sales"}, "Open strong.", 10, 3*time.Hour),
		public("p4", "carol", "Social Media Post", []string{"social"}, "Post ideas.", 100, 4*time.Hour),
		{
			ID:               "draft",
			Title:            "Alice Draft",
			Visibility:       templates.VisibilityPrivate,
			ModerationStatus: templates.ModerationNotRequired,
			OwnerID:          "alice",
			CreatedAt:        epoch.Add(-30 * time.Minute),
		},
		{
			ID:               "pending",
			Title:            "Pending Review",
			Visibility:       templates.VisibilityPublic,
			ModerationStatus: templates.ModerationPending,
			OwnerID:          "alice",
			CreatedAt:        epoch.Add(-5 * time.Hour),
		},
	}
}

func ids(items []templates.Template) []string {
	out := make([]string, len(items))
	for i, t := range items {
		out[i] = t.ID
	}
	return out
}

type fixture struct {
	store  *store.MemoryStore
	cache  *cache.MemoryCache
	router *Router
}

func newFixture(cfg Config) *fixture {
	st := store.NewMemoryStore(corpus()...)
	mc := cache.NewMemoryCache(cache.DefaultPolicy())
	if cfg.Cache == nil {
		cfg.Cache = mc
	}
	return &fixture{store: st, cache: mc, router: New(st, cfg)}
}

func TestSearch_PublicNewestFirst(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: FilterPublic})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, ids(res.Items))
	assert.Equal(t, 4, res.Count)
	assert.Empty(t, res.NextCursor)
}

func TestSearch_RanksAndExcludesUnmatched(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: FilterPublic, Search: "email"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3", "p2"}, ids(res.Items))
}

func TestSearch_PopularSortsByUseCountWithSearch(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: FilterPopular, Search: "email"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p1"}, ids(res.Items))
}

func TestSearch_PopularFetchesExtraCandidates(t *testing.T) {
	f := newFixture(Config{})

	// Four public templates; a page of two reads all four before re-sorting.
	res, err := f.router.Search(context.Background(), Query{Filter: FilterPopular, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p2"}, ids(res.Items))
}

func TestSearch_TagFilter(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: FilterPublic, Tag: "MARKETING"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(res.Items))
}

func TestSearch_MineRequiresRequester(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: FilterMine})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Zero(t, res.Count)
}

func TestSearch_MineIncludesPrivate(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: FilterMine, Requester: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "p1", "pending"}, ids(res.Items))
}

func TestSearch_MinePaginatesWithCursor(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	var got []string
	cursor := ""
	for range 5 {
		res, err := f.router.Search(ctx, Query{Filter: FilterMine, Requester: "alice", Limit: 1, Cursor: cursor})
		require.NoError(t, err)
		got = append(got, ids(res.Items)...)
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	assert.Equal(t, []string{"draft", "p1", "pending"}, got)
}

func TestSearch_MalformedCursorStartsOver(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: FilterMine, Requester: "alice", Limit: 1, Cursor: "not a cursor!"})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft"}, ids(res.Items))
}

func TestSearch_AllMergesAndDedupes(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	res, err := f.router.Search(ctx, Query{Filter: FilterAll, Requester: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "p1", "p2", "p3", "p4", "pending"}, ids(res.Items))
	assert.Empty(t, res.NextCursor)

	capped, err := f.router.Search(ctx, Query{Filter: FilterAll, Requester: "alice", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "p1", "p2"}, ids(capped.Items))

	anon, err := f.router.Search(ctx, Query{Filter: FilterAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, ids(anon.Items))
}

func TestSearch_EmptyFilterMeansAll(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Requester: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Count)
}

func TestSearch_UnknownFilterIsEmpty(t *testing.T) {
	f := newFixture(Config{})

	res, err := f.router.Search(context.Background(), Query{Filter: "trending", Requester: "alice"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestSearch_CachesPublicResults(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()
	q := Query{Filter: FilterPublic, Search: "email"}

	first, err := f.router.Search(ctx, q)
	require.NoError(t, err)

	f.store.FailWith(boom)

	second, err := f.router.Search(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, ids(first.Items), ids(second.Items))
	assert.Equal(t, int64(1), f.cache.Metrics().Hits)

	// The requester is not part of the key for public results.
	q.Requester = "bob"
	_, err = f.router.Search(ctx, q)
	require.NoError(t, err)

	_, err = f.router.Search(ctx, Query{Filter: FilterPublic, Search: "sales"})
	assert.ErrorIs(t, err, boom)
}

// gatedStore holds every query until release is closed.
type gatedStore struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (g *gatedStore) Query(ctx context.Context, req store.Request) (store.Page, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		close(g.entered)
	}

	select {
	case <-g.release:
		return g.MemoryStore.Query(ctx, req)
	case <-ctx.Done():
		return store.Page{}, ctx.Err()
	}
}

func TestSearch_CanceledCallerDoesNotFailSharedMiss(t *testing.T) {
	st := &gatedStore{
		MemoryStore: store.NewMemoryStore(corpus()...),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	r := New(st, Config{Cache: cache.NewMemoryCache(cache.DefaultPolicy())})
	q := Query{Filter: FilterPublic}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.Search(ctxA, q)
		errA <- err
	}()
	<-st.entered

	type outcome struct {
		res Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := r.Search(context.Background(), q)
		doneB <- outcome{res, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	// Give the second caller time to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(st.release)

	b := <-doneB
	require.NoError(t, b.err)
	assert.Equal(t, 4, b.res.Count)

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, 1, st.calls, "both callers share one store query")
}

func TestSearch_DoesNotCacheFailures(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()
	q := Query{Filter: FilterPopular}

	f.store.FailWith(boom)
	_, err := f.router.Search(ctx, q)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, f.cache.Len())

	f.store.FailWith(nil)
	res, err := f.router.Search(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, 1, f.cache.Len())
}

func TestSearch_PerRequesterFiltersAreNotCached(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	_, err := f.router.Search(ctx, Query{Filter: FilterMine, Requester: "alice"})
	require.NoError(t, err)
	_, err = f.router.Search(ctx, Query{Filter: FilterAll, Requester: "alice"})
	require.NoError(t, err)

	assert.Zero(t, f.cache.Len())
}

func TestSearch_WithoutCache(t *testing.T) {
	st := store.NewMemoryStore(corpus()...)
	r := New(st, Config{})

	res, err := r.Search(context.Background(), Query{Filter: FilterPublic})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
}

func TestSearch_StoreFailureIsLoggedAndReturned(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(Config{Logger: observe.NewLoggerWithWriter("info", &buf)})
	f.store.FailWith(boom)

	_, err := f.router.Search(context.Background(), Query{Filter: FilterMine, Requester: "alice"})
	require.ErrorIs(t, err, boom)

	out := buf.String()
	assert.Contains(t, out, "store query failed")
	assert.Contains(t, out, `"component":"router"`)
	assert.Contains(t, out, `"filter":"mine"`)
}

type recordingLimiter struct {
	mu    sync.Mutex
	allow bool
	keys  []string
}

func (l *recordingLimiter) Allow(key, action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key+"/"+action)
	return l.allow
}

func TestSearch_RateLimited(t *testing.T) {
	lim := &recordingLimiter{}
	f := newFixture(Config{Limiter: lim})
	ctx := context.Background()

	_, err := f.router.Search(ctx, Query{Filter: FilterPublic, Requester: "alice"})
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = f.router.Search(ctx, Query{Filter: FilterPublic, RequestKey: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = f.router.Search(ctx, Query{Filter: FilterPublic})
	assert.ErrorIs(t, err, ErrRateLimited)

	assert.Equal(t, []string{"alice/search", "10.0.0.1/search", "anonymous/search"}, lim.keys)
}

func TestPopular_RateLimited(t *testing.T) {
	lim := &recordingLimiter{}
	f := newFixture(Config{Limiter: lim})
	ctx := context.Background()

	_, err := f.router.Popular(ctx, Query{Limit: 2, RequestKey: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = f.router.Popular(ctx, Query{Limit: 2, Requester: "alice"})
	assert.ErrorIs(t, err, ErrRateLimited)

	assert.Equal(t, []string{"10.0.0.1/search", "alice/search"}, lim.keys)
	assert.Zero(t, f.cache.Len())
}

func TestSearch_KeyedLimiter(t *testing.T) {
	lim := resilience.NewKeyedLimiter(resilience.KeyedLimiterConfig{Rate: 0.001, Burst: 1})
	f := newFixture(Config{Limiter: lim})
	ctx := context.Background()

	_, err := f.router.Search(ctx, Query{Filter: FilterPublic, Requester: "alice"})
	require.NoError(t, err)
	_, err = f.router.Search(ctx, Query{Filter: FilterPublic, Requester: "alice"})
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = f.router.Search(ctx, Query{Filter: FilterPublic, Requester: "bob"})
	assert.NoError(t, err)
}

func TestSearch_MaxLimit(t *testing.T) {
	clamped := newFixture(Config{MaxLimit: 2})
	res, err := clamped.router.Search(context.Background(), Query{Filter: FilterPublic, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	open := newFixture(Config{})
	res, err = open.router.Search(context.Background(), Query{Filter: FilterPublic, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
}

func TestPopular(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	res, err := f.router.Popular(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p2"}, ids(res.Items))

	_, ok := f.cache.Get(ctx, cache.PopularKey(2))
	assert.True(t, ok)
}

func TestLookup(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	got, err := f.router.Lookup(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, "Email Marketing Template", got.Title)

	own, err := f.router.Lookup(ctx, "draft", "alice")
	require.NoError(t, err)
	assert.Equal(t, "draft", own.ID)
	assert.Equal(t, 1, f.cache.Len(), "private templates are not cached")

	_, err = f.router.Lookup(ctx, "draft", "bob")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.router.Lookup(ctx, "pending", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.router.Lookup(ctx, "missing", "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	f.store.FailWith(boom)
	cached, err := f.router.Lookup(ctx, "p1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "p1", cached.ID)
	_, err = f.router.Lookup(ctx, "draft", "alice")
	assert.ErrorIs(t, err, boom)
}

func TestLookup_DropsUndecodableEntry(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, cache.TemplateKey("p1"), []byte("{not json"), 0))

	got, err := f.router.Lookup(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	_, err := f.router.Search(ctx, Query{Filter: FilterPublic})
	require.NoError(t, err)
	_, err = f.router.Popular(ctx, Query{Limit: 3})
	require.NoError(t, err)
	_, err = f.router.Lookup(ctx, "p1", "")
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(ctx, cache.UserTemplatesKey("alice"), []byte(`[]`), 0))
	require.NoError(t, f.cache.Set(ctx, cache.TemplateKey("p2"), []byte(`{}`), 0))
	require.Equal(t, 5, f.cache.Len())

	require.NoError(t, f.router.Invalidate(ctx, "p1"))

	assert.Equal(t, 1, f.cache.Len())
	_, ok := f.cache.Get(ctx, cache.TemplateKey("p2"))
	assert.True(t, ok)
}

func TestInvalidate_WithoutCache(t *testing.T) {
	r := New(store.NewMemoryStore(), Config{})
	assert.NoError(t, r.Invalidate(context.Background(), "p1"))
}
