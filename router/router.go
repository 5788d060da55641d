package router

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/gravyprompts/discovery/cache"
	"github.com/gravyprompts/discovery/observe"
	"github.com/gravyprompts/discovery/search"
	"github.com/gravyprompts/discovery/store"
	"github.com/gravyprompts/discovery/templates"
)

// ActionSearch is the limiter action consulted by Search.
const ActionSearch = "search"

// Limiter decides whether a caller may perform an action.
type Limiter interface {
	Allow(key, action string) bool
}

// Config configures a Router.
type Config struct {
	// Cache memoizes public results and lookups. Nil disables caching.
	Cache cache.Cache

	// CacheTTL is the lifetime of cached results. Zero uses the cache
	// policy default.
	CacheTTL time.Duration

	// MaxLimit caps the page size on every filter. Zero leaves it unbounded.
	MaxLimit int

	// Limiter is consulted before each search. Nil allows everything.
	Limiter Limiter

	// Middleware instruments operations. Default: no-op.
	Middleware *observe.Middleware

	// Logger receives cache and store problems. Default: no-op.
	Logger observe.Logger
}

// Router dispatches queries to the store and the search pipeline.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: store failures are returned wrapped; cache failures are not
//     errors. Malformed query fields fall back to defaults.
type Router struct {
	store    store.Store
	cache    cache.Cache
	ttl      time.Duration
	maxLimit int
	limiter  Limiter
	mw       *observe.Middleware
	logger   observe.Logger
	flight   singleflight.Group
}

// New creates a Router over s.
func New(s store.Store, cfg Config) *Router {
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NopMiddleware()
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Router{
		store:    s,
		cache:    cfg.Cache,
		ttl:      cfg.CacheTTL,
		maxLimit: cfg.MaxLimit,
		limiter:  cfg.Limiter,
		mw:       cfg.Middleware,
		logger:   cfg.Logger.With(observe.Field{Key: "component", Value: "router"}),
	}
}

// Search runs q and returns one page of results.
func (r *Router) Search(ctx context.Context, q Query) (Result, error) {
	q = r.normalize(q)
	if r.limiter != nil && !r.limiter.Allow(q.rateKey(), ActionSearch) {
		return Result{}, ErrRateLimited
	}

	op := observe.Op{Component: "router", Name: "search", Labels: map[string]string{"filter": q.Filter.label()}}
	return observe.Run(ctx, r.mw, op, func(ctx context.Context) (Result, error) {
		switch q.Filter {
		case FilterPublic, FilterPopular:
			return r.cachedPublic(ctx, op, q)
		case FilterMine:
			return r.searchMine(ctx, q)
		case FilterAll:
			return r.searchAll(ctx, q)
		default:
			return newResult(nil, ""), nil
		}
	})
}

// Popular returns the q.Limit most used public templates. Only the limit and
// the caller identity of q are used; the limiter is consulted as for Search.
func (r *Router) Popular(ctx context.Context, q Query) (Result, error) {
	q = r.normalize(Query{Filter: FilterPopular, Limit: q.Limit, Requester: q.Requester, RequestKey: q.RequestKey})
	if r.limiter != nil && !r.limiter.Allow(q.rateKey(), ActionSearch) {
		return Result{}, ErrRateLimited
	}
	op := observe.Op{Component: "router", Name: "popular"}
	return observe.Run(ctx, r.mw, op, func(ctx context.Context) (Result, error) {
		return r.cachedLoad(ctx, op, cache.PopularKey(q.Limit), func(ctx context.Context) (Result, error) {
			return r.searchPublic(ctx, q)
		})
	})
}

// Lookup returns one template if requester may see it. Only public, approved
// templates are cached, so owners always read their private templates fresh.
func (r *Router) Lookup(ctx context.Context, id, requester string) (templates.Template, error) {
	op := observe.Op{Component: "router", Name: "lookup"}
	return observe.Run(ctx, r.mw, op, func(ctx context.Context) (templates.Template, error) {
		key := cache.TemplateKey(id)
		if t, ok := r.cachedTemplate(ctx, op, key); ok {
			return t, nil
		}

		t, err := r.store.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return templates.Template{}, ErrNotFound
		}
		if err != nil {
			r.logger.Error(ctx, "store get failed", observe.Field{Key: "template_id", Value: id}, observe.Err(err))
			return templates.Template{}, err
		}
		if !t.VisibleTo(requester) {
			return templates.Template{}, ErrNotFound
		}
		if t.IsPublic() && r.cache != nil {
			if raw, err := json.Marshal(t); err == nil {
				_ = r.cache.Set(ctx, key, raw, r.ttl)
			}
		}
		return t, nil
	})
}

// Invalidate drops everything cached about template id: its lookup entry and
// every list, popular and per-user result that may include it.
func (r *Router) Invalidate(ctx context.Context, id string) error {
	if r.cache == nil {
		return nil
	}
	errs := []error{r.cache.Delete(ctx, cache.TemplateKey(id))}
	removed := 0
	for _, ns := range []string{cache.ListNamespace, cache.PopularNamespace, cache.UserNamespace} {
		n, err := r.cache.ClearPattern(ctx, ns+"*")
		removed += n
		errs = append(errs, err)
	}
	r.logger.Debug(ctx, "cache invalidated", observe.Field{Key: "template_id", Value: id}, observe.Field{Key: "removed", Value: removed})
	return errors.Join(errs...)
}

func (r *Router) normalize(q Query) Query {
	q.Filter = ParseFilter(string(q.Filter))
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if r.maxLimit > 0 && q.Limit > r.maxLimit {
		q.Limit = r.maxLimit
	}
	q.SortBy, q.SortOrder = search.NormalizeSort(q.SortBy, q.SortOrder)
	return q
}

func (r *Router) cachedPublic(ctx context.Context, op observe.Op, q Query) (Result, error) {
	return r.cachedLoad(ctx, op, q.listKey(), func(ctx context.Context) (Result, error) {
		return r.searchPublic(ctx, q)
	})
}

// cachedLoad reads key through the cache. Concurrent misses on the same key
// share one call to load. The shared call is detached from any single
// caller's cancellation; each caller stops waiting when its own ctx ends.
func (r *Router) cachedLoad(ctx context.Context, op observe.Op, key string, load func(context.Context) (Result, error)) (Result, error) {
	hit := true
	fn := cache.Cached(r.cache, func(ctx context.Context, key string) (Result, error) {
		hit = false
		shared := context.WithoutCancel(ctx)
		ch := r.flight.DoChan(key, func() (any, error) {
			return load(shared)
		})
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return Result{}, res.Err
			}
			return res.Val.(Result), nil
		}
	}, func(key string) string { return key }, r.ttl)

	res, err := fn(ctx, key)
	if r.cache != nil {
		r.mw.Metrics().RecordCacheLookup(ctx, op, hit)
	}
	return res, err
}

func (r *Router) cachedTemplate(ctx context.Context, op observe.Op, key string) (templates.Template, bool) {
	if r.cache == nil {
		return templates.Template{}, false
	}
	raw, ok := r.cache.Get(ctx, key)
	if ok {
		var t templates.Template
		if err := json.Unmarshal(raw, &t); err == nil {
			r.mw.Metrics().RecordCacheLookup(ctx, op, true)
			return t, true
		}
		r.logger.Warn(ctx, "dropping undecodable cache entry", observe.Field{Key: "key", Value: key})
		_ = r.cache.Delete(ctx, key)
	}
	r.mw.Metrics().RecordCacheLookup(ctx, op, false)
	return templates.Template{}, false
}

// searchPublic reads one page of public, approved templates. The popular
// filter reads twice the page so the use count sort has candidates to choose
// from.
func (r *Router) searchPublic(ctx context.Context, q Query) (Result, error) {
	fetch := q.Limit
	if q.Filter == FilterPopular {
		fetch *= 2
	}
	page, err := r.query(ctx, q, store.PublicApproved(fetch, r.startKey(ctx, q.Cursor)))
	if err != nil {
		return Result{}, err
	}
	return newResult(search.Apply(page.Items, q.options()), EncodeCursor(page.LastKey)), nil
}

func (r *Router) searchMine(ctx context.Context, q Query) (Result, error) {
	if q.Requester == "" {
		return newResult(nil, ""), nil
	}
	page, err := r.query(ctx, q, store.ByOwner(q.Requester, q.Limit, r.startKey(ctx, q.Cursor)))
	if err != nil {
		return Result{}, err
	}
	return newResult(search.Apply(page.Items, q.options()), EncodeCursor(page.LastKey)), nil
}

// searchAll merges the public page with the requester's own page. The first
// occurrence of an id wins. There is no cursor: the merged view has no single
// continuation key, so every call returns the first page.
func (r *Router) searchAll(ctx context.Context, q Query) (Result, error) {
	var public, mine store.Page

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		public, err = r.query(gctx, q, store.PublicApproved(q.Limit, nil))
		return err
	})
	if q.Requester != "" {
		g.Go(func() error {
			var err error
			mine, err = r.query(gctx, q, store.ByOwner(q.Requester, q.Limit, nil))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	merged := dedupe(slices.Concat(public.Items, mine.Items))
	return newResult(search.Apply(merged, q.options()), ""), nil
}

func (r *Router) query(ctx context.Context, q Query, req store.Request) (store.Page, error) {
	page, err := r.store.Query(ctx, req)
	if err != nil {
		r.logger.Error(ctx, "store query failed",
			observe.Field{Key: "filter", Value: q.Filter.label()},
			observe.Field{Key: "index", Value: req.Index},
			observe.Err(err))
		return store.Page{}, err
	}
	return page, nil
}

func (r *Router) startKey(ctx context.Context, cursor string) store.Key {
	if cursor == "" {
		return nil
	}
	k, ok := DecodeCursor(cursor)
	if !ok {
		r.logger.Warn(ctx, "ignoring malformed cursor")
		return nil
	}
	return k
}

func dedupe(items []templates.Template) []templates.Template {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, t := range items {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
