package wellknown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ciphersync/internal/domain"
	"ciphersync/internal/metrics"
	"ciphersync/internal/services/session"
)

// Options tunes the cache. Zero fields take defaults.
type Options struct {
	// DefaultTTL applies to fetched entries that carry no TTL.
	DefaultTTL time.Duration
	// RetryInterval is how long a failed background refresh waits before the
	// same stale entry may trigger another one.
	RetryInterval time.Duration
	// HotLifeWindow bounds how long the hot tier keeps an entry.
	HotLifeWindow time.Duration
}

const (
	defaultTTL           = time.Hour
	defaultRetryInterval = 30 * time.Second
	defaultHotLifeWindow = 24 * time.Hour
)

// RefreshResult is delivered once per Refresh call.
type RefreshResult struct {
	Entry domain.WellKnownEntry
	Err   error
	// Shared is true when the call attached to a refresh already in flight.
	Shared bool
}

// serverState guards background refresh triggering for one server.
type serverState struct {
	mu sync.Mutex
	// triggeredFor is the FetchedAt of the entry a refresh was last
	// triggered for; triggeredAt is when.
	triggeredFor time.Time
	triggeredAt  time.Time
}

// Cache is the well-known cache.
type Cache struct {
	sessions  *session.Manager
	store     domain.WellKnownStore
	fetcher   domain.WellKnownFetcher
	delegates domain.Delegates
	listeners domain.Listeners
	opts      Options

	hot     *bigcache.BigCache
	flights singleflight.Group
	servers sync.Map // domain.ServerURL -> *serverState

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New builds a Cache. Refresh writes run in sessions opened with d and l.
func New(
	sessions *session.Manager,
	store domain.WellKnownStore,
	fetcher domain.WellKnownFetcher,
	d domain.Delegates,
	l domain.Listeners,
	opts Options,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*Cache, error) {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = defaultTTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.HotLifeWindow <= 0 {
		opts.HotLifeWindow = defaultHotLifeWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := bigcache.DefaultConfig(opts.HotLifeWindow)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 4096
	cfg.Verbose = false
	hot, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("hot tier: %w", err)
	}

	return &Cache{
		sessions:  sessions,
		store:     store,
		fetcher:   fetcher,
		delegates: d,
		listeners: l,
		opts:      opts,
		hot:       hot,
		logger:    logger.With(zap.String("module", "wellknown")),
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Close releases the hot tier.
func (c *Cache) Close() error { return c.hot.Close() }

// Get returns the cached entry for server. ok is false when the server was
// never fetched successfully. A stale entry is returned as is and triggers
// at most one background refresh.
func (c *Cache) Get(ctx context.Context, server domain.ServerURL) (domain.WellKnownEntry, bool, error) {
	entry, ok, err := c.lookup(ctx, server)
	if err != nil || !ok {
		return domain.WellKnownEntry{}, false, err
	}
	if entry.Stale(c.now()) && c.shouldTrigger(server, entry) {
		c.logger.Debug("stale entry, refreshing in background",
			zap.String("server", server.String()),
			zap.Time("fetched_at", entry.FetchedAt),
		)
		c.Refresh(ctx, server)
	}
	return entry, true, nil
}

// Require is Get for callers that prefer an error: a cold miss is
// domain.ErrNotCached.
func (c *Cache) Require(ctx context.Context, server domain.ServerURL) (domain.WellKnownEntry, error) {
	entry, ok, err := c.Get(ctx, server)
	if err != nil {
		return domain.WellKnownEntry{}, err
	}
	if !ok {
		return domain.WellKnownEntry{}, fmt.Errorf("%w: %s", domain.ErrNotCached, server)
	}
	return entry, nil
}

// WSURL returns the signaling websocket URL of server.
func (c *Cache) WSURL(ctx context.Context, server domain.ServerURL) (string, bool, error) {
	e, ok, err := c.Get(ctx, server)
	return e.WSURL, ok, err
}

// TURNURLs returns the TURN relay URLs of server, in server order.
func (c *Cache) TURNURLs(ctx context.Context, server domain.ServerURL) ([]string, bool, error) {
	e, ok, err := c.Get(ctx, server)
	return e.TURNURLs, ok, err
}

// OSMStyles returns the map styles advertised by server, in server order.
func (c *Cache) OSMStyles(ctx context.Context, server domain.ServerURL) ([]domain.OSMStyle, bool, error) {
	e, ok, err := c.Get(ctx, server)
	return e.OSMStyles, ok, err
}

// AddressURL returns the address lookup URL of server.
func (c *Cache) AddressURL(ctx context.Context, server domain.ServerURL) (string, bool, error) {
	e, ok, err := c.Get(ctx, server)
	return e.AddressURL, ok, err
}

// Refresh fetches server's configuration in the background. Calls made while
// a fetch for the same server is in flight attach to it. The fetch is not
// cancelled with ctx. The returned channel receives exactly one result.
func (c *Cache) Refresh(ctx context.Context, server domain.ServerURL) <-chan RefreshResult {
	detached := context.WithoutCancel(ctx)
	flight := c.flights.DoChan(server.String(), func() (any, error) {
		return c.refresh(detached, server)
	})

	out := make(chan RefreshResult, 1)
	go func() {
		r := <-flight
		res := RefreshResult{Err: r.Err, Shared: r.Shared}
		if entry, ok := r.Val.(domain.WellKnownEntry); ok {
			res.Entry = entry
		}
		out <- res
	}()
	return out
}

// Warm loads every persisted entry into the hot tier.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	n := 0
	err := c.sessions.View(ctx, func(tx domain.Txn) error {
		for entry, err := range c.store.ListWellKnown(tx) {
			if err != nil {
				return err
			}
			c.putHot(entry)
			n++
		}
		return nil
	})
	return n, err
}

func (c *Cache) refresh(ctx context.Context, server domain.ServerURL) (domain.WellKnownEntry, error) {
	entry, err := c.fetcher.FetchWellKnown(ctx, server)
	if err != nil {
		c.metrics.WellKnownRefresh("error")
		c.logger.Warn("well-known fetch failed", zap.String("server", server.String()), zap.Error(err))
		return domain.WellKnownEntry{}, err
	}
	entry.Server = server
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = c.now()
	}
	entry.FetchedAt = entry.FetchedAt.UTC()
	if entry.TTL <= 0 {
		entry.TTL = c.opts.DefaultTTL
	}

	err = c.sessions.Run(ctx, c.delegates, c.refreshListeners(), func(sess *session.Session) error {
		if err := c.store.SaveWellKnown(sess.Txn(), entry); err != nil {
			return fmt.Errorf("save well-known: %w", err)
		}
		sess.Enqueue(domain.WellKnownEvent{Entry: entry})
		return nil
	})
	if err != nil {
		c.metrics.WellKnownRefresh("error")
		return domain.WellKnownEntry{}, err
	}
	c.metrics.WellKnownRefresh("ok")
	return entry, nil
}

// refreshListeners updates the hot tier from the committed event before the
// caller's well-known listener sees it.
func (c *Cache) refreshListeners() domain.Listeners {
	l := c.listeners
	next := l.WellKnown
	l.WellKnown = domain.WellKnownListenerFunc(func(e domain.WellKnownEvent) {
		c.putHot(e.Entry)
		if next != nil {
			next.WellKnownRefreshed(e)
		}
	})
	return l
}

// shouldTrigger reports whether this reader is the first to see entry as
// stale, or the retry interval since the last trigger has passed.
func (c *Cache) shouldTrigger(server domain.ServerURL, entry domain.WellKnownEntry) bool {
	v, _ := c.servers.LoadOrStore(server, &serverState{})
	st := v.(*serverState)

	now := c.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.triggeredFor.Equal(entry.FetchedAt) && now.Sub(st.triggeredAt) < c.opts.RetryInterval {
		return false
	}
	st.triggeredFor = entry.FetchedAt
	st.triggeredAt = now
	return true
}

func (c *Cache) lookup(ctx context.Context, server domain.ServerURL) (domain.WellKnownEntry, bool, error) {
	if b, err := c.hot.Get(server.String()); err == nil {
		var entry domain.WellKnownEntry
		if err := json.Unmarshal(b, &entry); err == nil {
			c.metrics.WellKnownLookup("hot")
			return entry, true, nil
		}
		_ = c.hot.Delete(server.String())
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		c.logger.Warn("hot tier read failed", zap.String("server", server.String()), zap.Error(err))
	}

	var (
		entry domain.WellKnownEntry
		ok    bool
	)
	err := c.sessions.View(ctx, func(tx domain.Txn) error {
		var err error
		entry, ok, err = c.store.LoadWellKnown(tx, server)
		return err
	})
	if err != nil {
		return domain.WellKnownEntry{}, false, err
	}
	if !ok {
		c.metrics.WellKnownLookup("miss")
		return domain.WellKnownEntry{}, false, nil
	}
	c.metrics.WellKnownLookup("durable")
	c.putHot(entry)
	return entry, true, nil
}

func (c *Cache) putHot(entry domain.WellKnownEntry) {
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.hot.Set(entry.Server.String(), b); err != nil {
		c.logger.Warn("hot tier write failed", zap.String("server", entry.Server.String()), zap.Error(err))
	}
}
