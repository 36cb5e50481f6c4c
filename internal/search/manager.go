package search

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/ids"
	"github.com/hpungsan/intake/internal/logging"
	"github.com/hpungsan/intake/internal/metrics"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 25

// Page request results recorded in metrics.
const (
	resultOK         = "ok"
	resultError      = "error"
	resultSuperseded = "superseded"
	resultNoMore     = "no_more_results"
)

// Manager owns the current search session.
//
// Every StartSearch opens a new generation. Page requests are keyed by
// generation in a singleflight group, so concurrent requests for the same
// session share one outstanding call, and a response that lands after a
// newer StartSearch is discarded instead of appended.
type Manager struct {
	searcher Searcher
	pageSize int
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	gen     uint64
	session *Session
	cancel  context.CancelFunc // cancels the in-flight request of the current generation
	waiting int                // callers blocked on a page request

	flight singleflight.Group
}

// NewManager creates a Manager. A non-positive pageSize uses DefaultPageSize.
func NewManager(searcher Searcher, logger *zap.Logger, m *metrics.Metrics, pageSize int) *Manager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Manager{
		searcher: searcher,
		pageSize: pageSize,
		logger:   logging.OrNop(logger),
		metrics:  m,
	}
}

// StartSearch discards the current session, cancels its in-flight request,
// and fetches the first page of query.
func (m *Manager) StartSearch(ctx context.Context, query string) (*Session, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}

	sessionID, err := ids.New()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	gen := m.gen
	m.session = &Session{ID: sessionID, Query: query, Hits: []Hit{}}
	m.mu.Unlock()

	m.logger.Debug("search started", zap.String("session_id", sessionID), zap.Uint64("generation", gen))

	return m.fetch(ctx, gen, func(*Session) (Cursor, error) { return nil, nil })
}

// LoadNextPage fetches the page after the session's cursor and appends it.
// It returns NO_MORE_RESULTS, leaving the session untouched, when the last
// page has already been loaded. A call made while a page request for the
// same session is outstanding issues no request of its own; it receives the
// session as updated by the outstanding request.
func (m *Manager) LoadNextPage(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, errors.NewInvalidRequest("no active search; start a search first")
	}
	gen := m.gen
	m.mu.Unlock()

	return m.fetch(ctx, gen, func(s *Session) (Cursor, error) {
		if s.Pages == 0 {
			return nil, errors.NewInvalidRequest("search has no results yet; start the search again")
		}
		if s.Cursor == nil {
			return nil, errors.NewNoMoreResults(s.Query)
		}
		return cloneCursor(s.Cursor), nil
	})
}

// Session returns a snapshot of the current session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// Reset tears down the current session and cancels any in-flight request.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.session = nil
}

// fetch runs one page request for generation gen through the singleflight
// group. cursorFor picks the cursor from the session, or refuses the request.
//
// The call is registered while m.mu is held. The in-flight call needs m.mu
// to finish, so a caller that registers while it is outstanding always joins
// it.
func (m *Manager) fetch(ctx context.Context, gen uint64, cursorFor func(*Session) (Cursor, error)) (*Session, error) {
	m.mu.Lock()
	ch := m.flight.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		m.mu.Lock()
		if m.gen != gen || m.session == nil {
			m.mu.Unlock()
			m.metrics.SearchPage(resultSuperseded)
			return nil, errors.NewSuperseded("")
		}
		sess := m.session
		after, err := cursorFor(sess)
		if err != nil {
			m.mu.Unlock()
			if errors.Is(err, errors.ErrNoMoreResults) {
				m.metrics.SearchPage(resultNoMore)
			}
			return nil, err
		}
		query, sessionID := sess.Query, sess.ID
		reqCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.mu.Unlock()
		defer cancel()

		page, err := m.searcher.SearchPeople(reqCtx, query, after, m.pageSize)
		return m.apply(gen, sessionID, page, err)
	})
	m.waiting++
	m.mu.Unlock()

	res := <-ch

	m.mu.Lock()
	waiting := m.waiting
	m.waiting--
	m.mu.Unlock()

	if res.Shared {
		m.logger.Debug("page request shared with in-flight call",
			zap.Uint64("generation", gen),
			zap.Int("waiting", waiting),
		)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Val.(*Session).clone(), nil
}

// apply appends a page to the session of generation gen. Results for a
// superseded generation are dropped.
func (m *Manager) apply(gen uint64, sessionID string, page *Page, err error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		m.logger.Debug("discarding page for superseded session", zap.String("session_id", sessionID))
		m.metrics.SearchPage(resultSuperseded)
		return nil, errors.NewSuperseded(sessionID)
	}
	m.cancel = nil

	if err != nil {
		m.metrics.SearchPage(resultError)
		m.logger.Warn("search page request failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	if page == nil {
		page = &Page{}
	}

	sess := m.session
	sess.Hits = append(sess.Hits, page.Hits...)
	sess.Total = page.Total
	if len(sess.Hits) > sess.Total {
		m.logger.Warn("search service reported total below hits received",
			zap.String("session_id", sessionID),
			zap.Int("total", page.Total),
			zap.Int("hits", len(sess.Hits)),
		)
		sess.Total = len(sess.Hits)
	}
	sess.Cursor = cloneCursor(page.Cursor)
	sess.Pages++

	m.metrics.SearchPage(resultOK)
	return sess.clone(), nil
}
