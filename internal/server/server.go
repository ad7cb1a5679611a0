// Package server implements the serving side: a TCP listener, a
// hand-rolled HTTP/1.1 request parser, a fixed routing table, and a
// hot-swappable read-only index handle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/docsift/docsift/internal/config"
	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/search"
)

// Server owns the listener, the worker pool, and the active runtime.
type Server struct {
	cfg    config.ServeConfig
	logger *slog.Logger

	runtime  atomic.Pointer[Runtime]
	reopenMu sync.Mutex

	workers  *semaphore.Weighted
	listener net.Listener
}

// New opens the index and prepares a server. The listener is not bound
// until Serve.
func New(ctx context.Context, cfg config.ServeConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt, err := OpenRuntime(ctx, cfg.IndexPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		workers: semaphore.NewWeighted(int64(cfg.Workers)),
	}
	s.runtime.Store(rt)
	return s, nil
}

// splitListenAddress splits at the last ':' so bare-host and bare-port
// forms both work. An empty host means all interfaces; an empty port is
// an error.
func splitListenAddress(address string) (string, string, error) {
	pos := strings.LastIndexByte(address, ':')
	if pos < 0 {
		return "", "", sifterrors.New(sifterrors.ErrCodeConfigInvalid,
			"listen address must include port", nil)
	}
	host, port := address[:pos], address[pos+1:]
	if port == "" {
		return "", "", sifterrors.New(sifterrors.ErrCodeConfigInvalid,
			"listen port is empty", nil)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}

// Serve binds the listener and accepts connections until ctx is canceled.
// Each accepted connection occupies one worker slot; when all slots are
// busy, accepted connections wait rather than being dropped.
func (s *Server) Serve(ctx context.Context) error {
	host, port, err := splitListenAddress(s.cfg.Listen)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeConfigInvalid, err)
	}
	s.listener = listener

	s.logger.Info("listening",
		slog.String("address", listener.Addr().String()),
		slog.Int("workers", s.cfg.Workers))

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept_failed", slog.String("error", err.Error()))
			continue
		}

		if err := s.workers.Acquire(ctx, 1); err != nil {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.workers.Release(1)
			s.handleConn(ctx, conn)
		}()
	}
}

// Addr returns the bound listener address, for tests binding port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close releases the active runtime (and the listener, if bound).
func (s *Server) Close() error {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if rt := s.runtime.Load(); rt != nil {
		return rt.Close()
	}
	return nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	start := time.Now()
	req := ReadRequest(conn)
	if req == nil {
		writeJSONError(conn, 400, "bad request")
		s.logger.Warn("bad_request",
			slog.String("remote", conn.RemoteAddr().String()))
		return
	}

	status := s.route(ctx, conn, req)
	s.logger.Info("request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)))
}

// route dispatches on exact method + path and returns the status written.
func (s *Server) route(ctx context.Context, conn net.Conn, req *Request) int {
	switch {
	case req.Method == "GET" && req.Path == "/search":
		return s.handleSearch(ctx, conn, req)
	case req.Method == "GET" && req.Path == "/meta":
		return s.handleMeta(conn)
	case req.Method == "GET" && req.Path == "/healthz":
		return s.handleHealth(conn)
	case req.Method == "POST" && req.Path == "/admin/reopen":
		return s.handleReopen(ctx, conn, req)
	}
	writeJSONError(conn, 404, "not found")
	return 404
}

type hitPayload struct {
	URL       string          `json:"url"`
	Title     string          `json:"title"`
	Format    string          `json:"format"`
	Tags      json.RawMessage `json:"tags"`
	Lang      string          `json:"lang"`
	UpdatedAt int64           `json:"updated_at"`
	Score     float64         `json:"score"`
	Snippet   string          `json:"snippet"`
}

type searchPayload struct {
	Hits       []hitPayload `json:"hits"`
	Count      int          `json:"count"`
	RepoCommit string       `json:"repo_commit"`
}

type metaPayload struct {
	SchemaVersion string `json:"schema_version"`
	RepoCommit    string `json:"repo_commit"`
	BuiltAt       string `json:"built_at"`
	DocCount      int    `json:"doc_count"`
}

func (s *Server) handleSearch(ctx context.Context, conn net.Conn, req *Request) int {
	params := parseQueryMap(req.QueryString)

	query, ok := params["q"]
	if !ok {
		writeJSONError(conn, 400, "missing q")
		return 400
	}
	query = strings.Trim(query, " \t\r\n")
	if query == "" {
		writeJSONError(conn, 400, "empty query")
		return 400
	}
	if len(query) < s.cfg.MinQueryLen {
		writeJSONError(conn, 400, "query too short")
		return 400
	}
	if len(query) > s.cfg.MaxQueryLen {
		writeJSONError(conn, 413, "query too long")
		return 413
	}

	limit := s.cfg.DefaultLimit
	if raw, ok := params["limit"]; ok {
		if parsed, err := strconv.ParseUint(raw, 10, 31); err == nil {
			limit = int(parsed)
		}
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	if limit == 0 {
		limit = 1
	}

	offset := 0
	if raw, ok := params["offset"]; ok {
		if parsed, err := strconv.ParseUint(raw, 10, 31); err == nil {
			offset = int(parsed)
		}
	}

	rt := s.runtime.Load()
	hits, err := rt.Search(ctx, query, limit, offset)
	if err != nil {
		writeJSONError(conn, 500, "search failed")
		s.logger.Error("search_failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return 500
	}

	body, err := json.Marshal(buildSearchPayload(hits, rt.Meta().RepoCommit))
	if err != nil {
		writeJSONError(conn, 500, "search failed")
		return 500
	}
	writeResponse(conn, 200, jsonHeaders(rt.Meta().RepoCommit), body)
	return 200
}

func buildSearchPayload(hits []search.Hit, repoCommit string) searchPayload {
	payload := searchPayload{
		Hits:       make([]hitPayload, 0, len(hits)),
		Count:      len(hits),
		RepoCommit: repoCommit,
	}
	for _, h := range hits {
		tags := h.Tags
		if tags == "" || !json.Valid([]byte(tags)) {
			tags = "[]"
		}
		payload.Hits = append(payload.Hits, hitPayload{
			URL:       h.URL,
			Title:     h.Title,
			Format:    h.Format,
			Tags:      json.RawMessage(tags),
			Lang:      h.Lang,
			UpdatedAt: h.UpdatedAt,
			Score:     h.Score,
			Snippet:   h.Snippet,
		})
	}
	return payload
}

func (s *Server) handleMeta(conn net.Conn) int {
	rt := s.runtime.Load()
	meta := rt.Meta()
	body, err := json.Marshal(metaPayload{
		SchemaVersion: meta.SchemaVersion,
		RepoCommit:    meta.RepoCommit,
		BuiltAt:       meta.BuiltAt,
		DocCount:      meta.DocCount,
	})
	if err != nil {
		writeJSONError(conn, 500, "internal error")
		return 500
	}
	writeResponse(conn, 200, jsonHeaders(meta.RepoCommit), body)
	return 200
}

func (s *Server) handleHealth(conn net.Conn) int {
	writeResponse(conn, 200,
		[]header{{"Content-Type", "text/plain"}}, []byte("ok"))
	return 200
}

// handleReopen swaps in a freshly opened runtime. The old handle is
// closed only after the swap, so readers racing the reload always see a
// complete runtime.
func (s *Server) handleReopen(ctx context.Context, conn net.Conn, req *Request) int {
	if !s.verifyAdmin(req) {
		writeJSONError(conn, 401, "unauthorized")
		return 401
	}

	s.reopenMu.Lock()
	defer s.reopenMu.Unlock()

	fresh, err := OpenRuntime(ctx, s.cfg.IndexPath)
	if err != nil {
		writeJSONError(conn, 500, "reload failed")
		s.logger.Error("reload_failed", slog.String("error", err.Error()))
		return 500
	}

	old := s.runtime.Swap(fresh)
	if old != nil {
		_ = old.Close()
	}

	s.logger.Info("index_reloaded",
		slog.String("repo_commit", fresh.meta.RepoCommit),
		slog.Int("doc_count", fresh.meta.DocCount))

	writeResponse(conn, 204,
		[]header{{"X-Index-Version", fresh.meta.RepoCommit}}, nil)
	return 204
}

// verifyAdmin checks the bearer token. An unset token disables the
// endpoint entirely rather than leaving it open.
func (s *Server) verifyAdmin(req *Request) bool {
	if s.cfg.AdminToken == "" {
		return false
	}
	return req.Headers["authorization"] == "Bearer "+s.cfg.AdminToken
}

func jsonHeaders(repoCommit string) []header {
	return []header{
		{"Content-Type", "application/json"},
		{"Cache-Control", "no-store"},
		{"X-Index-Version", repoCommit},
	}
}
