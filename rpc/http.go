package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"eventpass/native/pass"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError       = -32700
	codeInvalidRequest   = -32600
	codeMethodNotFound   = -32601
	codeInvalidParams    = -32602
	codeServerError      = -32000
	codeUnauthorized     = -32001
	codeRateLimited      = -32020
	codeNotWhitelisted   = -32021
	codeAlreadyConsumed  = -32022
	codeUnknownTier      = -32023
	codePriceMismatch    = -32024
	codeNothingToRelease = -32025
)

// RateLimit bounds redemption traffic per source address.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

// Server exposes the settlement engine over JSON-RPC 2.0. It holds no
// business rules: it parses requests, calls the engine, and maps sentinel
// errors to response codes.
type Server struct {
	engine *pass.Engine
	log    *slog.Logger

	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewServer constructs the RPC surface for the supplied engine. A zero
// RateLimit disables throttling.
func NewServer(engine *pass.Engine, logger *slog.Logger, limit RateLimit) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		log:      logger,
		limit:    limit,
		visitors: make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint, health, and
// prometheus metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)
	log := s.log.With("requestId", requestID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", req.JSONRPC)
		return
	}

	method := strings.TrimSpace(req.Method)
	log = log.With("method", method)

	if method == "pass_redeem" && !s.allow(clientID(r)) {
		log.Warn("redeem throttled")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	switch method {
	case "pass_redeem":
		s.handleRedeem(w, req, log)
	case "pass_withdraw":
		s.handleWithdraw(w, req, log)
	case "pass_releasable":
		s.handleReleasable(w, req)
	case "pass_grants":
		s.handleGrants(w, req)
	case "pass_info":
		s.handleInfo(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method", method)
	}
}

func (s *Server) allow(id string) bool {
	if s.limit.RequestsPerMinute <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[id]
	if !ok {
		perSecond := s.limit.RequestsPerMinute / 60.0
		burst := s.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		s.visitors[id] = limiter
	}
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}
