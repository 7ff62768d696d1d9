package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/0surface/Remittance/core"
	"github.com/0surface/Remittance/core/events"
	"github.com/0surface/Remittance/core/types"
	"github.com/0surface/Remittance/observability"
	"github.com/0surface/Remittance/rpc/modules"
)

const maxRequestBytes = 1 << 20 // 1 MiB

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Config tunes the HTTP surface.
type Config struct {
	ServiceName       string
	RequestsPerSecond float64
	Burst             int
	// TrustedProxies lists peers whose X-Real-IP / X-Forwarded-For headers
	// identify the client for rate limiting. Other peers are keyed by their
	// own address.
	TrustedProxies []string
	Logger         *slog.Logger
}

type Server struct {
	remittance *modules.RemittanceModule
	logger     *slog.Logger
	limiter    *rateLimiter
	tracer     trace.Tracer
	calls      metric.Int64Counter
	methods    map[string]methodHandler
}

type methodHandler func(params []json.RawMessage) (interface{}, *modules.ModuleError)

func NewServer(node *core.Node, log *events.Log, cfg Config) (*Server, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "remitd"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	trusted, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	meter := otel.Meter(cfg.ServiceName)
	calls, err := meter.Int64Counter("remittance.rpc.calls",
		metric.WithDescription("JSON-RPC calls handled, by method."))
	if err != nil {
		calls = noop.Int64Counter{}
	}
	s := &Server{
		remittance: modules.NewRemittanceModule(node, log),
		logger:     logger,
		limiter:    newRateLimiter(cfg.RequestsPerSecond, cfg.Burst, trusted),
		tracer:     otel.Tracer(cfg.ServiceName),
		calls:      calls,
	}
	s.methods = s.routes()
	return s, nil
}

// Handler returns the HTTP surface: JSON-RPC on POST /, plus health and
// Prometheus endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.traced)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.limiter.Middleware).Post("/", s.handle)
	return r
}

func (s *Server) routes() map[string]methodHandler {
	submit := func(method string) methodHandler {
		return func(params []json.RawMessage) (interface{}, *modules.ModuleError) {
			if len(params) != 1 {
				return nil, paramCountError("exactly one signed call expected")
			}
			return s.remittance.Submit(method, params[0])
		}
	}
	single := func(fn func(json.RawMessage) (interface{}, *modules.ModuleError)) methodHandler {
		return func(params []json.RawMessage) (interface{}, *modules.ModuleError) {
			if len(params) != 1 {
				return nil, paramCountError("parameter object required")
			}
			return fn(params[0])
		}
	}
	return map[string]methodHandler{
		"remittance_generateKey": single(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.remittance.GenerateKey(raw)
		}),
		"remittance_generateSecret": single(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.remittance.GenerateSecret(raw)
		}),
		"remittance_deposit":         submit(types.MethodDeposit),
		"remittance_withdraw":        submit(types.MethodWithdraw),
		"remittance_refund":          submit(types.MethodRefund),
		"remittance_setLockDuration": submit(types.MethodSetLockDuration),
		"remittance_pause":           submit(types.MethodPause),
		"remittance_unpause":         submit(types.MethodUnpause),
		"remittance_changeOwner":     submit(types.MethodChangeOwner),
		"remittance_getEntry": single(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.remittance.GetEntry(raw)
		}),
		"remittance_getBalance": single(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.remittance.GetBalance(raw)
		}),
		"remittance_getConfig": func(params []json.RawMessage) (interface{}, *modules.ModuleError) {
			if len(params) != 0 {
				return nil, paramCountError("no parameters expected")
			}
			return s.remittance.GetConfig()
		},
		"remittance_listEvents": func(params []json.RawMessage) (interface{}, *modules.ModuleError) {
			if len(params) > 1 {
				return nil, paramCountError("too many parameters")
			}
			var raw json.RawMessage
			if len(params) == 1 {
				raw = params[0]
			}
			return s.remittance.ListEvents(raw)
		},
	}
}

func paramCountError(message string) *modules.ModuleError {
	return &modules.ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	ctx := r.Context()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("rpc.method", req.Method))
	handler, ok := s.methods[req.Method]
	if !ok {
		observability.RPC().Observe("unknown", codeMethodNotFound, 0)
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
		return
	}
	s.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("rpc.method", req.Method)))

	start := time.Now()
	result, modErr := handler(req.Params)
	elapsed := time.Since(start)
	if modErr != nil {
		observability.RPC().Observe(req.Method, modErr.Code, elapsed)
		s.logger.Debug("rpc request failed",
			slog.String("request_id", requestIDFrom(ctx)),
			slog.String("method", req.Method),
			slog.Int("code", modErr.Code),
			slog.String("reason", modErr.Message))
		writeModuleError(w, req.ID, modErr)
		return
	}
	observability.RPC().Observe(req.Method, 0, elapsed)
	writeResult(w, req.ID, result)
}

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	if err == nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "unknown module error", nil)
		return
	}
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}
