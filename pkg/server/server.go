package server

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"

	"github.com/oarkflow/sprite"
	"github.com/oarkflow/sprite/pkg/history"
)

type Config struct {
	Version string
	Runtime sprite.RuntimeConfig
	// Globals are predeclared in every run before request globals.
	Globals map[string]any
	// RequestLog enables the fiber access log middleware.
	RequestLog bool
}

type Server struct {
	app     *fiber.App
	config  Config
	cache   sprite.ProgramCache
	history *history.Store
	logger  *log.Logger
}

type Option func(*Server)

func WithProgramCache(cache sprite.ProgramCache) Option {
	return func(s *Server) { s.cache = cache }
}

func WithHistory(store *history.Store) Option {
	return func(s *Server) { s.history = store }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

type RunRequest struct {
	Source  string         `json:"source"`
	Globals map[string]any `json:"globals,omitempty"`
}

type RunResponse struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Result     string  `json:"result,omitempty"`
	Type       string  `json:"type,omitempty"`
	Output     string  `json:"output"`
	Error      string  `json:"error,omitempty"`
	Code       string  `json:"code,omitempty"`
	Line       int     `json:"line,omitempty"`
	Column     int     `json:"column,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

type SourceRequest struct {
	Source string `json:"source"`
}

type ParseResponse struct {
	Statements int      `json:"statements"`
	AST        []string `json:"ast"`
}

type TokenResponse struct {
	Kind   string `json:"kind"`
	Value  any    `json:"value"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func NewServer(cfg Config, opts ...Option) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder: func(v any) ([]byte, error) {
			return json.Marshal(v)
		},
		JSONDecoder: func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
		},
	})
	cfg.Globals = normalizeGlobals(cfg.Globals)
	s := &Server{
		app:    app,
		config: cfg,
		logger: &log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = history.NewMemory()
	}
	s.setupRoutes()
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	s.app.Use(cors.New())
	if s.config.RequestLog {
		s.app.Use(logger.New())
	}

	s.app.Get("/api/health", s.healthHandler)

	s.app.Post("/api/run", s.runHandler)
	s.app.Post("/api/parse", s.parseHandler)
	s.app.Post("/api/tokens", s.tokensHandler)

	s.app.Get("/api/runs", s.getRunsHandler)
	s.app.Get("/api/runs/:id", s.getRunHandler)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.config.Version,
		"builtins":  sprite.BuiltinNames(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func scriptErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	var se *sprite.ScriptError
	if errors.As(err, &se) {
		resp.Code = string(se.Code)
		resp.Line = se.Line
		resp.Column = se.Column
	}
	return resp
}

// bindSource decodes the request body. It reports false once a 400 response
// has been written.
func bindSource(c *fiber.Ctx, req any, source func() string) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}
	if strings.TrimSpace(source()) == "" {
		return false, c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Source cannot be empty"})
	}
	return true, nil
}

func (s *Server) runHandler(c *fiber.Ctx) error {
	var req RunRequest
	if ok, err := bindSource(c, &req, func() string { return req.Source }); !ok {
		return err
	}

	var out bytes.Buffer
	opts := []sprite.Option{
		sprite.WithOutput(&out),
		sprite.WithLogger(s.logger),
		sprite.WithRuntimeConfig(s.config.Runtime),
		sprite.WithGlobals(s.config.Globals),
		sprite.WithGlobals(normalizeGlobals(req.Globals)),
	}
	if s.cache != nil {
		opts = append(opts, sprite.WithProgramCache(s.cache))
	}

	start := time.Now()
	rec := history.Record{Source: req.Source, StartedAt: start}
	in, err := sprite.New(opts...)
	var result sprite.Value
	if err == nil {
		result, err = in.Run(runContext(c), req.Source)
	}
	rec.Duration = time.Since(start)
	rec.Output = out.String()

	resp := RunResponse{Output: rec.Output, DurationMs: float64(rec.Duration.Microseconds()) / 1000}
	status := fiber.StatusOK
	if err != nil {
		errResp := scriptErrorResponse(err)
		rec.Status = history.StatusFailed
		rec.Error, rec.Code = errResp.Error, errResp.Code
		resp.Error, resp.Code, resp.Line, resp.Column = errResp.Error, errResp.Code, errResp.Line, errResp.Column
		status = fiber.StatusUnprocessableEntity
	} else {
		rec.Status = history.StatusSucceeded
		rec.Result = result.Inspect()
		resp.Result = rec.Result
		resp.Type = result.Type().String()
	}
	resp.Status = string(rec.Status)

	stored, herr := s.history.Append(rec)
	if herr != nil {
		s.logger.Error().Err(herr).Msg("failed to record run")
	}
	resp.ID = stored.ID
	return c.Status(status).JSON(resp)
}

// normalizeGlobals turns whole JSON numbers back into integers.
func normalizeGlobals(globals map[string]any) map[string]any {
	out := make(map[string]any, len(globals))
	for name, v := range globals {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			v = int64(f)
		}
		out[name] = v
	}
	return out
}

func runContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (s *Server) parseHandler(c *fiber.Ctx) error {
	var req SourceRequest
	if ok, err := bindSource(c, &req, func() string { return req.Source }); !ok {
		return err
	}
	program, err := sprite.Parse(req.Source)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(scriptErrorResponse(err))
	}
	resp := ParseResponse{Statements: len(program.Statements), AST: make([]string, 0, len(program.Statements))}
	for _, stmt := range program.Statements {
		resp.AST = append(resp.AST, stmt.String())
	}
	return c.JSON(resp)
}

func (s *Server) tokensHandler(c *fiber.Ctx) error {
	var req SourceRequest
	if ok, err := bindSource(c, &req, func() string { return req.Source }); !ok {
		return err
	}
	tokens, err := sprite.Tokenize(req.Source)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(scriptErrorResponse(err))
	}
	resp := make([]TokenResponse, 0, len(tokens))
	for _, tok := range tokens {
		var value any = tok.Literal
		switch tok.Kind {
		case sprite.INT:
			value = tok.Int
		case sprite.FLOAT:
			value = tok.Float
		}
		resp = append(resp, TokenResponse{Kind: string(tok.Kind), Value: value, Line: tok.Line, Column: tok.Column})
	}
	return c.JSON(resp)
}

func (s *Server) getRunsHandler(c *fiber.Ctx) error {
	return c.JSON(s.history.List(c.QueryInt("limit", 50)))
}

func (s *Server) getRunHandler(c *fiber.Ctx) error {
	rec, ok := s.history.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "run not found")
	}
	return c.JSON(rec)
}

func (s *Server) Start(addr string) error {
	log.Printf("Starting sprite API server on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	log.Printf("Shutting down sprite API server gracefully")
	return s.app.Shutdown()
}
