package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/jaclearn/runbox/config"
	"github.com/jaclearn/runbox/lang"
	"github.com/jaclearn/runbox/policy"
	"github.com/jaclearn/runbox/sandbox"
	"github.com/jaclearn/runbox/session"
	"github.com/jaclearn/runbox/translator"
)

// MCPServer exposes the execution and translation core over MCP.
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	pol       policy.Policy
	rate      policy.RateCounter
	sessions  *session.Manager
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor, pol policy.Policy, rate policy.RateCounter, sessions *session.Manager) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
		pol:      pol,
		rate:     rate,
		sessions: sessions,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Int("limits.max_execution_time_ms", cfg.Limits.MaxExecutionTimeMs),
		zap.Int64("limits.max_memory_bytes", cfg.Limits.MaxMemoryBytes),
		zap.Int64("limits.max_output_size_bytes", cfg.Limits.MaxOutputSizeBytes),
		zap.Int64("limits.max_code_size_bytes", cfg.Limits.MaxCodeSizeBytes),
		zap.Bool("policy.sandboxing_enabled", pol.SandboxingEnabled),
		zap.Bool("policy.network_access_enabled", pol.NetworkAccessEnabled),
		zap.Int("policy.max_executions_per_minute", pol.MaxExecutionsPerMinute),
		zap.Int("policy.max_executions_per_hour", pol.MaxExecutionsPerHour),
		zap.Bool("sandbox.translate_fallback", cfg.Sandbox.TranslateFallback),
	)

	s.mcpServer = server.NewMCPServer("runbox", "Sandboxed execution and translation for learner programs")

	s.registerExecuteCodeTool()
	s.registerTranslateCodeTool()
	s.registerSessionTools()

	return s, nil
}

// executeResponse is the wire shape of one execution outcome.
type executeResponse struct {
	Status          string `json:"status"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        int    `json:"exit_code"`
	WallTimeMs      int64  `json:"wall_time_ms"`
	MemoryUsedBytes int64  `json:"memory_used_bytes,omitempty"`
	TruncatedOutput bool   `json:"truncated_output"`
	Violation       string `json:"violation,omitempty"`

	// SessionError reports a failed session accounting step. The execution
	// itself still happened; its outcome is in the fields above.
	SessionError string `json:"session_error,omitempty"`
}

// translateResponse is the wire shape of one translation outcome.
type translateResponse struct {
	Success        bool     `json:"success"`
	TranslatedCode string   `json:"translated_code"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// summaryResponse is the wire shape of a session summary.
type summaryResponse struct {
	SessionID            string `json:"session_id"`
	TotalExecutions      int    `json:"total_executions"`
	SuccessfulExecutions int    `json:"successful_executions"`
	FailedExecutions     int    `json:"failed_executions"`
	TotalExecutionTimeMs int64  `json:"total_execution_time_ms"`
	IsActive             bool   `json:"is_active"`
}

func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_code",
		Description: "Execute learner code in a sandboxed environment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "User-provided source code",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Surface language of the code",
					"enum":        []string{"jac", "py"},
				},
				"stdin": map[string]any{
					"type":        "string",
					"description": "Standard input fed to the program (optional)",
				},
				"caller_id": map[string]any{
					"type":        "string",
					"description": "Identity of the requesting user, used for rate limiting",
				},
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session to record this execution against (optional)",
				},
				"timeout_ms": map[string]any{
					"type":        "integer",
					"description": "Execution timeout override; may only tighten the default",
				},
				"max_memory_bytes": map[string]any{
					"type":        "integer",
					"description": "Memory ceiling override; may only tighten the default",
				},
			},
			Required: []string{"code", "language", "caller_id"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

//nolint:funlen // The validate → translate → execute → record pipeline reads best in one place.
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}
	languageStr, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}
	callerID, err := request.RequireString("caller_id")
	if err != nil {
		return nil, fmt.Errorf("caller_id parameter is required: %w", err)
	}

	language, err := lang.Parse(languageStr)
	if err != nil {
		return nil, err
	}

	limits := s.requestLimits(request)
	req := sandbox.NewExecutionRequest(language, code, limits)
	req.Stdin = request.GetString("stdin", "")
	caller := policy.CallerIdentity{UserID: callerID}

	s.logger.Info("code execution requested",
		zap.String("request_id", req.ID.String()),
		zap.String("language", language.String()),
		zap.String("caller", caller.Key()))

	// Reject fast: a rejected request never reaches the executor and is
	// never counted toward rate limits.
	if validateErr := policy.Validate(ctx, req, s.pol, caller, s.rate); validateErr != nil {
		if v, ok := policy.AsViolation(validateErr); ok {
			s.logger.Info("request rejected by policy",
				zap.String("request_id", req.ID.String()),
				zap.String("violation", string(v.Kind)))
			return s.jsonResult(executeResponse{
				Status:    string(sandbox.StatusRejected),
				ExitCode:  -1,
				Violation: v.Error(),
			})
		}
		return s.errorResult("policy validation failed: %v", validateErr), nil
	}

	// The request is attempted from here on; record it for rate limiting
	// before execution, whatever its outcome.
	if recordErr := s.rate.RecordExecution(ctx, caller); recordErr != nil {
		s.logger.Warn("rate accounting failed", zap.Error(recordErr))
	}

	if translated, trErr := s.maybeTranslate(&req); trErr != nil {
		return s.errorResult("translation pre-step failed: %v", trErr), nil
	} else if translated {
		s.logger.Info("request translated before execution",
			zap.String("request_id", req.ID.String()),
			zap.String("runtime_language", req.Language.String()))
	}

	result, execErr := s.executor.Execute(ctx, req)
	if execErr != nil {
		if errors.Is(execErr, sandbox.ErrSandboxUnavailable) {
			// No silent fallback to unsandboxed execution.
			return s.jsonResult(executeResponse{
				Status:    string(sandbox.StatusRejected),
				ExitCode:  -1,
				Violation: execErr.Error(),
			})
		}
		s.logger.Error("sandbox execution failed",
			zap.Error(execErr),
			zap.String("request_id", req.ID.String()),
			zap.String("language", req.Language.String()))
		return s.errorResult("execution failed: %v", execErr), nil
	}

	resp := executeResponse{
		Status:          string(result.Status),
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		ExitCode:        result.ExitCode,
		WallTimeMs:      result.WallTime.Milliseconds(),
		MemoryUsedBytes: result.MemoryUsed,
		TruncatedOutput: result.TruncatedOutput,
	}

	// Accounting failure (stale or unknown session) must not swallow the
	// execution outcome: the result is reported with the error beside it.
	if sessionErr := s.recordToSession(request, result); sessionErr != nil {
		s.logger.Warn("session accounting failed",
			zap.Error(sessionErr),
			zap.String("request_id", req.ID.String()))
		resp.SessionError = sessionErr.Error()
	}

	s.logger.Info("code execution completed",
		zap.String("request_id", req.ID.String()),
		zap.String("status", string(result.Status)),
		zap.Int("exit_code", result.ExitCode),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	return s.jsonResult(resp)
}

// requestLimits merges per-request overrides into the system defaults.
// Overrides may only tighten; MergeLimits clamps anything looser.
func (s *MCPServer) requestLimits(request mcp.CallToolRequest) sandbox.ResourceLimits {
	defaults := sandbox.ResourceLimits{
		MaxExecutionTime: s.config.Limits.MaxExecutionTime(),
		MaxMemory:        s.config.Limits.MaxMemoryBytes,
		MaxOutputSize:    s.config.Limits.MaxOutputSizeBytes,
		MaxCodeSize:      s.config.Limits.MaxCodeSizeBytes,
	}
	override := sandbox.ResourceLimits{
		MaxExecutionTime: time.Duration(request.GetInt("timeout_ms", 0)) * time.Millisecond,
		MaxMemory:        int64(request.GetInt("max_memory_bytes", 0)),
	}
	return sandbox.MergeLimits(defaults, override)
}

// maybeTranslate rewrites the request into the other surface syntax when
// the declared language has no configured runtime but its counterpart
// does. Reports whether a translation happened.
func (s *MCPServer) maybeTranslate(req *sandbox.ExecutionRequest) (bool, error) {
	if !s.config.Sandbox.TranslateFallback {
		return false, nil
	}
	if s.config.Languages.Runtime(req.Language).RunCmd != "" {
		return false, nil
	}
	other := req.Language.Other()
	if s.config.Languages.Runtime(other).RunCmd == "" {
		return false, nil
	}

	tr := translator.Translate(req.Code, req.Language, other)
	if !tr.Success {
		return false, fmt.Errorf("cannot translate %s to %s: %v", req.Language, other, tr.Errors)
	}
	req.Code = tr.TranslatedCode
	req.Language = other
	return true, nil
}

// recordToSession applies the result to the named session, if any. The
// handle comes from the client, so a closed session is an error here, never
// the panic Record reserves for in-process misuse.
func (s *MCPServer) recordToSession(request mcp.CallToolRequest, result sandbox.ExecutionResult) error {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return nil
	}
	handle, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session_id: %w", err)
	}
	return s.sessions.RecordIfActive(handle, result)
}

func (s *MCPServer) registerTranslateCodeTool() {
	tool := mcp.Tool{
		Name:        "translate_code",
		Description: "Translate code between the jac and py surface syntaxes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to translate",
				},
				"from": map[string]any{
					"type":        "string",
					"description": "Source language",
					"enum":        []string{"jac", "py"},
				},
				"to": map[string]any{
					"type":        "string",
					"description": "Target language",
					"enum":        []string{"jac", "py"},
				},
			},
			Required: []string{"code", "from", "to"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleTranslateCode)
}

func (s *MCPServer) handleTranslateCode(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}
	fromStr, err := request.RequireString("from")
	if err != nil {
		return nil, fmt.Errorf("from parameter is required: %w", err)
	}
	toStr, err := request.RequireString("to")
	if err != nil {
		return nil, fmt.Errorf("to parameter is required: %w", err)
	}

	from, err := lang.Parse(fromStr)
	if err != nil {
		return nil, err
	}
	to, err := lang.Parse(toStr)
	if err != nil {
		return nil, err
	}
	// The translator's contract assumes distinct languages; this boundary
	// is where that is enforced.
	if from == to {
		return nil, fmt.Errorf("from and to languages must differ, both are %q", from)
	}

	result := translator.Translate(code, from, to)

	s.logger.Info("translation completed",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Bool("success", result.Success),
		zap.Int("warnings", len(result.Warnings)))

	return s.jsonResult(translateResponse{
		Success:        result.Success,
		TranslatedCode: result.TranslatedCode,
		Errors:         result.Errors,
		Warnings:       result.Warnings,
	})
}

func (s *MCPServer) registerSessionTools() {
	openTool := mcp.Tool{
		Name:        "open_session",
		Description: "Open a session for aggregate execution accounting",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
	s.mcpServer.AddTool(openTool, s.handleOpenSession)

	closeTool := mcp.Tool{
		Name:        "close_session",
		Description: "Close a session and return its summary",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session to close",
				},
			},
			Required: []string{"session_id"},
		},
	}
	s.mcpServer.AddTool(closeTool, s.handleCloseSession)
}

func (s *MCPServer) handleOpenSession(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle := s.sessions.Open()
	return s.jsonResult(map[string]string{"session_id": handle.String()})
}

func (s *MCPServer) handleCloseSession(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return nil, fmt.Errorf("session_id parameter is required: %w", err)
	}
	handle, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session_id: %w", err)
	}

	summary, err := s.sessions.Close(handle)
	if err != nil {
		return s.errorResult("close session failed: %v", err), nil
	}

	return s.jsonResult(summaryResponse{
		SessionID:            summary.ID.String(),
		TotalExecutions:      summary.TotalExecutions,
		SuccessfulExecutions: summary.SuccessfulExecutions,
		FailedExecutions:     summary.FailedExecutions,
		TotalExecutionTimeMs: summary.TotalExecutionTime.Milliseconds(),
		IsActive:             summary.IsActive,
	})
}

func (s *MCPServer) jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func (s *MCPServer) errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
