// Package mcp exposes the signing workflow as MCP tools for agent hosts.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/afero"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driving"
)

const defaultQRSize = 256

// Config holds MCP server configuration
type Config struct {
	Name    string
	Version string
	// Fs receives flattened PDFs; defaults to the OS filesystem
	Fs     afero.Fs
	Logger *slog.Logger
}

// DefaultConfig returns default MCP server configuration
func DefaultConfig() Config {
	return Config{
		Name:    "signdesk",
		Version: "dev",
	}
}

// Server represents the MCP server instance
type Server struct {
	signingService driving.SigningService
	handoffService driving.HandoffService
	renderService  driving.RenderService
	fs             afero.Fs
	logger         *slog.Logger
	mcpServer      *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(
	cfg Config,
	signingService driving.SigningService,
	handoffService driving.HandoffService,
	renderService driving.RenderService,
) (*Server, error) {
	if signingService == nil || handoffService == nil || renderService == nil {
		return nil, errors.New("mcp: services cannot be nil")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		signingService: signingService,
		handoffService: handoffService,
		renderService:  renderService,
		fs:             cfg.Fs,
		logger:         cfg.Logger,
		mcpServer: server.NewMCPServer(
			cfg.Name,
			cfg.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	sessionID := mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Signing session ID"),
	)

	s.mcpServer.AddTool(mcp.NewTool(
		"signing_load_session",
		mcp.WithDescription("Start a signing session on a template"),
		mcp.WithString("template_id", mcp.Required(), mcp.Description("Template ID")),
	), s.handleLoadSession)

	s.mcpServer.AddTool(mcp.NewTool(
		"signing_set_field",
		mcp.WithDescription("Set the value of a field, addressed by field ID"),
		sessionID,
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field ID (not the label)")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Text, date or signature data URL")),
	), s.handleSetField)

	s.mcpServer.AddTool(mcp.NewTool(
		"signing_advance",
		mcp.WithDescription("Move to the next field; refused while the active required field is blank"),
		sessionID,
	), s.handleAdvance)

	s.mcpServer.AddTool(mcp.NewTool(
		"signing_validate",
		mcp.WithDescription("List required fields that are still missing"),
		sessionID,
	), s.handleValidate)

	s.mcpServer.AddTool(mcp.NewTool(
		"signing_submit",
		mcp.WithDescription("Validate and persist the signed document"),
		sessionID,
	), s.handleSubmit)

	s.mcpServer.AddTool(mcp.NewTool(
		"signing_flatten",
		mcp.WithDescription("Burn a signed document's values into its template PDF and write it to a path"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Signed document ID")),
		mcp.WithString("output_path", mcp.Required(), mcp.Description("Destination file or directory")),
	), s.handleFlatten)

	s.mcpServer.AddTool(mcp.NewTool(
		"handoff_begin",
		mcp.WithDescription("Hand the signature off to another device and return its link and QR code"),
		sessionID,
		mcp.WithNumber("size", mcp.Description("QR code edge length in pixels")),
	), s.handleBeginHandoff)
}

// Run serves the tools over stdio until the input closes
func (s *Server) Run(_ context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

func (s *Server) handleLoadSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	session, err := s.signingService.LoadSession(ctx, templateID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(describeSession(session))
}

func (s *Server) handleSetField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fieldID, err := request.RequireString("field_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session, err := s.signingService.SetFieldValue(ctx, sessionID, fieldID, value)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(describeSession(session))
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	session, err := s.signingService.AdvanceField(ctx, sessionID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(describeSession(session))
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.signingService.ValidateForSubmission(ctx, sessionID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.signingService.Submit(ctx, sessionID)
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Signed document %s saved for template %s", doc.ID, doc.TemplateID)), nil
}

func (s *Server) handleFlatten(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := request.RequireString("output_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rendered, err := s.renderService.FlattenForDownload(ctx, documentID)
	if err != nil {
		return s.toolError(err), nil
	}

	path := output
	if info, statErr := s.fs.Stat(output); statErr == nil && info.IsDir() {
		path = filepath.Join(output, rendered.Filename)
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot create %s: %v", filepath.Dir(path), err)), nil
	}
	if err := afero.WriteFile(s.fs, path, rendered.PDF, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot write %s: %v", path, err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Wrote %s (%d bytes)\n", path, len(rendered.PDF))
	fmt.Fprintf(&b, "Fields drawn: %d\n", rendered.Report.Count(domain.OutcomeDrawn))
	if n := rendered.Report.Count(domain.OutcomeSkippedPage); n > 0 {
		fmt.Fprintf(&b, "Fields skipped (page out of range): %d\n", n)
	}
	for _, f := range rendered.Report.Failed() {
		fmt.Fprintf(&b, "Field %s not drawn: %s\n", f.FieldID, f.Message)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleBeginHandoff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	size := request.GetInt("size", defaultQRSize)

	session, err := s.signingService.GetSession(ctx, sessionID)
	if err != nil {
		return s.toolError(err), nil
	}
	ref, err := s.handoffService.Begin(ctx, session.TemplateID, session.ID)
	if err != nil {
		return s.toolError(err), nil
	}

	text := fmt.Sprintf("Open this link on the signing device:\n%s\nExpires at %s",
		ref.URL, ref.Handoff.ExpiresAt.UTC().Format("2006-01-02 15:04:05 MST"))

	png, err := s.handoffService.QRCode(ctx, ref.Handoff.ID, size)
	if err != nil {
		// the link alone is still usable
		s.logger.Warn("failed to render hand-off QR code", "handoff_id", ref.Handoff.ID, "error", err)
		return mcp.NewToolResultText(text), nil
	}
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

// sessionView is the agent-facing summary of a session
type sessionView struct {
	ID               string              `json:"id"`
	TemplateID       string              `json:"template_id"`
	State            domain.SessionState `json:"state"`
	ActiveFieldID    string              `json:"active_field_id,omitempty"`
	ActiveFieldLabel string              `json:"active_field_label,omitempty"`
	Fields           []domain.Field      `json:"fields"`
	FilledFieldIDs   []string            `json:"filled_field_ids"`
	SignedDocumentID string              `json:"signed_document_id,omitempty"`
}

// describeSession omits values so signature payloads stay out of the agent context
func describeSession(s *domain.SigningSession) sessionView {
	v := sessionView{
		ID:               s.ID,
		TemplateID:       s.TemplateID,
		State:            s.State(),
		Fields:           s.Fields,
		FilledFieldIDs:   []string{},
		SignedDocumentID: s.SignedDocumentID,
	}
	if f, ok := s.ActiveField(); ok {
		v.ActiveFieldID = f.ID
		v.ActiveFieldLabel = f.Label
	}
	for _, f := range s.Fields {
		if strings.TrimSpace(s.Values[f.ID]) != "" {
			v.FilledFieldIDs = append(v.FilledFieldIDs, f.ID)
		}
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError converts a service error into a tool error the agent can act on.
// Storage and driver text is logged, never returned.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	var (
		validationErr *domain.ValidationError
		loadErr       *domain.LoadError
		persistErr    *domain.PersistError
		renderErr     *domain.RenderError
	)

	switch {
	case errors.As(err, &validationErr):
		return mcp.NewToolResultError("required fields missing: " + strings.Join(validationErr.MissingLabels, ", "))
	case errors.As(err, &loadErr):
		if errors.Is(err, domain.ErrNotFound) {
			return mcp.NewToolResultError(loadErr.Resource + " not found")
		}
		s.logger.Error("load failed", "resource", loadErr.Resource, "error", err)
		return mcp.NewToolResultError(loadErr.Resource + " unavailable, try again")
	case errors.As(err, &persistErr):
		s.logger.Error("persist failed", "op", persistErr.Op, "error", err)
		return mcp.NewToolResultError("failed to save signed document, try again")
	case errors.As(err, &renderErr):
		s.logger.Error("render failed", "error", err)
		return mcp.NewToolResultError("cannot produce a signed copy of this document")
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrNoNextField),
		errors.Is(err, domain.ErrSessionSubmitted),
		errors.Is(err, domain.ErrHandoffConflict),
		errors.Is(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	default:
		s.logger.Error("tool call failed", "error", err)
		return mcp.NewToolResultError("internal error")
	}
}
