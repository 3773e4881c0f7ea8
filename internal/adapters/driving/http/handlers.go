package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// ValidationErrorResponse lists the required fields still blank
// @Description Validation failure
type ValidationErrorResponse struct {
	Error           string   `json:"error" example:"required fields missing"`
	MissingFieldIDs []string `json:"missing_field_ids"`
	MissingLabels   []string `json:"missing_labels" example:"Name"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// SessionResponse is a signing session with its derived navigation state
// @Description Signing session
type SessionResponse struct {
	*domain.SigningSession
	State         domain.SessionState `json:"state" example:"editing"`
	ActiveFieldID string              `json:"active_field_id,omitempty"`
}

// SetFieldRequest carries a field value
// @Description Field value
type SetFieldRequest struct {
	Value string `json:"value" example:"Jane Doe"`
}

// CaptureRequest carries the secondary device's captured values keyed by field ID
// @Description Captured values
type CaptureRequest struct {
	Values map[string]string `json:"values"`
}

const (
	defaultQRSize = 256

	// sseHeartbeat keeps proxies from closing an idle event stream
	sseHeartbeat = 15 * time.Second
)

func newSessionResponse(s *domain.SigningSession) SessionResponse {
	resp := SessionResponse{SigningSession: s, State: s.State()}
	if f, ok := s.ActiveField(); ok {
		resp.ActiveFieldID = f.ID
	}
	return resp
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the storage, lock and event backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = "unavailable"
		}
	}
	if len(failed) > 0 {
		failed["status"] = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, failed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Template and session endpoints

// handleGetTemplate godoc
// @Summary      Get template
// @Tags         Templates
// @Produce      json
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  domain.Template
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/templates/{id} [get]
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.signingService.GetTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// handleLoadSession godoc
// @Summary      Start a signing session
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Template ID"
// @Success      201  {object}  SessionResponse
// @Failure      502  {object}  ErrorResponse  "Template or its PDF unavailable"
// @Router       /api/v1/templates/{id}/sessions [post]
func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.signingService.LoadSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

// handleGetSession godoc
// @Summary      Get a signing session
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  SessionResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/sessions/{id} [get]
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.signingService.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// handleCloseSession godoc
// @Summary      Close a signing session
// @Tags         Sessions
// @Param        id   path  string  true  "Session ID"
// @Success      204
// @Router       /api/v1/sessions/{id} [delete]
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.signingService.CloseSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetFieldValue godoc
// @Summary      Set a field value
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "Session ID"
// @Param        fieldID  path      string           true  "Field ID"
// @Param        request  body      SetFieldRequest  true  "Value"
// @Success      200      {object}  SessionResponse
// @Failure      400      {object}  ErrorResponse  "Unknown field"
// @Failure      409      {object}  ErrorResponse  "Session already submitted"
// @Router       /api/v1/sessions/{id}/fields/{fieldID} [put]
func (s *Server) handleSetFieldValue(w http.ResponseWriter, r *http.Request) {
	var req SetFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.signingService.SetFieldValue(r.Context(), r.PathValue("id"), r.PathValue("fieldID"), req.Value)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// handleAdvance godoc
// @Summary      Advance to the next field
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  SessionResponse
// @Failure      409  {object}  ErrorResponse            "Already at the last field"
// @Failure      422  {object}  ValidationErrorResponse  "Active required field is blank"
// @Router       /api/v1/sessions/{id}/advance [post]
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	session, err := s.signingService.AdvanceField(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// handleValidate godoc
// @Summary      Validate a session for submission
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  domain.ValidationResult
// @Router       /api/v1/sessions/{id}/validation [get]
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	result, err := s.signingService.ValidateForSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSubmit godoc
// @Summary      Submit a session
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      201  {object}  domain.SignedDocument
// @Failure      409  {object}  ErrorResponse            "Already submitted or completed elsewhere"
// @Failure      422  {object}  ValidationErrorResponse  "Required fields missing"
// @Failure      500  {object}  ErrorResponse            "Persistence failed"
// @Router       /api/v1/sessions/{id}/submit [post]
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	doc, err := s.signingService.Submit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Hand-off endpoints

// handleBeginHandoff godoc
// @Summary      Begin a hand-off to another device
// @Tags         Handoff
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      201  {object}  domain.HandoffReference
// @Router       /api/v1/sessions/{id}/handoff [post]
func (s *Server) handleBeginHandoff(w http.ResponseWriter, r *http.Request) {
	session, err := s.signingService.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	ref, err := s.handoffService.Begin(r.Context(), session.TemplateID, session.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// handleHandoffEvents godoc
// @Summary      Await hand-off completion
// @Description  Server-Sent Events. Emits "waiting", then one of "completed" (session), "timeout" or "error".
// @Tags         Handoff
// @Produce      text/event-stream
// @Param        id   path  string  true  "Session ID"
// @Success      200
// @Router       /api/v1/sessions/{id}/handoff/events [get]
func (s *Server) handleHandoffEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.PathValue("id")

	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	type result struct {
		session *domain.SigningSession
		err     error
	}
	done := make(chan result, 1)
	go func() {
		session, err := s.handoffService.AwaitSession(ctx, sessionID)
		done <- result{session: session, err: err}
	}()

	writeEvent(w, "waiting", map[string]string{"session_id": sessionID})
	_ = rc.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			_ = rc.Flush()
		case res := <-done:
			switch {
			case res.err == nil:
				writeEvent(w, "completed", newSessionResponse(res.session))
			case errors.Is(res.err, domain.ErrHandoffTimeout):
				writeEvent(w, "timeout", ErrorResponse{Error: "hand-off timed out"})
			case ctx.Err() != nil:
				// client went away
				return
			default:
				_, message := s.classify(res.err)
				writeEvent(w, "error", ErrorResponse{Error: message})
			}
			_ = rc.Flush()
			return
		}
	}
}

// handleHandoffQR godoc
// @Summary      Hand-off QR code
// @Tags         Handoff
// @Produce      png
// @Param        id    path   string  true   "Hand-off ID"
// @Param        size  query  int     false  "Edge length in pixels"
// @Success      200
// @Failure      410  {object}  ErrorResponse  "Hand-off expired"
// @Router       /api/v1/handoffs/{id}/qr.png [get]
func (s *Server) handleHandoffQR(w http.ResponseWriter, r *http.Request) {
	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid size")
			return
		}
		size = n
	}

	png, err := s.handoffService.QRCode(r.Context(), r.PathValue("id"), size)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleOpenCapture godoc
// @Summary      Open the capture view on the secondary device
// @Tags         Capture
// @Produce      json
// @Security     HandoffToken
// @Success      200  {object}  domain.CaptureContext
// @Failure      401  {object}  ErrorResponse  "Invalid token"
// @Failure      410  {object}  ErrorResponse  "Token expired"
// @Router       /api/v1/capture [get]
func (s *Server) handleOpenCapture(w http.ResponseWriter, r *http.Request) {
	capture, err := s.handoffService.OpenCapture(r.Context(), GetCaptureToken(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capture)
}

// handleCompleteCapture godoc
// @Summary      Save the captured signature
// @Tags         Capture
// @Accept       json
// @Produce      json
// @Security     HandoffToken
// @Param        request  body      CaptureRequest  true  "Captured values"
// @Success      201      {object}  domain.SignedDocument
// @Failure      409      {object}  ErrorResponse  "Hand-off already completed"
// @Failure      422      {object}  ValidationErrorResponse
// @Router       /api/v1/capture [post]
func (s *Server) handleCompleteCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := s.handoffService.Complete(r.Context(), GetCaptureToken(r.Context()), req.Values)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// handleCancelCapture godoc
// @Summary      Cancel capture on the secondary device
// @Tags         Capture
// @Security     HandoffToken
// @Success      204
// @Router       /api/v1/capture/cancel [post]
func (s *Server) handleCancelCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.handoffService.Cancel(r.Context(), GetCaptureToken(r.Context())); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Signed document endpoints

// handleGetSignedDocument godoc
// @Summary      Get a signed document
// @Tags         SignedDocuments
// @Produce      json
// @Param        id   path      string  true  "Signed document ID"
// @Success      200  {object}  domain.SignedDocument
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/signed-documents/{id} [get]
func (s *Server) handleGetSignedDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.renderService.GetSignedDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDownloadPDF godoc
// @Summary      Download the flattened PDF
// @Description  X-Overlay-Failed carries the number of fields that could not be drawn.
// @Tags         SignedDocuments
// @Produce      application/pdf
// @Param        id   path  string  true  "Signed document ID"
// @Success      200
// @Failure      502  {object}  ErrorResponse  "Template PDF unavailable or unreadable"
// @Router       /api/v1/signed-documents/{id}/pdf [get]
func (s *Server) handleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	rendered, err := s.renderService.FlattenForDownload(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.PDF)))
	w.Header().Set("X-Overlay-Failed", strconv.Itoa(len(rendered.Report.Failed())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered.PDF)
}

// Error mapping

// classify maps service errors to a status and a client-safe message.
// Driver and wrapped error text is never returned.
func (s *Server) classify(err error) (int, string) {
	var (
		loadErr    *domain.LoadError
		persistErr *domain.PersistError
		renderErr  *domain.RenderError
	)
	switch {
	case errors.As(err, &loadErr):
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, loadErr.Resource + " not found"
		}
		return http.StatusBadGateway, loadErr.Resource + " unavailable"
	case errors.As(err, &renderErr):
		return http.StatusBadGateway, "template pdf could not be read"
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, "failed to save signed document"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrUnknownField):
		return http.StatusBadRequest, "unknown field"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrNoNextField):
		return http.StatusConflict, "no next field"
	case errors.Is(err, domain.ErrSessionSubmitted):
		return http.StatusConflict, "session already submitted"
	case errors.Is(err, domain.ErrHandoffConflict):
		return http.StatusConflict, "hand-off already completed"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusGone, "hand-off link expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid hand-off token"
	case errors.Is(err, domain.ErrHandoffTimeout):
		return http.StatusGatewayTimeout, "hand-off timed out"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:           "required fields missing",
			MissingFieldIDs: ve.MissingFieldIDs,
			MissingLabels:   ve.MissingLabels,
		})
		return
	}

	status, message := s.classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(`{}`)
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
