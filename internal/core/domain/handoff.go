package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// HandoffStatus is the lifecycle status of a cross-device hand-off
type HandoffStatus string

const (
	HandoffPending   HandoffStatus = "pending"
	HandoffCompleted HandoffStatus = "completed"
)

// CaptureMode is the query flag that tells the secondary device to render
// the minimal capture UI
const CaptureMode = "capture"

// Handoff delegates signature capture for one primary session to a
// secondary device
type Handoff struct {
	ID               string        `json:"id"`
	TemplateID       string        `json:"template_id"`
	SessionID        string        `json:"session_id,omitempty"`
	Status           HandoffStatus `json:"status"`
	SignedDocumentID string        `json:"signed_document_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// IsExpired checks if the hand-off window has closed
func (h *Handoff) IsExpired() bool {
	return time.Now().After(h.ExpiresAt)
}

// IsCompleted reports whether a secondary device already completed the hand-off
func (h *Handoff) IsCompleted() bool {
	return h.Status == HandoffCompleted
}

// HandoffClaims are carried by the signed correlation token embedded in the
// hand-off reference
type HandoffClaims struct {
	HandoffID  string `json:"handoff_id"`
	TemplateID string `json:"template_id"`
	SessionID  string `json:"session_id,omitempty"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
}

// HandoffReference is what the primary device renders as a scannable code
type HandoffReference struct {
	Handoff *Handoff `json:"handoff"`
	Token   string   `json:"token"`
	URL     string   `json:"url"`
}

// BuildHandoffURL encodes the template id, the capture flag and the
// correlation token into a session-addressable reference
func BuildHandoffURL(baseURL, templateID, token string) string {
	q := url.Values{}
	q.Set("mode", CaptureMode)
	q.Set("handoff", token)
	return fmt.Sprintf("%s/sign/%s?%s", strings.TrimRight(baseURL, "/"), url.PathEscape(templateID), q.Encode())
}

// ParseHandoffURL extracts the template id and token from a reference URL
func ParseHandoffURL(raw string) (templateID, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Query().Get("mode") != CaptureMode {
		return "", "", fmt.Errorf("%w: not a capture reference", ErrInvalidInput)
	}
	idx := strings.LastIndex(u.Path, "/sign/")
	if idx < 0 {
		return "", "", fmt.Errorf("%w: missing template path", ErrInvalidInput)
	}
	templateID, err = url.PathUnescape(u.Path[idx+len("/sign/"):])
	if err != nil || templateID == "" {
		return "", "", fmt.Errorf("%w: missing template id", ErrInvalidInput)
	}
	return templateID, u.Query().Get("handoff"), nil
}

// CaptureContext is what the secondary device needs to render its capture UI
type CaptureContext struct {
	Handoff         *Handoff `json:"handoff"`
	TemplateName    string   `json:"template_name"`
	SignatureFields []Field  `json:"signature_fields"`
}
