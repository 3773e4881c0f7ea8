package domain

import (
	"fmt"
	"time"
)

// SessionStatus is the persisted lifecycle status of a signing session
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusSubmitted  SessionStatus = "submitted"
)

// SessionState is the navigation state derived from a session
type SessionState string

const (
	StateEditing       SessionState = "editing"
	StateReadyToSubmit SessionState = "ready_to_submit"
	StateSubmitted     SessionState = "submitted"
)

// ValidationResult is the outcome of checking required fields
type ValidationResult struct {
	OK              bool     `json:"ok"`
	MissingFieldIDs []string `json:"missing_field_ids"`
	MissingLabels   []string `json:"missing_labels"`
}

// Err converts a failed result into a *ValidationError, nil when OK
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationError{
		MissingFieldIDs: r.MissingFieldIDs,
		MissingLabels:   r.MissingLabels,
	}
}

// ValidateValues collects the required fields whose value is missing or
// blank after trimming. Fields are scanned in template order.
func ValidateValues(fields []Field, values map[string]string) ValidationResult {
	res := ValidationResult{
		MissingFieldIDs: []string{},
		MissingLabels:   []string{},
	}
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if IsBlank(values[f.ID]) {
			res.MissingFieldIDs = append(res.MissingFieldIDs, f.ID)
			res.MissingLabels = append(res.MissingLabels, f.Label)
		}
	}
	res.OK = len(res.MissingFieldIDs) == 0
	return res
}

// SigningSession is the state of one person filling one template instance.
// It carries a snapshot of the template fields so navigation never needs
// the store; fields are immutable once a template is published.
type SigningSession struct {
	ID               string            `json:"id"`
	TemplateID       string            `json:"template_id"`
	HandoffID        string            `json:"handoff_id,omitempty"`
	Fields           []Field           `json:"fields"`
	Values           map[string]string `json:"values"`
	ActiveIndex      int               `json:"active_index"`
	Status           SessionStatus     `json:"status"`
	SignedDocumentID string            `json:"signed_document_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
}

// NewSigningSession starts a session on the first field of the template
func NewSigningSession(id string, tmpl *Template, ttl time.Duration) *SigningSession {
	now := time.Now()
	fields := make([]Field, len(tmpl.Fields))
	copy(fields, tmpl.Fields)
	return &SigningSession{
		ID:          id,
		TemplateID:  tmpl.ID,
		Fields:      fields,
		Values:      make(map[string]string),
		ActiveIndex: 0,
		Status:      SessionStatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// IsExpired checks if the session has expired
func (s *SigningSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsSubmitted reports whether the session reached its terminal state
func (s *SigningSession) IsSubmitted() bool {
	return s.Status == SessionStatusSubmitted
}

// ActiveField returns the field currently being edited
func (s *SigningSession) ActiveField() (Field, bool) {
	if s.ActiveIndex < 0 || s.ActiveIndex >= len(s.Fields) {
		return Field{}, false
	}
	return s.Fields[s.ActiveIndex], true
}

func (s *SigningSession) field(id string) (Field, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// SetValue records a value for a field. Overwriting is allowed (re-signing).
func (s *SigningSession) SetValue(fieldID, value string) error {
	if s.IsSubmitted() {
		return ErrSessionSubmitted
	}
	if _, ok := s.field(fieldID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[fieldID] = value
	s.UpdatedAt = time.Now()
	return nil
}

// Advance moves to the next field in template order. It refuses to leave a
// required field that has no value, and returns ErrNoNextField on the last one.
func (s *SigningSession) Advance() error {
	if s.IsSubmitted() {
		return ErrSessionSubmitted
	}
	current, ok := s.ActiveField()
	if !ok {
		return ErrNoNextField
	}
	if current.Required && IsBlank(s.Values[current.ID]) {
		return &ValidationError{
			MissingFieldIDs: []string{current.ID},
			MissingLabels:   []string{current.Label},
		}
	}
	if s.ActiveIndex >= len(s.Fields)-1 {
		return ErrNoNextField
	}
	s.ActiveIndex++
	s.UpdatedAt = time.Now()
	return nil
}

// Validate scans all fields for missing required values
func (s *SigningSession) Validate() ValidationResult {
	return ValidateValues(s.Fields, s.Values)
}

// State derives the navigation state
func (s *SigningSession) State() SessionState {
	if s.IsSubmitted() {
		return StateSubmitted
	}
	if s.ActiveIndex >= len(s.Fields)-1 && s.Validate().OK {
		return StateReadyToSubmit
	}
	return StateEditing
}

// MarkSubmitted moves the session to its terminal state after a successful
// persistence call
func (s *SigningSession) MarkSubmitted(documentID string) error {
	if s.IsSubmitted() {
		return ErrSessionSubmitted
	}
	if err := s.Validate().Err(); err != nil {
		return err
	}
	s.Status = SessionStatusSubmitted
	s.SignedDocumentID = documentID
	s.UpdatedAt = time.Now()
	return nil
}

// ApplyRemoteCompletion merges a document completed on another device and
// treats it as a local submission. The first completion wins.
func (s *SigningSession) ApplyRemoteCompletion(doc *SignedDocument) error {
	if doc.TemplateID != s.TemplateID {
		return fmt.Errorf("%w: document %s belongs to template %s", ErrInvalidInput, doc.ID, doc.TemplateID)
	}
	if s.IsSubmitted() {
		if s.SignedDocumentID == doc.ID {
			return nil
		}
		return ErrHandoffConflict
	}
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	for id, v := range doc.Values {
		if _, ok := s.field(id); ok {
			s.Values[id] = v
		}
	}
	s.Status = SessionStatusSubmitted
	s.SignedDocumentID = doc.ID
	s.ActiveIndex = len(s.Fields) - 1
	s.UpdatedAt = time.Now()
	return nil
}

// Snapshot returns the values as a fresh map
func (s *SigningSession) Snapshot() map[string]string {
	out := make(map[string]string, len(s.Values))
	for k, v := range s.Values {
		out[k] = v
	}
	return out
}
