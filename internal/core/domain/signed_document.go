package domain

import "time"

// DocumentSource records which device produced a signed document
type DocumentSource string

const (
	SourcePrimary DocumentSource = "primary"
	SourceHandoff DocumentSource = "handoff"
)

// SignedDocument is the persisted record of one completed submission.
// Created exactly once per submission and immutable thereafter.
// Values are keyed by field id.
type SignedDocument struct {
	ID         string            `json:"id"`
	TemplateID string            `json:"template_id"`
	HandoffID  string            `json:"handoff_id,omitempty"`
	Values     map[string]string `json:"values"`
	Source     DocumentSource    `json:"source"`
	CreatedAt  time.Time         `json:"created_at"`
}

// EventKind names a change notification
type EventKind string

const (
	EventDocumentCreated EventKind = "signed_document.created"
)

// DocumentEvent is the change notification emitted for every signed document insert
type DocumentEvent struct {
	Kind       EventKind `json:"kind"`
	DocumentID string    `json:"document_id"`
	TemplateID string    `json:"template_id"`
	HandoffID  string    `json:"handoff_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDocumentCreatedEvent builds the creation event for a document
func NewDocumentCreatedEvent(doc *SignedDocument) DocumentEvent {
	return DocumentEvent{
		Kind:       EventDocumentCreated,
		DocumentID: doc.ID,
		TemplateID: doc.TemplateID,
		HandoffID:  doc.HandoffID,
		CreatedAt:  doc.CreatedAt,
	}
}
