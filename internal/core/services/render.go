package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
	"github.com/custodia-labs/signdesk/internal/core/ports/driving"
	"github.com/custodia-labs/signdesk/internal/flatten"
)

// Ensure renderService implements RenderService
var _ driving.RenderService = (*renderService)(nil)

// RenderConfig holds dependencies for the render service.
type RenderConfig struct {
	Templates driven.TemplateStore
	Documents driven.SignedDocumentStore
	Objects   driven.ObjectStore
	Pipeline  *flatten.Pipeline
	Logger    *slog.Logger
}

type renderService struct {
	templates driven.TemplateStore
	documents driven.SignedDocumentStore
	objects   driven.ObjectStore
	pipeline  *flatten.Pipeline
	logger    *slog.Logger
}

// NewRenderService creates a new RenderService
func NewRenderService(cfg RenderConfig) driving.RenderService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &renderService{
		templates: cfg.Templates,
		documents: cfg.Documents,
		objects:   cfg.Objects,
		pipeline:  cfg.Pipeline,
		logger:    logger,
	}
}

// GetSignedDocument retrieves a signed document by ID
func (s *renderService) GetSignedDocument(ctx context.Context, id string) (*domain.SignedDocument, error) {
	return s.documents.Get(ctx, id)
}

// FlattenForDownload loads the template geometry and original bytes and
// runs the flattening pipeline. The signed document is never modified.
func (s *renderService) FlattenForDownload(ctx context.Context, documentID string) (*domain.RenderedDocument, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.templates.Get(ctx, doc.TemplateID)
	if err != nil {
		return nil, &domain.LoadError{Resource: "template", Err: err}
	}

	original, err := s.objects.Download(ctx, tmpl.FilePath)
	if err != nil {
		return nil, &domain.LoadError{Resource: "template pdf", Err: err}
	}

	res, err := s.pipeline.Flatten(ctx, original, tmpl, doc.Values)
	if err != nil {
		s.logger.Error("flatten failed", "document_id", doc.ID, "template_id", tmpl.ID, "error", err)
		return nil, err
	}

	for _, failed := range res.Report.Failed() {
		s.logger.Warn("field not rendered", "document_id", doc.ID, "field_id", failed.FieldID, "reason", failed.Message)
	}

	return &domain.RenderedDocument{
		DocumentID: doc.ID,
		Filename:   downloadName(tmpl.Name, doc.ID),
		PDF:        res.PDF,
		Report:     res.Report,
	}, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func downloadName(templateName, documentID string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(templateName), "-"), "-")
	if slug == "" {
		slug = "document"
	}
	short := documentID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-signed-%s.pdf", slug, short)
}
