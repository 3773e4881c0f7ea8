// Package flatten burns signed form values into template PDFs.
package flatten

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
	"github.com/custodia-labs/signdesk/internal/overlay"
)

// Normaliser rewrites a field value before it is planned.
// Normalisers run in Order() and must be pure.
type Normaliser interface {
	Name() string
	Order() int
	Normalise(field domain.Field, value string) string
}

// Result is the output of one flattening pass
type Result struct {
	PDF    []byte
	Report domain.OverlayReport
}

// Config holds pipeline dependencies
type Config struct {
	Engine  driven.PDFEngine
	Overlay *overlay.Engine
	Logger  *slog.Logger
}

// Pipeline opens the original document once, overlays every field in
// template order and serializes once at the end.
type Pipeline struct {
	mu          sync.RWMutex
	engine      driven.PDFEngine
	overlay     *overlay.Engine
	normalisers []Normaliser
	sorted      bool
	logger      *slog.Logger
}

// NewPipeline creates a pipeline with no normalisers.
func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ov := cfg.Overlay
	if ov == nil {
		ov = overlay.NewEngine(overlay.Config{})
	}
	return &Pipeline{
		engine:      cfg.Engine,
		overlay:     ov,
		normalisers: make([]Normaliser, 0),
		logger:      logger,
	}
}

// DefaultPipeline creates a pipeline with the default normalisers.
func DefaultPipeline(cfg Config) *Pipeline {
	p := NewPipeline(cfg)
	p.Add(NewLineEndingNormaliser())
	p.Add(NewDateNormaliser())
	return p
}

// Add adds a normaliser to the pipeline.
func (p *Pipeline) Add(n Normaliser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.normalisers = append(p.normalisers, n)
	p.sorted = false
}

// List returns normaliser names in order.
func (p *Pipeline) List() []string {
	normalisers := p.ordered()
	names := make([]string, len(normalisers))
	for i, n := range normalisers {
		names[i] = n.Name()
	}
	return names
}

func (p *Pipeline) ordered() []Normaliser {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.normalisers, func(i, j int) bool {
			return p.normalisers[i].Order() < p.normalisers[j].Order()
		})
		p.sorted = true
	}
	p.mu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Normaliser, len(p.normalisers))
	copy(out, p.normalisers)
	return out
}

// Flatten overlays values onto original and returns the new PDF bytes.
// A document that cannot be parsed returns *domain.RenderError. Per-field
// failures are recorded in the report and never abort the pass.
func (p *Pipeline) Flatten(ctx context.Context, original []byte, tmpl *domain.Template, values map[string]string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := p.engine.Open(original)
	if err != nil {
		return nil, &domain.RenderError{Err: err}
	}

	normalisers := p.ordered()
	pageCount := doc.PageCount()
	res := &Result{}

	for _, field := range tmpl.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if field.Position.Page < 1 || field.Position.Page > pageCount {
			p.logger.Debug("field outside document, skipping",
				"template_id", tmpl.ID, "field_id", field.ID, "page", field.Position.Page, "page_count", pageCount)
			res.Report.Add(domain.FieldResult{FieldID: field.ID, Label: field.Label, Outcome: domain.OutcomeSkippedPage})
			continue
		}

		value := values[field.ID]
		for _, n := range normalisers {
			value = n.Normalise(field, value)
		}

		res.Report.Add(p.overlayField(doc, tmpl.ID, field, value))
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, &domain.RenderError{Err: fmt.Errorf("write document: %w", err)}
	}
	res.PDF = out

	if failed := res.Report.Failed(); len(failed) > 0 {
		p.logger.Warn("flattened with overlay failures",
			"template_id", tmpl.ID, "failed", len(failed), "drawn", res.Report.Count(domain.OutcomeDrawn))
	}
	return res, nil
}

func (p *Pipeline) overlayField(doc driven.PDFDocument, templateID string, field domain.Field, value string) domain.FieldResult {
	result := domain.FieldResult{FieldID: field.ID, Label: field.Label}

	width, height, err := doc.PageSize(field.Position.Page)
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Err = fmt.Errorf("page size: %w", err)
		return result
	}

	ins, err := p.overlay.Plan(field, value, overlay.PageInfo{Number: field.Position.Page, Width: width, Height: height})
	if err != nil {
		p.logger.Warn("overlay skipped", "template_id", templateID, "field_id", field.ID, "error", err)
		result.Outcome = domain.OutcomeFailed
		result.Err = err
		return result
	}
	if ins == nil {
		result.Outcome = domain.OutcomeEmpty
		return result
	}

	if err := doc.Draw(ins); err != nil {
		p.logger.Warn("overlay draw failed", "template_id", templateID, "field_id", field.ID, "error", err)
		result.Outcome = domain.OutcomeFailed
		result.Err = err
		return result
	}

	result.Outcome = domain.OutcomeDrawn
	return result
}
