// Package pdfcpu stamps overlay instructions onto PDFs with pdfcpu.
package pdfcpu

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpulib "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

var (
	_ driven.PDFEngine   = (*Engine)(nil)
	_ driven.PDFDocument = (*Document)(nil)
)

var configOnce sync.Once

// Engine opens documents with relaxed validation, since templates come from
// arbitrary authoring tools.
type Engine struct{}

// NewEngine creates a pdfcpu-backed engine. pdfcpu's on-disk config
// directory is disabled; the service never reads user fonts.
func NewEngine() *Engine {
	configOnce.Do(api.DisableConfigDir)
	return &Engine{}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open parses and validates the document
func (e *Engine) Open(data []byte) (driven.PDFDocument, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrSourceLoad)
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceLoad, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceLoad, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceLoad, err)
	}

	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: page dimensions: %v", domain.ErrSourceLoad, err)
	}

	return &Document{
		ctx:    ctx,
		dims:   dims,
		stamps: make(map[int][]*model.Watermark),
	}, nil
}

// Document is one opened PDF with its pending stamps
type Document struct {
	ctx     *model.Context
	dims    []types.Dim
	stamps  map[int][]*model.Watermark
	applied bool
}

func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

func (d *Document) PageSize(page int) (float64, float64, error) {
	if page < 1 || page > len(d.dims) {
		return 0, 0, fmt.Errorf("page %d out of range (1-%d)", page, len(d.dims))
	}
	dim := d.dims[page-1]
	return dim.Width, dim.Height, nil
}

// Draw queues a stamp anchored at the bottom-left corner of the page,
// offset to the instruction's PDF user space position.
func (d *Document) Draw(ins *domain.Instruction) error {
	if d.applied {
		return errors.New("document already serialized")
	}
	if ins.Page < 1 || ins.Page > d.PageCount() {
		return fmt.Errorf("page %d out of range", ins.Page)
	}

	var (
		wm  *model.Watermark
		err error
	)
	switch ins.Kind {
	case domain.InstructionText:
		wm, err = api.TextWatermark(ins.Text, textDescription(ins), true, false, types.POINTS)
	case domain.InstructionImage:
		wm, err = api.ImageWatermarkForReader(bytes.NewReader(ins.Image), imageDescription(ins), true, false, types.POINTS)
	default:
		return fmt.Errorf("unsupported instruction kind %q", ins.Kind)
	}
	if err != nil {
		return fmt.Errorf("build stamp for field %s: %w", ins.FieldID, err)
	}

	d.stamps[ins.Page] = append(d.stamps[ins.Page], wm)
	return nil
}

func textDescription(ins *domain.Instruction) string {
	return fmt.Sprintf("font:%s, points:%d, pos:bl, off:%.2f %.2f, scale:1 abs, rot:0, op:1, fillc:#000000",
		ins.FontName, int(ins.FontSize), ins.X, ins.Y)
}

func imageDescription(ins *domain.Instruction) string {
	return fmt.Sprintf("pos:bl, off:%.2f %.2f, scale:%.2f abs, rot:0, op:1", ins.X, ins.Y, ins.Scale)
}

// Bytes applies every queued stamp and writes the document. It may be
// called once.
func (d *Document) Bytes() ([]byte, error) {
	if d.applied {
		return nil, errors.New("document already serialized")
	}
	d.applied = true

	if len(d.stamps) > 0 {
		if err := pdfcpulib.AddWatermarksSliceMap(d.ctx, d.stamps); err != nil {
			return nil, fmt.Errorf("apply stamps: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
