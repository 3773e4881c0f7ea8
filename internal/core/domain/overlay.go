package domain

// InstructionKind distinguishes text draws from image blits
type InstructionKind string

const (
	InstructionText  InstructionKind = "text"
	InstructionImage InstructionKind = "image"
)

// Instruction is one draw operation in PDF user space (bottom-left origin)
type Instruction struct {
	FieldID string          `json:"field_id"`
	Label   string          `json:"label"`
	Kind    InstructionKind `json:"kind"`
	Page    int             `json:"page"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Width   float64         `json:"width,omitempty"`
	Height  float64         `json:"height,omitempty"`

	// Text draws
	Text     string  `json:"text,omitempty"`
	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`

	// Image blits: PNG bytes at native resolution, drawn at Scale
	Image []byte  `json:"-"`
	Scale float64 `json:"scale,omitempty"`
}

// OverlayOutcome is the per-field result of a flattening pass
type OverlayOutcome string

const (
	OutcomeDrawn       OverlayOutcome = "drawn"
	OutcomeEmpty       OverlayOutcome = "empty"
	OutcomeSkippedPage OverlayOutcome = "skipped_page"
	OutcomeFailed      OverlayOutcome = "failed"
)

// FieldResult records what happened to one field during flattening
type FieldResult struct {
	FieldID string         `json:"field_id"`
	Label   string         `json:"label"`
	Outcome OverlayOutcome `json:"outcome"`
	Err     error          `json:"-"`
	Message string         `json:"message,omitempty"`
}

// OverlayReport collects per-field results so partial failures can be surfaced
type OverlayReport struct {
	Results []FieldResult `json:"results"`
}

// Add appends a result
func (r *OverlayReport) Add(res FieldResult) {
	if res.Err != nil && res.Message == "" {
		res.Message = res.Err.Error()
	}
	r.Results = append(r.Results, res)
}

// Failed returns the results whose overlay could not be produced
func (r *OverlayReport) Failed() []FieldResult {
	var out []FieldResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Count returns how many results have the given outcome
func (r *OverlayReport) Count(outcome OverlayOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// RenderedDocument is a flattened PDF ready for delivery
type RenderedDocument struct {
	DocumentID string        `json:"document_id"`
	Filename   string        `json:"filename"`
	PDF        []byte        `json:"-"`
	Report     OverlayReport `json:"report"`
}
