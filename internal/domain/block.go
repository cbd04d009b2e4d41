package domain

// Kind identifies the artifact family a job works on.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindDOCX  Kind = "docx"
	KindPPTX  Kind = "pptx"
	KindAudio Kind = "audio"
)

// UnitStatus is the per-block translation state.
type UnitStatus string

const (
	UnitPending  UnitStatus = "pending"
	UnitInFlight UnitStatus = "in_flight"
	UnitDone     UnitStatus = "done"
	UnitFailed   UnitStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s UnitStatus) Terminal() bool {
	return s == UnitDone || s == UnitFailed
}

// StyleHint is carried from extraction to reconstruction untouched.
type StyleHint map[string]string

// Block is one independently translatable unit of a source artifact.
type Block struct {
	ID             string     `json:"id"`
	OrderIndex     int        `json:"order_index"`
	SourceText     string     `json:"source_text"`
	TranslatedText string     `json:"translated_text,omitempty"`
	Style          StyleHint  `json:"style,omitempty"`
	Status         UnitStatus `json:"status"`
	Attempts       int        `json:"attempts"`
	Error          string     `json:"error,omitempty"`

	translated bool
}

// NewBlock returns a pending block.
func NewBlock(id string, order int, text string, style StyleHint) *Block {
	return &Block{
		ID:         id,
		OrderIndex: order,
		SourceText: text,
		Style:      style,
		Status:     UnitPending,
	}
}

// SetTranslation records the translated text. Only the first call has an effect.
func (b *Block) SetTranslation(text string) bool {
	if b.translated {
		return false
	}
	b.TranslatedText = text
	b.translated = true
	return true
}

// Translation returns the translated text and whether one was recorded.
func (b *Block) Translation() (string, bool) {
	return b.TranslatedText, b.translated
}

// Output is the text a reconstructor writes for this block: the translation
// when one succeeded, the source text otherwise.
func (b *Block) Output() string {
	if b.Status == UnitDone && b.translated {
		return b.TranslatedText
	}
	return b.SourceText
}
