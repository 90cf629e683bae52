package hwr

// Batch request models for the iink batch endpoint.

// BatchInput is the request body.
type BatchInput struct {
	Configuration *Configuration `json:"configuration,omitempty"`
	ContentType   *string        `json:"contentType"`
	StrokeGroups  []*StrokeGroup `json:"strokeGroups"`
	Width         int32          `json:"width,omitempty"`
	Height        int32          `json:"height,omitempty"`
	XDPI          float32        `json:"xDPI,omitempty"`
	YDPI          float32        `json:"yDPI,omitempty"`
}

// Configuration represents recognition configuration
type Configuration struct {
	Lang string      `json:"lang,omitempty"`
	Text *TextConfig `json:"text,omitempty"`
}

// TextConfig carries the text written before the ink so the engine can
// bias the first word.
type TextConfig struct {
	PreContext string `json:"preContext,omitempty"`
}

type StrokeGroup struct {
	Strokes []*Stroke `json:"strokes"`
}

// Stroke represents a single stroke
type Stroke struct {
	X           []float32 `json:"x"`
	Y           []float32 `json:"y"`
	T           []int64   `json:"t,omitempty"` // Timestamps
	PointerType string    `json:"pointerType,omitempty"`
}

// candidate is one entry of a ranked JSON array response.
type candidate struct {
	Label string   `json:"label"`
	Text  string   `json:"text"`
	Score *float32 `json:"score"`
}
