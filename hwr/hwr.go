// Package hwr recognizes ink by sending it to a remote handwriting
// recognition service.
package hwr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/ink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/recognizer"
)

const (
	contentType = "Text"
	mimeType    = "text/plain"
	// payloads above this are rejected by the service
	maxPayload = 4000000
)

var ErrEmptyResponse = errors.New("empty recognition response")

// Lang converts a language tag to the underscore form the service expects.
func Lang(tag model.Identifier) string {
	return strings.ReplaceAll(string(tag), "-", "_")
}

// BuildBatch converts an ink snapshot to a batch request.
func BuildBatch(lang string, in ink.Ink, rc recognizer.Context) *BatchInput {
	ct := contentType
	batch := &BatchInput{
		Configuration: &Configuration{Lang: lang},
		StrokeGroups:  []*StrokeGroup{{}},
		ContentType:   &ct,
		Width:         int32(rc.WritingArea.Width),
		Height:        int32(rc.WritingArea.Height),
	}
	if rc.PreContext != "" {
		batch.Configuration.Text = &TextConfig{PreContext: rc.PreContext}
	}

	sg := batch.StrokeGroups[0]
	totalPoints := 0
	for _, s := range in.Strokes() {
		points := downsamplePoints(s.Points())

		stroke := &Stroke{
			X:           make([]float32, 0, len(points)),
			Y:           make([]float32, 0, len(points)),
			PointerType: "PEN",
		}
		if s.Timed() {
			stroke.T = make([]int64, 0, len(points))
		}

		for _, p := range points {
			// one decimal is plenty and keeps the JSON small
			stroke.X = append(stroke.X, roundFloat32(p.X, 1))
			stroke.Y = append(stroke.Y, roundFloat32(p.Y, 1))
			if s.Timed() {
				stroke.T = append(stroke.T, p.T)
			}
		}

		sg.Strokes = append(sg.Strokes, stroke)
		totalPoints += len(stroke.X)
	}

	log.Trace.Printf("BuildBatch: %d strokes with %d points (after downsampling)", len(sg.Strokes), totalPoints)
	return batch
}

// Recognize implements recognizer.Recognizer.
func (c *Client) Recognize(ctx context.Context, h model.Handle, in ink.Ink, rc recognizer.Context) (*recognizer.Result, error) {
	js, err := json.Marshal(BuildBatch(Lang(h.Tag()), in, rc))
	if err != nil {
		return nil, err
	}
	if len(js) > maxPayload {
		log.Warning.Printf("recognition payload is %d bytes, the service may reject it", len(js))
	}

	body, err := c.SendRequest(ctx, js, mimeType)
	if err != nil {
		return nil, err
	}

	return ParseResponse(body)
}

// ParseResponse accepts a ranked JSON array of {label|text, score}, a Jiix
// document or plain text.
func ParseResponse(data []byte) (*recognizer.Result, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}

	switch data[0] {
	case '[':
		var entries []candidate
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
		res := &recognizer.Result{Candidates: make([]recognizer.Candidate, 0, len(entries))}
		for _, e := range entries {
			text := e.Label
			if text == "" {
				text = e.Text
			}
			res.Candidates = append(res.Candidates, recognizer.Candidate{Text: text, Score: e.Score})
		}
		return res, nil
	case '{':
		text, ok := extractTextFromJiix(data)
		if !ok {
			return nil, errors.New("no text in recognition response")
		}
		return single(text), nil
	}

	log.Trace.Printf("ParseResponse: plain text (%d chars)", len(data))
	return single(string(data)), nil
}

func single(text string) *recognizer.Result {
	return &recognizer.Result{Candidates: []recognizer.Candidate{{Text: text}}}
}

// downsamplePoints keeps every Nth point of long strokes, always keeping
// the first and last.
func downsamplePoints(points []ink.Point) []ink.Point {
	if len(points) <= 2 {
		return points
	}

	sampleRate := 1
	if len(points) > 2000 {
		sampleRate = 6
	} else if len(points) > 1000 {
		sampleRate = 4
	} else if len(points) > 500 {
		sampleRate = 3
	} else if len(points) > 200 {
		sampleRate = 2
	}

	result := make([]ink.Point, 0, len(points)/sampleRate+2)
	result = append(result, points[0])

	for i := sampleRate; i < len(points)-1; i += sampleRate {
		result = append(result, points[i])
	}

	lastIdx := len(points) - 1
	if points[lastIdx].X != points[0].X || points[lastIdx].Y != points[0].Y {
		result = append(result, points[lastIdx])
	}

	return result
}

// roundFloat32 rounds a float32 to the specified number of decimal places
func roundFloat32(val float32, decimals int) float32 {
	multiplier := float32(1)
	for i := 0; i < decimals; i++ {
		multiplier *= 10
	}
	return float32(int(val*multiplier+0.5)) / multiplier
}

// extractTextFromJiix pulls the recognized text out of a Jiix document.
func extractTextFromJiix(data []byte) (string, bool) {
	var jiix map[string]interface{}
	if err := json.Unmarshal(data, &jiix); err != nil {
		log.Trace.Printf("extractTextFromJiix: failed to unmarshal JSON: %v", err)
		return "", false
	}

	if textField, ok := jiix["text"].(string); ok && textField != "" {
		return textField, true
	}
	if label, ok := jiix["label"].(string); ok && label != "" {
		return label, true
	}

	if words, ok := jiix["words"].([]interface{}); ok {
		if parts := labels(words); len(parts) > 0 {
			log.Trace.Printf("extractTextFromJiix: extracted %d words", len(parts))
			return strings.Join(parts, " "), true
		}
	}

	// character-level recognition
	if chars, ok := jiix["chars"].([]interface{}); ok {
		if parts := labels(chars); len(parts) > 0 {
			return strings.Join(parts, ""), true
		}
	}

	log.Trace.Printf("extractTextFromJiix: no text found")
	return "", false
}

func labels(items []interface{}) []string {
	var parts []string
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if label, ok := m["label"].(string); ok && label != "" {
			parts = append(parts, label)
		} else if text, ok := m["text"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return parts
}
