// Package lottie re-encodes decompressed vector sticker animations into a
// plain Lottie JSON document sized for the target canvas.
package lottie

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Static errors for vector re-encoding.
var (
	// ErrInvalidDocument is returned when the payload is not a Lottie document.
	ErrInvalidDocument = errors.New("lottie: invalid document")
	// ErrInvalidSize is returned when the target size is not positive.
	ErrInvalidSize = errors.New("lottie: size must be positive")
)

// rootAssetID names the precomposition that holds the original layers.
const rootAssetID = "__sticker_root"

// Convert rescales the animation in payload so that it is contain-fitted
// into a size×size composition and returns the encoded document. The
// original layers are moved into a precomposition asset that a single
// scaled, centered layer references. All other top-level fields,
// including the name, are preserved.
func Convert(payload []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	w, okW := number(doc["w"])
	h, okH := number(doc["h"])
	if !okW || !okH || w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: missing or non-positive w/h", ErrInvalidDocument)
	}
	layers, ok := doc["layers"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing layers", ErrInvalidDocument)
	}

	inPoint, _ := number(doc["ip"])
	outPoint, _ := number(doc["op"])
	scale := min(float64(size)/w, float64(size)/h) * 100

	assets, _ := doc["assets"].([]any)
	doc["assets"] = append(assets, map[string]any{
		"id":     rootAssetID,
		"layers": layers,
	})
	doc["layers"] = []any{map[string]any{
		"ddd":   0,
		"ind":   1,
		"ty":    0,
		"nm":    "root",
		"refId": rootAssetID,
		"sr":    1,
		"ao":    0,
		"bm":    0,
		"w":     w,
		"h":     h,
		"ip":    inPoint,
		"op":    outPoint,
		"st":    0,
		"ks": map[string]any{
			"o": static(100),
			"r": static(0),
			"p": static([]any{float64(size) / 2, float64(size) / 2, 0}),
			"a": static([]any{w / 2, h / 2, 0}),
			"s": static([]any{scale, scale, 100}),
		},
	}}
	doc["w"] = size
	doc["h"] = size

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("lottie: encode: %w", err)
	}
	return out, nil
}

// Name returns the top-level "nm" field of an encoded document. It fails
// when the document cannot be parsed and returns "" when there is no name.
func Name(document []byte) (string, error) {
	var head struct {
		Name string `json:"nm"`
	}
	if err := json.Unmarshal(document, &head); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return head.Name, nil
}

func static(v any) map[string]any {
	return map[string]any{"a": 0, "k": v}
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
