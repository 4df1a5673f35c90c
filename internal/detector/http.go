package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/frame"
	"github.com/third-eye-sec/thirdeye/internal/tracker"
)

const (
	requestTimeout = 5 * time.Second
	jpegQuality    = 85
)

// HTTPDetector sends frames as JPEG to an inference service and decodes
// its JSON prediction list.
type HTTPDetector struct {
	endpoint   string
	confidence float64
	client     *http.Client
}

// prediction is the wire format returned by the inference service.
type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	W     int     `json:"w"`
	H     int     `json:"h"`
}

// NewHTTPDetector creates a detector client for the given inference
// endpoint. Predictions scoring below confidence are discarded.
func NewHTTPDetector(endpoint string, confidence float64) *HTTPDetector {
	return &HTTPDetector{
		endpoint:   endpoint,
		confidence: confidence,
		client:     &http.Client{Timeout: requestTimeout},
	}
}

// Detect posts the frame to the inference service and returns the
// predictions that meet the confidence threshold.
func (d *HTTPDetector) Detect(ctx context.Context, f *frame.Frame) ([]Detection, error) {
	jpeg, err := f.EncodeJPEG(jpegQuality)
	if err != nil {
		return nil, fmt.Errorf("encoding frame for detection: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(jpeg))
	if err != nil {
		return nil, fmt.Errorf("building detection request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling detection service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detection service returned %d: %s", resp.StatusCode, body)
	}

	var predictions []prediction
	if err := json.NewDecoder(resp.Body).Decode(&predictions); err != nil {
		return nil, fmt.Errorf("decoding detection response: %w", err)
	}

	detections := make([]Detection, 0, len(predictions))
	for _, p := range predictions {
		if p.Score < d.confidence {
			continue
		}
		detections = append(detections, Detection{
			Box:   tracker.Box{X: p.X, Y: p.Y, W: p.W, H: p.H},
			Label: p.Label,
			Score: p.Score,
		})
	}
	return detections, nil
}
