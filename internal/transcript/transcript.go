// Package transcript holds the transcript pipeline: caption fetching,
// summarization and transcript-grounded Q&A.
package transcript

import (
	"encoding/json"
	"strings"
)

// Segment is one timed unit of caption text. Start and Duration are seconds.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Transcript is a complete, chronologically ordered caption sequence.
type Transcript struct {
	VideoID  string    `json:"videoId"`
	Segments []Segment `json:"transcript"`
}

// Text joins segment texts with single spaces, in order.
func (t Transcript) Text() string {
	return JoinText(t.Segments)
}

// JoinText joins segment texts with single spaces, in order.
func JoinText(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Serialize encodes segments the way saved analyses store them.
func Serialize(segs []Segment) (string, error) {
	data, err := json.Marshal(segs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Deserialize decodes a serialized transcript.
func Deserialize(s string) ([]Segment, error) {
	var segs []Segment
	if err := json.Unmarshal([]byte(s), &segs); err != nil {
		return nil, err
	}
	return segs, nil
}
