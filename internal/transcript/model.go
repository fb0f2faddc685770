package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Segment is one recognized span of speech.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result is the ordered set of segments a backend produced for one audio file.
type Result struct {
	Segments   []Segment
	ResponseID string
	Engine     string
}

// ErrInvalidSegment reports a segment with negative or inverted offsets.
var ErrInvalidSegment = errors.New("invalid segment")

// Validate rejects negative offsets, inverted segments, and unsorted input.
func (r Result) Validate() error {
	var prev time.Duration
	for i, seg := range r.Segments {
		if seg.Start < 0 || seg.End < 0 {
			return fmt.Errorf("%w: segment %d has negative offset", ErrInvalidSegment, i)
		}
		if seg.End < seg.Start {
			return fmt.Errorf("%w: segment %d ends at %s before start %s", ErrInvalidSegment, i, seg.End, seg.Start)
		}
		if i > 0 && seg.Start < prev {
			return fmt.Errorf("%w: segment %d starts before segment %d", ErrInvalidSegment, i, i-1)
		}
		prev = seg.Start
	}
	return nil
}

// Normalize returns a copy with trimmed NFC text and segments stably sorted by start.
func (r Result) Normalize() Result {
	out := Result{ResponseID: r.ResponseID, Engine: r.Engine}
	if len(r.Segments) == 0 {
		return out
	}
	out.Segments = make([]Segment, len(r.Segments))
	for i, seg := range r.Segments {
		seg.Text = norm.NFC.String(strings.TrimSpace(seg.Text))
		out.Segments[i] = seg
	}
	sort.SliceStable(out.Segments, func(i, j int) bool {
		return out.Segments[i].Start < out.Segments[j].Start
	})
	return out
}

// NonEmpty returns the segments that carry text.
func (r Result) NonEmpty() []Segment {
	out := make([]Segment, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// Duration reports the end offset of the last segment.
func (r Result) Duration() time.Duration {
	var last time.Duration
	for _, seg := range r.Segments {
		if seg.End > last {
			last = seg.End
		}
	}
	return last
}

type jsonSegment struct {
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

type jsonResult struct {
	Engine     string        `json:"engine,omitempty"`
	ResponseID string        `json:"response_id,omitempty"`
	Segments   []jsonSegment `json:"segments"`
}

// MarshalJSON encodes offsets as integer milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	payload := jsonResult{
		Engine:     r.Engine,
		ResponseID: r.ResponseID,
		Segments:   make([]jsonSegment, 0, len(r.Segments)),
	}
	for _, seg := range r.Segments {
		payload.Segments = append(payload.Segments, jsonSegment{
			StartMS: seg.Start.Milliseconds(),
			EndMS:   seg.End.Milliseconds(),
			Text:    seg.Text,
		})
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the millisecond representation written by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var payload jsonResult
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	r.Engine = payload.Engine
	r.ResponseID = payload.ResponseID
	r.Segments = nil
	if len(payload.Segments) > 0 {
		r.Segments = make([]Segment, 0, len(payload.Segments))
	}
	for _, seg := range payload.Segments {
		r.Segments = append(r.Segments, Segment{
			Start: time.Duration(seg.StartMS) * time.Millisecond,
			End:   time.Duration(seg.EndMS) * time.Millisecond,
			Text:  seg.Text,
		})
	}
	return nil
}
