package core

import (
	"fmt"
	"time"
)

// ========== Transcript data ==========

// Segment is one timed unit of transcribed speech as produced upstream.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Valid reports whether the segment has a positive duration.
func (s Segment) Valid() bool {
	return s.End > s.Start && s.Start >= 0
}

// Duration returns End-Start in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Chunk is a contiguous span of reconstructed transcript text with a synthesized time range.
type Chunk struct {
	VideoID     string                 `json:"video_id"`
	Index       int                    `json:"chunk_index"`
	Text        string                 `json:"chunk_text"`
	CharStart   int                    `json:"char_start"`
	CharEnd     int                    `json:"char_end"`
	StartTS     float64                `json:"start_timestamp"`
	EndTS       float64                `json:"end_timestamp"`
	ContentHash string                 `json:"content_hash"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Span is a half-open [Start, End) range in transcript character space.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of characters covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// VideoIdentity is the content-derived identity of a video source.
type VideoIdentity struct {
	VideoID    string `json:"video_id"`
	SourceHash string `json:"source_hash"`
	ByteSize   int64  `json:"byte_size"`
}

// ========== Ingestion state machine ==========

// VideoState is a step of the per-video ingestion state machine.
type VideoState string

const (
	StateReceived            VideoState = "received"
	StateFingerprintComputed VideoState = "fingerprint_computed"
	StateSkipped             VideoState = "skipped"
	StateChunking            VideoState = "chunking"
	StateTimestampsAssigned  VideoState = "timestamps_assigned"
	StateEmbedding           VideoState = "embedding"
	StateStored              VideoState = "stored"
	StateCompleted           VideoState = "completed"
	StateFailed              VideoState = "failed"
)

var stateTransitions = map[VideoState][]VideoState{
	StateReceived:            {StateFingerprintComputed},
	StateFingerprintComputed: {StateSkipped, StateChunking},
	StateChunking:            {StateTimestampsAssigned},
	StateTimestampsAssigned:  {StateEmbedding},
	StateEmbedding:           {StateStored},
	StateStored:              {StateCompleted},
}

// Terminal reports whether no further transition is possible from s.
func (s VideoState) Terminal() bool {
	return s == StateSkipped || s == StateCompleted || s == StateFailed
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to VideoState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range stateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateMachine tracks the state of a single video ingestion.
type StateMachine struct {
	current  VideoState
	failedAt VideoState
	history  []StateChange
}

// StateChange records one transition.
type StateChange struct {
	From VideoState `json:"from"`
	To   VideoState `json:"to"`
	At   time.Time  `json:"at"`
}

// NewStateMachine starts in StateReceived.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateReceived}
}

// Current returns the current state.
func (m *StateMachine) Current() VideoState {
	return m.current
}

// FailedAt returns the state that was active when the machine moved to StateFailed.
func (m *StateMachine) FailedAt() VideoState {
	return m.failedAt
}

// History returns the recorded transitions.
func (m *StateMachine) History() []StateChange {
	return append([]StateChange(nil), m.history...)
}

// Transition validates and applies a state change.
func (m *StateMachine) Transition(to VideoState) error {
	if !CanTransition(m.current, to) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current, to)
	}
	if to == StateFailed {
		m.failedAt = m.current
	}
	m.history = append(m.history, StateChange{From: m.current, To: to, At: time.Now()})
	m.current = to
	return nil
}

// SkipReason explains a Skipped outcome.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipAlreadyProcessed SkipReason = "already_processed"
)
