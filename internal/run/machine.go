// Package run implements the shuttle-run state machine. It is the single
// timing authority: total time, segment times and the consumed touch
// count all come from here.
package run

import (
	"github.com/fieldside/shuttlerun/internal/events"
	"github.com/fieldside/shuttlerun/internal/track"
)

// State is the current leg of the run.
type State int

const (
	WaitForStart State = iota
	Leg1
	Leg2
	Leg3
	Leg4
	Finish
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case WaitForStart:
		return "WAIT_FOR_START"
	case Leg1:
		return "LEG1"
	case Leg2:
		return "LEG2"
	case Leg3:
		return "LEG3"
	case Leg4:
		return "LEG4"
	case Finish:
		return "FINISH"
	}
	return "UNKNOWN"
}

// SegmentTimes holds the four leg durations. Each is computed exactly
// once; the struct is immutable after the machine reaches Finish.
type SegmentTimes struct {
	AToB1 float64 `json:"A_to_B_1"`
	BToA2 float64 `json:"B_to_A_2"`
	AToB3 float64 `json:"A_to_B_3"`
	BToA4 float64 `json:"B_to_A_4"`
}

// Slice returns the segment durations in order, for variance math.
func (s SegmentTimes) Slice() []float64 {
	return []float64{s.AToB1, s.BToA2, s.AToB3, s.BToA4}
}

// Machine advances through the fixed leg states as expected-line touches
// arrive. Transitions are monotonic, wrong-line touches are ignored, and
// Finish is terminal. Each run owns exactly one Machine instance.
type Machine struct {
	state            State
	startTimeS       float64
	started          bool
	prevSegmentStart float64
	segments         [4]float64
	consumed         int
	touchFrames      []int
	endTimeS         float64
}

// NewMachine creates a Machine in WaitForStart.
func NewMachine() *Machine {
	return &Machine{state: WaitForStart}
}

// Start records the start event and moves the machine into Leg1.
// Subsequent calls are ignored.
func (m *Machine) Start(timeS float64) {
	if m.state != WaitForStart {
		return
	}
	m.startTimeS = timeS
	m.prevSegmentStart = timeS
	m.started = true
	m.state = Leg1
}

// expectedLine returns the line whose touch advances the current state.
func (m *Machine) expectedLine() (track.Line, bool) {
	switch m.state {
	case Leg1, Leg3:
		return track.LineB, true
	case Leg2, Leg4:
		return track.LineA, true
	}
	return "", false
}

// Consume feeds one touch event to the machine. It returns true when the
// event matched the expected line and advanced the state. A touch on the
// wrong line is ignored: not consumed, not an error.
func (m *Machine) Consume(ev events.TouchEvent) bool {
	expected, ok := m.expectedLine()
	if !ok || ev.Line != expected {
		return false
	}

	m.segments[m.consumed] = ev.TimeS - m.prevSegmentStart
	m.prevSegmentStart = ev.TimeS
	m.consumed++
	m.touchFrames = append(m.touchFrames, ev.FrameIdx)
	m.state++

	if m.state == Finish {
		m.endTimeS = ev.TimeS
	}
	return true
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Started reports whether a start event was recorded.
func (m *Machine) Started() bool {
	return m.started
}

// Finished reports whether the machine reached the terminal state.
func (m *Machine) Finished() bool {
	return m.state == Finish
}

// TouchesDetected returns the number of consumed transitions.
func (m *Machine) TouchesDetected() int {
	return m.consumed
}

// TouchFrames returns the frame indices of the consumed touches.
func (m *Machine) TouchFrames() []int {
	return m.touchFrames
}

// StartTime returns the recorded start time; ok is false before a start.
func (m *Machine) StartTime() (float64, bool) {
	return m.startTimeS, m.started
}

// TotalTime returns end - start; ok is false until the run finished.
func (m *Machine) TotalTime() (float64, bool) {
	if !m.Finished() {
		return 0, false
	}
	return m.endTimeS - m.startTimeS, true
}

// Segments returns the four leg durations; ok is false until the run
// finished.
func (m *Machine) Segments() (SegmentTimes, bool) {
	if !m.Finished() {
		return SegmentTimes{}, false
	}
	return SegmentTimes{
		AToB1: m.segments[0],
		BToA2: m.segments[1],
		AToB3: m.segments[2],
		BToA4: m.segments[3],
	}, true
}

// MissingLegs names the legs whose expected touch never arrived, in
// order, e.g. ["LEG2 (touch A)"] for a run that stalled after leg 1.
func (m *Machine) MissingLegs() []string {
	legNames := []string{"LEG1 (touch B)", "LEG2 (touch A)", "LEG3 (touch B)", "LEG4 (touch A)"}
	if m.consumed >= len(legNames) {
		return nil
	}
	return legNames[m.consumed:]
}

// Summary is a read-only snapshot of the machine for downstream stages.
type Summary struct {
	State       State
	Started     bool
	Finished    bool
	StartTimeS  float64
	TotalTimeS  float64
	Touches     int
	TouchFrames []int
	Segments    SegmentTimes
	MissingLegs []string
}

// Summary captures the machine state for the validators and scoring.
func (m *Machine) Summary() Summary {
	s := Summary{
		State:       m.state,
		Started:     m.started,
		Finished:    m.Finished(),
		StartTimeS:  m.startTimeS,
		Touches:     m.consumed,
		TouchFrames: append([]int(nil), m.touchFrames...),
		MissingLegs: m.MissingLegs(),
	}
	if t, ok := m.TotalTime(); ok {
		s.TotalTimeS = t
	}
	if seg, ok := m.Segments(); ok {
		s.Segments = seg
	}
	return s
}
