package run

import (
	"math"
	"testing"

	"github.com/fieldside/shuttlerun/internal/events"
	"github.com/fieldside/shuttlerun/internal/track"
)

func touch(timeS float64, line track.Line, frame int) events.TouchEvent {
	return events.TouchEvent{TimeS: timeS, FrameIdx: frame, Line: line, Foot: events.FootCenter, Confidence: 0.9}
}

func TestMachine_CompleteRun(t *testing.T) {
	m := NewMachine()
	m.Start(1.0)

	seq := []events.TouchEvent{
		touch(3.5, track.LineB, 100),
		touch(6.0, track.LineA, 180),
		touch(8.6, track.LineB, 260),
		touch(11.0, track.LineA, 330),
	}
	for i, ev := range seq {
		if !m.Consume(ev) {
			t.Fatalf("touch %d should advance the machine", i)
		}
	}

	if !m.Finished() {
		t.Fatal("expected Finish state")
	}
	total, ok := m.TotalTime()
	if !ok || math.Abs(total-10.0) > 1e-9 {
		t.Errorf("expected total time 10.0, got %f (ok=%v)", total, ok)
	}
	seg, ok := m.Segments()
	if !ok {
		t.Fatal("expected segments after finish")
	}
	want := []float64{2.5, 2.5, 2.6, 2.4}
	for i, got := range seg.Slice() {
		if math.Abs(got-want[i]) > 1e-9 {
			t.Errorf("segment %d: expected %f, got %f", i, want[i], got)
		}
	}
	if m.TouchesDetected() != 4 {
		t.Errorf("expected 4 touches, got %d", m.TouchesDetected())
	}
}

func TestMachine_WrongLineIgnored(t *testing.T) {
	m := NewMachine()
	m.Start(0)

	// Leg1 expects line B; a touch on A must be ignored without
	// corrupting the state.
	if m.Consume(touch(1.0, track.LineA, 30)) {
		t.Error("wrong-line touch must not advance the machine")
	}
	if m.State() != Leg1 {
		t.Errorf("expected Leg1, got %s", m.State())
	}
	if !m.Consume(touch(3.0, track.LineB, 90)) {
		t.Error("expected-line touch must advance")
	}
	if m.State() != Leg2 {
		t.Errorf("expected Leg2, got %s", m.State())
	}
}

func TestMachine_FinishIsTerminal(t *testing.T) {
	m := NewMachine()
	m.Start(0)
	for _, ev := range []events.TouchEvent{
		touch(2, track.LineB, 1), touch(4, track.LineA, 2),
		touch(6, track.LineB, 3), touch(8, track.LineA, 4),
	} {
		m.Consume(ev)
	}
	if !m.Finished() {
		t.Fatal("expected Finish")
	}
	if m.Consume(touch(9, track.LineB, 5)) {
		t.Error("no events may be consumed after Finish")
	}
	total, _ := m.TotalTime()
	if total != 8.0 {
		t.Errorf("total time must be fixed at finish, got %f", total)
	}
}

func TestMachine_StatePrefixProperty(t *testing.T) {
	// For any event sequence, the visited states must be a prefix of
	// the canonical order, never out of order, never revisited.
	sequences := [][]events.TouchEvent{
		{},
		{touch(1, track.LineA, 1)},
		{touch(1, track.LineB, 1)},
		{touch(1, track.LineB, 1), touch(2, track.LineB, 2), touch(3, track.LineA, 3)},
		{touch(1, track.LineA, 1), touch(2, track.LineB, 2), touch(4, track.LineA, 3), touch(6, track.LineB, 4), touch(8, track.LineA, 5)},
	}
	canonical := []State{WaitForStart, Leg1, Leg2, Leg3, Leg4, Finish}

	for si, seq := range sequences {
		m := NewMachine()
		visited := []State{m.State()}
		m.Start(0)
		if m.State() != visited[len(visited)-1] {
			visited = append(visited, m.State())
		}
		for _, ev := range seq {
			m.Consume(ev)
			if m.State() != visited[len(visited)-1] {
				visited = append(visited, m.State())
			}
		}
		for i, s := range visited {
			if s != canonical[i] {
				t.Errorf("sequence %d: visited %v is not a prefix of canonical order", si, visited)
				break
			}
		}
	}
}

func TestMachine_IncompleteRun(t *testing.T) {
	// B consumed at 3.0, the 3.2s A touch was deduped away upstream,
	// A consumed at 4.9: the machine ends in Leg3.
	m := NewMachine()
	m.Start(0)
	m.Consume(touch(3.0, track.LineB, 90))
	m.Consume(touch(4.9, track.LineA, 147))

	if m.Finished() {
		t.Fatal("run must not be finished")
	}
	if m.State() != Leg3 {
		t.Errorf("expected Leg3 at video end, got %s", m.State())
	}
	if m.TouchesDetected() != 2 {
		t.Errorf("expected 2 touches, got %d", m.TouchesDetected())
	}
	if _, ok := m.TotalTime(); ok {
		t.Error("total time must be unavailable for incomplete runs")
	}

	missing := m.MissingLegs()
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing legs, got %v", missing)
	}
	if missing[0] != "LEG3 (touch B)" || missing[1] != "LEG4 (touch A)" {
		t.Errorf("unexpected missing legs: %v", missing)
	}
}

func TestMachine_NoStartStaysWaiting(t *testing.T) {
	m := NewMachine()
	if m.Consume(touch(1, track.LineB, 1)) {
		t.Error("no touch may be consumed before the start")
	}
	if m.State() != WaitForStart {
		t.Errorf("expected WAIT_FOR_START, got %s", m.State())
	}
	s := m.Summary()
	if s.Started || s.Touches != 0 {
		t.Errorf("unexpected summary for unstarted run: %+v", s)
	}
}
