package session

import (
	"testing"
	"time"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const breakDelay = 90 * time.Second

func TestMerge_StartsNewSessions(t *testing.T) {
	start := baseTime
	end := start.Add(60 * time.Second)

	updated, finalized := Merge(nil, []string{"chess", "factorio"}, start, end, breakDelay)

	if len(finalized) != 0 {
		t.Fatalf("Expected no finalized sessions, got %d", len(finalized))
	}
	if len(updated) != 2 {
		t.Fatalf("Expected 2 ongoing sessions, got %d", len(updated))
	}
	if updated[0].Name != "chess" || updated[1].Name != "factorio" {
		t.Errorf("Expected snapshot order preserved, got %q, %q", updated[0].Name, updated[1].Name)
	}
	for _, s := range updated {
		if !s.StartTime.Equal(start) {
			t.Errorf("Expected start time %v, got %v", start, s.StartTime)
		}
		if s.Duration != 60 {
			t.Errorf("Expected duration 60, got %v", s.Duration)
		}
	}
}

func TestMerge_ExtendsWithinBreakWindow(t *testing.T) {
	ongoing := []Session{New("chess", baseTime, 60)}

	// Next sample starts 30s after the session's end, well within the window.
	start := baseTime.Add(90 * time.Second)
	end := start.Add(60 * time.Second)

	updated, finalized := Merge(ongoing, []string{"chess"}, start, end, breakDelay)

	if len(finalized) != 0 {
		t.Fatalf("Expected no finalized sessions, got %d", len(finalized))
	}
	if len(updated) != 1 {
		t.Fatalf("Expected 1 ongoing session, got %d", len(updated))
	}
	if !updated[0].StartTime.Equal(baseTime) {
		t.Errorf("Expected original start time to be kept, got %v", updated[0].StartTime)
	}
	if updated[0].Duration != 120 {
		t.Errorf("Expected extended duration 120, got %v", updated[0].Duration)
	}
}

func TestMerge_BreakWindowBoundaryIsStrict(t *testing.T) {
	ongoing := []Session{New("chess", baseTime, 60)}
	sessionEnd := baseTime.Add(60 * time.Second)

	// Sample starting exactly at end+breakDelay must NOT extend.
	start := sessionEnd.Add(breakDelay)
	end := start.Add(30 * time.Second)

	updated, finalized := Merge(ongoing, []string{"chess"}, start, end, breakDelay)

	if len(finalized) != 1 {
		t.Fatalf("Expected the stale session finalized, got %d finalized", len(finalized))
	}
	if finalized[0].Duration != 60 {
		t.Errorf("Expected finalized duration 60, got %v", finalized[0].Duration)
	}
	if len(updated) != 1 {
		t.Fatalf("Expected a fresh ongoing session, got %d", len(updated))
	}
	if !updated[0].StartTime.Equal(start) {
		t.Errorf("Expected new session to start at %v, got %v", start, updated[0].StartTime)
	}
	if updated[0].Duration != 30 {
		t.Errorf("Expected new session duration 30, got %v", updated[0].Duration)
	}

	// One millisecond inside the window must extend instead.
	updated, finalized = Merge([]Session{New("chess", baseTime, 60)},
		[]string{"chess"}, start.Add(-time.Millisecond), end, breakDelay)
	if len(finalized) != 0 {
		t.Fatalf("Expected extension just inside the window, got %d finalized", len(finalized))
	}
	if !updated[0].StartTime.Equal(baseTime) {
		t.Errorf("Expected original start time to be kept, got %v", updated[0].StartTime)
	}
}

func TestMerge_SweepsLapsedUnreportedSessions(t *testing.T) {
	ongoing := []Session{New("chess", baseTime, 60)}
	sessionEnd := baseTime.Add(60 * time.Second)

	start := sessionEnd.Add(5 * time.Minute)
	end := start.Add(60 * time.Second)

	updated, finalized := Merge(ongoing, nil, start, end, breakDelay)

	if len(updated) != 0 {
		t.Fatalf("Expected no ongoing sessions after sweep, got %d", len(updated))
	}
	if len(finalized) != 1 {
		t.Fatalf("Expected 1 finalized session, got %d", len(finalized))
	}
	if finalized[0].Name != "chess" || finalized[0].Duration != 60 {
		t.Errorf("Expected chess/60 finalized, got %s/%v", finalized[0].Name, finalized[0].Duration)
	}
}

func TestMerge_SweepBoundaryIsStrict(t *testing.T) {
	ongoing := []Session{New("chess", baseTime, 60)}
	sessionEnd := baseTime.Add(60 * time.Second)

	// Sample ending exactly at end+breakDelay keeps the session open.
	end := sessionEnd.Add(breakDelay)
	start := end.Add(-30 * time.Second)

	updated, finalized := Merge(ongoing, nil, start, end, breakDelay)

	if len(finalized) != 0 {
		t.Fatalf("Expected session kept at the boundary, got %d finalized", len(finalized))
	}
	if len(updated) != 1 || updated[0].Duration != 60 {
		t.Fatalf("Expected untouched ongoing session, got %+v", updated)
	}

	// One millisecond past the boundary sweeps it.
	updated, finalized = Merge([]Session{New("chess", baseTime, 60)},
		nil, start, end.Add(time.Millisecond), breakDelay)
	if len(finalized) != 1 {
		t.Fatalf("Expected sweep just past the boundary, got %d finalized", len(finalized))
	}
	if len(updated) != 0 {
		t.Fatalf("Expected no ongoing sessions, got %d", len(updated))
	}
}

func TestMerge_ExtensionWinsOverSweep(t *testing.T) {
	// A reported session whose grace window has lapsed relative to the sample
	// end is restarted under its name, never silently dropped.
	ongoing := []Session{New("chess", baseTime, 10)}
	start := baseTime.Add(10 * time.Minute)
	end := start.Add(10 * time.Minute)

	updated, finalized := Merge(ongoing, []string{"chess"}, start, end, breakDelay)

	if len(finalized) != 1 {
		t.Fatalf("Expected old session finalized, got %d", len(finalized))
	}
	if len(updated) != 1 {
		t.Fatalf("Expected new ongoing session for the reported name, got %d", len(updated))
	}
	if !updated[0].StartTime.Equal(start) {
		t.Errorf("Expected restart at %v, got %v", start, updated[0].StartTime)
	}
}

func TestMerge_DeduplicatesReportedNames(t *testing.T) {
	start := baseTime
	end := start.Add(60 * time.Second)

	updated, finalized := Merge(nil, []string{"chess", "chess", "chess"}, start, end, breakDelay)

	if len(finalized) != 0 {
		t.Fatalf("Expected no finalized sessions, got %d", len(finalized))
	}
	if len(updated) != 1 {
		t.Fatalf("Expected duplicates collapsed to 1 session, got %d", len(updated))
	}
	if updated[0].Duration != 60 {
		t.Errorf("Expected duration counted once, got %v", updated[0].Duration)
	}

	// Duplicates must also extend an existing session exactly once.
	updated, finalized = Merge(updated, []string{"chess", "chess"},
		end, end.Add(60*time.Second), breakDelay)
	if len(updated) != 1 || len(finalized) != 0 {
		t.Fatalf("Expected single extended session, got %d updated %d finalized", len(updated), len(finalized))
	}
	if updated[0].Duration != 120 {
		t.Errorf("Expected duration 120 after one extension, got %v", updated[0].Duration)
	}
}

func TestMerge_EmptySnapshotKeepsRecentSessions(t *testing.T) {
	ongoing := []Session{New("chess", baseTime, 60)}

	// Still inside the grace window: one missed sample must not fracture the
	// session.
	start := baseTime.Add(60 * time.Second)
	end := start.Add(30 * time.Second)

	updated, finalized := Merge(ongoing, []string{}, start, end, breakDelay)

	if len(finalized) != 0 {
		t.Fatalf("Expected no finalized sessions, got %d", len(finalized))
	}
	if len(updated) != 1 || updated[0].Duration != 60 {
		t.Fatalf("Expected session kept open untouched, got %+v", updated)
	}
}

func TestMerge_ZeroLengthSample(t *testing.T) {
	updated, finalized := Merge(nil, []string{"chess"}, baseTime, baseTime, breakDelay)

	if len(finalized) != 0 {
		t.Fatalf("Expected no finalized sessions, got %d", len(finalized))
	}
	if len(updated) != 1 {
		t.Fatalf("Expected 1 ongoing session, got %d", len(updated))
	}
	if updated[0].Duration != 0 {
		t.Errorf("Expected zero duration, got %v", updated[0].Duration)
	}

	// A later sample extends the zero-duration session normally.
	updated, finalized = Merge(updated, []string{"chess"},
		baseTime, baseTime.Add(60*time.Second), breakDelay)
	if len(updated) != 1 || len(finalized) != 0 {
		t.Fatalf("Expected extension of zero-duration session, got %d updated %d finalized", len(updated), len(finalized))
	}
	if updated[0].Duration != 60 {
		t.Errorf("Expected duration 60, got %v", updated[0].Duration)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	ongoing := []Session{New("chess", baseTime, 60)}
	names := []string{"chess", "chess"}

	Merge(ongoing, names, baseTime.Add(90*time.Second), baseTime.Add(150*time.Second), breakDelay)

	if ongoing[0].Duration != 60 {
		t.Errorf("Input slice was mutated: duration changed to %v", ongoing[0].Duration)
	}
	if len(names) != 2 || names[0] != "chess" || names[1] != "chess" {
		t.Errorf("Input names were mutated: %v", names)
	}
}

func TestMerge_FragmentedSamplesMatchOneContinuousSession(t *testing.T) {
	// Ten back-to-back 60s samples must produce exactly what a single 600s
	// sample would: one session, same start, same total duration.
	interval := 60 * time.Second
	var ongoing []Session
	cursor := baseTime
	for i := 0; i < 10; i++ {
		var finalized []Session
		ongoing, finalized = Merge(ongoing, []string{"chess"}, cursor, cursor.Add(interval), breakDelay)
		if len(finalized) != 0 {
			t.Fatalf("Sample %d unexpectedly finalized %d sessions", i, len(finalized))
		}
		cursor = cursor.Add(interval)
	}

	if len(ongoing) != 1 {
		t.Fatalf("Expected 1 ongoing session, got %d", len(ongoing))
	}
	if !ongoing[0].StartTime.Equal(baseTime) {
		t.Errorf("Expected start %v, got %v", baseTime, ongoing[0].StartTime)
	}
	if ongoing[0].Duration != 600 {
		t.Errorf("Expected total duration 600, got %v", ongoing[0].Duration)
	}
}

func TestMerge_MixedSnapshot(t *testing.T) {
	// One session extends, one is swept, one starts fresh, all in one pass.
	ongoing := []Session{
		New("chess", baseTime, 60),
		New("factorio", baseTime.Add(-10*time.Minute), 60),
	}
	start := baseTime.Add(90 * time.Second)
	end := start.Add(60 * time.Second)

	updated, finalized := Merge(ongoing, []string{"chess", "doom"}, start, end, breakDelay)

	if len(finalized) != 1 || finalized[0].Name != "factorio" {
		t.Fatalf("Expected only factorio finalized, got %+v", finalized)
	}
	if len(updated) != 2 {
		t.Fatalf("Expected 2 ongoing sessions, got %d", len(updated))
	}
	byName := make(map[string]Session, len(updated))
	for _, s := range updated {
		byName[s.Name] = s
	}
	if chess, ok := byName["chess"]; !ok || chess.Duration != 120 {
		t.Errorf("Expected chess extended to 120, got %+v", byName["chess"])
	}
	if doom, ok := byName["doom"]; !ok || doom.Duration != 60 || !doom.StartTime.Equal(start) {
		t.Errorf("Expected fresh doom session, got %+v", byName["doom"])
	}
}

func TestMerge_NegativeWindowClampsToZero(t *testing.T) {
	updated, _ := Merge(nil, []string{"chess"}, baseTime.Add(time.Minute), baseTime, breakDelay)
	if len(updated) != 1 || updated[0].Duration != 0 {
		t.Fatalf("Expected zero-duration session from inverted window, got %+v", updated)
	}
}

func TestSessionEnd(t *testing.T) {
	s := New("chess", baseTime, 90.5)
	want := baseTime.Add(90*time.Second + 500*time.Millisecond)
	if !s.End().Equal(want) {
		t.Errorf("Expected end %v, got %v", want, s.End())
	}
}

func TestNewTruncatesStartToMillisecond(t *testing.T) {
	precise := baseTime.Add(123456 * time.Nanosecond)
	s := New("chess", precise, 1)
	if got := s.StartTime.Nanosecond() % int(time.Millisecond); got != 0 {
		t.Errorf("Expected millisecond-truncated start, got %d trailing ns", got)
	}
}
