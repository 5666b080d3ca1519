package compute

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bitdiag/bitdiag/agent/internal/source"
	"github.com/bitdiag/bitdiag/pkg/diagnostic"
	"github.com/bitdiag/bitdiag/pkg/types"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns baseTime advanced by n minutes.
func tick(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Minute)
}

const sampleText = `00100
11110
10110
10111
10101
01111
00111
11100
10000
11001
00010
01010
`

func read(id, text string) *source.ReadResult {
	return &source.ReadResult{SourceID: id, SourceType: "inline", ReadAt: baseTime, Text: text}
}

func failed(id string) *source.ReadResult {
	return &source.ReadResult{SourceID: id, SourceType: "http", ReadAt: baseTime, Err: errors.New("connection refused")}
}

func TestEngine_Sample(t *testing.T) {
	e := NewEngine()
	out := e.Process(read("sub-1", sampleText), tick(0))

	if out.State != types.StateOK {
		t.Fatalf("State = %q, want ok (err %q)", out.State, out.ErrorMessage)
	}
	got := struct {
		Records, Width                               int
		Gamma, Epsilon, Power, Oxygen, CO2, Support uint64
	}{out.Records, out.Width, out.Gamma, out.Epsilon, out.PowerConsumption, out.Oxygen, out.CO2, out.LifeSupport}
	want := struct {
		Records, Width                               int
		Gamma, Epsilon, Power, Oxygen, CO2, Support uint64
	}{12, 5, 22, 9, 198, 23, 10, 230}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	if out.ID == "" {
		t.Error("ID should be set")
	}
	if !out.Timestamp.Equal(tick(0)) {
		t.Errorf("Timestamp = %v, want %v", out.Timestamp, tick(0))
	}
	if !out.Changed {
		t.Error("first poll should be marked changed")
	}
	if len(out.TiePositions) != 0 {
		t.Errorf("TiePositions = %v, want none", out.TiePositions)
	}
}

func TestEngine_UnchangedInput(t *testing.T) {
	e := NewEngine()
	first := e.Process(read("s", sampleText), tick(0))
	second := e.Process(read("s", sampleText), tick(1))

	if second.Changed {
		t.Error("second poll with identical text should not be marked changed")
	}
	if first.Digest != second.Digest {
		t.Errorf("digest changed for identical text: %s vs %s", first.Digest, second.Digest)
	}
	if first.ID == second.ID {
		t.Error("each report should get a fresh ID")
	}

	third := e.Process(read("s", "10\n01\n"), tick(2))
	if !third.Changed {
		t.Error("poll with new text should be marked changed")
	}
	if diff := cmp.Diff([]int{0, 1}, third.TiePositions); diff != "" {
		t.Errorf("TiePositions mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_ErrorStates(t *testing.T) {
	tests := []struct {
		name      string
		res       *source.ReadResult
		wantState string
	}{
		{"unreachable", failed("s"), types.StateUnreachable},
		{"empty text", read("s", "\n\n"), types.StateInvalid},
		{"mixed widths", read("s", "101\n10\n"), types.StateInvalid},
		{"bad digit", read("s", "10x\n"), types.StateInvalid},
		{"duplicates", read("s", "101\n101\n"), types.StateUnderflow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := NewEngine().Process(tc.res, tick(0))
			if out.State != tc.wantState {
				t.Errorf("State = %q, want %q", out.State, tc.wantState)
			}
			if out.ErrorMessage == "" {
				t.Error("ErrorMessage should be set")
			}
			if out.Gamma != 0 || out.LifeSupport != 0 || out.Records != 0 {
				t.Errorf("numeric fields should be zero on error: %+v", out)
			}
		})
	}
}

func TestEngine_UptimeWindow(t *testing.T) {
	e := NewEngine()
	e.Process(read("s", sampleText), tick(0))
	out := e.Process(failed("s"), tick(1))
	if math.Abs(out.UptimePct-50) > 0.001 {
		t.Errorf("UptimePct after 1 ok + 1 fail = %.2f, want 50", out.UptimePct)
	}

	// Fill the window with successes; the failure should roll out.
	for i := 0; i < uptimeWindow; i++ {
		out = e.Process(read("s", sampleText), tick(2+i))
	}
	if out.UptimePct != 100 {
		t.Errorf("UptimePct after full window of successes = %.2f, want 100", out.UptimePct)
	}
}

func TestEngine_UnreachableKeepsDigest(t *testing.T) {
	e := NewEngine()
	e.Process(read("s", sampleText), tick(0))
	e.Process(failed("s"), tick(1))
	out := e.Process(read("s", sampleText), tick(2))
	if out.Changed {
		t.Error("an outage should not make the same input look changed")
	}
}

func TestEngine_Forget(t *testing.T) {
	e := NewEngine()
	e.Process(read("s", sampleText), tick(0))
	e.Forget("s")
	out := e.Process(read("s", sampleText), tick(1))
	if !out.Changed {
		t.Error("after Forget the next poll should be treated as new")
	}
}

func TestEngine_IndependentSources(t *testing.T) {
	e := NewEngine()
	e.Process(failed("a"), tick(0))
	out := e.Process(read("b", sampleText), tick(0))
	if out.UptimePct != 100 {
		t.Errorf("source b UptimePct = %.2f, want 100 (unaffected by a)", out.UptimePct)
	}
}

func TestEngine_Concurrent(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.Process(read(fmt.Sprintf("src-%d", i%3), sampleText), tick(j))
			}
		}(i)
	}
	wg.Wait()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, types.StateOK},
		{fmt.Errorf("wrap: %w", diagnostic.ErrUnderflow), types.StateUnderflow},
		{fmt.Errorf("wrap: %w", diagnostic.ErrInvalidInput), types.StateInvalid},
		{errors.New("other"), types.StateInvalid},
	}
	for _, tc := range tests {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
