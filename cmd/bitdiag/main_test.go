package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `00100
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

const sampleCourse = `forward 5
down 5
forward 8
up 3
down 8
forward 2
`

// execute runs the command tree with args and stdin and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestRates_Stdin(t *testing.T) {
	out, err := execute(t, sample, "rates")
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	for _, want := range []string{"gamma:             22 (10110)", "epsilon:           9 (01001)", "power consumption: 198"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRatings_File(t *testing.T) {
	out, err := execute(t, "", "ratings", writeFile(t, sample))
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	for _, want := range []string{"oxygen:            23 (10111)", "co2:               10 (01010)", "life support:      230"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReport_JSON(t *testing.T) {
	out, err := execute(t, sample, "report", "--json", "-")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var got reportOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if got.Records != 12 || got.Width != 5 {
		t.Errorf("records/width: got %d/%d, want 12/5", got.Records, got.Width)
	}
	if got.Rates.PowerConsumption != 198 || got.Ratings.LifeSupport != 230 {
		t.Errorf("power/life support: got %d/%d, want 198/230",
			got.Rates.PowerConsumption, got.Ratings.LifeSupport)
	}
}

func TestRates_TieReportedInJSON(t *testing.T) {
	out, err := execute(t, "10\n01\n", "rates", "--json")
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	var got ratesJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.GammaBits != "11" || got.EpsilonBits != "00" {
		t.Errorf("bits: got %s/%s, want 11/00", got.GammaBits, got.EpsilonBits)
	}
	if len(got.TiePositions) != 2 {
		t.Errorf("tie positions: got %v, want [0 1]", got.TiePositions)
	}
}

func TestDive(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"plain", []string{"dive"}, "product:    150"},
		{"aim", []string{"dive", "--aim"}, "product:    900"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, sampleCourse, tc.args...)
			if err != nil {
				t.Fatalf("dive: %v", err)
			}
			if !strings.Contains(out, tc.want) {
				t.Errorf("output missing %q:\n%s", tc.want, out)
			}
		})
	}
}

func TestRoot_UnknownCommand(t *testing.T) {
	_, err := execute(t, "", "frobnicate", "x.txt")
	var ue usageError
	if !errors.As(err, &ue) {
		t.Fatalf("error: got %v, want usageError", err)
	}
	if !strings.Contains(err.Error(), `unknown command "frobnicate"`) {
		t.Errorf("message: got %q", err)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"ok", []string{"report", writeFile(t, sample)}, exitOK},
		{"invalid digit", []string{"rates", writeFile(t, "102\n")}, exitInvalid},
		{"ragged widths", []string{"rates", writeFile(t, "10\n101\n")}, exitInvalid},
		{"empty set", []string{"ratings", writeFile(t, "\n\n")}, exitInvalid},
		{"duplicates underflow", []string{"ratings", writeFile(t, "101\n101\n")}, exitUnderflow},
		{"bad course", []string{"dive", writeFile(t, "sideways 3\n")}, exitInvalid},
		{"missing file", []string{"rates", missing}, exitFailure},
		{"too many args", []string{"rates", "a", "b"}, exitUsage},
		{"unknown flag", []string{"rates", "--bogus"}, exitUsage},
		{"unknown command", []string{"foo"}, exitUsage},
		{"unknown root flag", []string{"--bogus"}, exitUsage},
		{"no command prints help", []string{}, exitOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// run writes errors to the real stderr; only the code matters here.
			if got := run(tc.args); got != tc.want {
				t.Errorf("exit code: got %d, want %d", got, tc.want)
			}
		})
	}
}
