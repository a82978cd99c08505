// Package nextest parses streaming nextest-style test-runner events (list
// and run formats) into test runs and results.
package nextest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hindsight-dev/hindsight/internal/store"
)

// state is the streaming parser's position within one run.
type state int

const (
	stateIdle state = iota
	stateInSuite
	stateInTest
)

// ListFormat is the single-object "list" shape: discovered tests, no run.
type ListFormat struct {
	TestCount   int                         `json:"test-count"`
	RustSuites  map[string]ListSuite        `json:"rust-suites"`
}

// ListSuite is one suite entry within a ListFormat payload.
type ListSuite struct {
	TestCases map[string]ListTestCase `json:"test-cases"`
}

// ListTestCase is one test entry within a ListSuite.
type ListTestCase struct {
	Ignored bool `json:"ignored"`
}

// ParseList parses the single-JSON-object list format into reserved test
// results with outcome "passed" (assumed) or "ignored". It produces no run.
func ParseList(data []byte) ([]*store.TestResult, error) {
	var lf ListFormat
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse list format: %w", err)
	}
	var results []*store.TestResult
	for suite, s := range lf.RustSuites {
		for name, tc := range s.TestCases {
			outcome := store.OutcomePassed
			if tc.Ignored {
				outcome = store.OutcomeIgnored
			}
			results = append(results, &store.TestResult{
				SuiteName: suite,
				TestName:  name,
				Outcome:   outcome,
			})
		}
	}
	return results, nil
}

// event is the run-format line shape. Fields are a superset of both suite
// and test events; unused fields are left zero.
type event struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	TestCount int    `json:"test_count"`
	Name      string `json:"name"`
	ExecTime  *float64 `json:"exec_time"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	Ignored   int    `json:"ignored"`
}

// inFlightTest is the one test the parser may be tracking at a time.
type inFlightTest struct {
	name      string
	startedAt time.Time
}

// Parser is the streaming state machine described by the run format. It
// tracks at most one in-flight test plus the running aggregate, and keeps
// every completed TestResult in memory until Finish returns them.
type Parser struct {
	state   state
	current *inFlightTest

	CommitSHA *string

	startedAt  time.Time
	finishedAt *time.Time
	passed     int
	failed     int
	ignored    int

	results []*store.TestResult

	Warnings []string
}

// NewParser returns a parser ready to receive lines via ProcessLine.
func NewParser(commitSHA *string) *Parser {
	return &Parser{state: stateIdle, CommitSHA: commitSHA}
}

// ProcessLine consumes one line of the run-format stream. Malformed JSON
// and unrecognized events are logged as warnings, never fatal.
func (p *Parser) ProcessLine(line []byte) {
	var e event
	if err := json.Unmarshal(line, &e); err != nil {
		p.warn(fmt.Sprintf("skipping unparseable line: %v", err))
		return
	}

	switch e.Type {
	case "suite":
		p.processSuiteEvent(e)
	case "test":
		p.processTestEvent(e)
	default:
		p.warn(fmt.Sprintf("skipping unrecognized event type %q", e.Type))
	}
}

func (p *Parser) processSuiteEvent(e event) {
	switch e.Event {
	case "started":
		p.state = stateInSuite
		p.startedAt = time.Now().UTC()
		p.passed, p.failed, p.ignored = 0, 0, 0
	case "ok", "failed":
		p.passed, p.failed, p.ignored = e.Passed, e.Failed, e.Ignored
		now := time.Now().UTC()
		p.finishedAt = &now
		p.state = stateIdle
	default:
		p.warn(fmt.Sprintf("skipping unrecognized suite event %q", e.Event))
	}
}

func (p *Parser) processTestEvent(e event) {
	switch e.Event {
	case "started":
		p.current = &inFlightTest{name: e.Name, startedAt: time.Now().UTC()}
		p.state = stateInTest
	default:
		outcome := mapOutcome(e.Event)
		if outcome == "" {
			p.warn(fmt.Sprintf("unrecognized test outcome %q for %s, treating as failed", e.Event, e.Name))
			outcome = store.OutcomeFailed
		}
		suite, test := splitTestName(e.Name)
		result := &store.TestResult{
			SuiteName: suite,
			TestName:  test,
			Outcome:   outcome,
		}
		if e.ExecTime != nil {
			ms := int64(*e.ExecTime * 1000)
			result.DurationMS = &ms
		}
		if e.Stdout != "" || e.Stderr != "" {
			b, _ := json.Marshal(map[string]string{"stdout": e.Stdout, "stderr": e.Stderr})
			s := string(b)
			result.OutputJSON = &s
		}
		switch outcome {
		case store.OutcomePassed:
			p.passed++
		case store.OutcomeFailed, store.OutcomeTimedOut:
			p.failed++
		case store.OutcomeIgnored:
			p.ignored++
		}
		p.results = append(p.results, result)
		p.current = nil
		p.state = stateInSuite
	}
}

// splitTestName separates nextest's "binary::test::path" naming convention
// into a suite and a leaf test name, on the last "::" separator.
func splitTestName(name string) (suite, test string) {
	idx := strings.LastIndex(name, "::")
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+2:]
}

func mapOutcome(event string) store.Outcome {
	switch event {
	case "ok":
		return store.OutcomePassed
	case "failed":
		return store.OutcomeFailed
	case "ignored":
		return store.OutcomeIgnored
	case "timeout":
		return store.OutcomeTimedOut
	default:
		return ""
	}
}

func (p *Parser) warn(msg string) {
	p.Warnings = append(p.Warnings, msg)
}

// RunSummary is the finalized aggregate produced by Finish.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt *time.Time
	Passed     int
	Failed     int
	Ignored    int
	Results    []*store.TestResult
}

// Finish is idempotent and returns the residual run summary plus all
// results accumulated so far.
func (p *Parser) Finish() RunSummary {
	return RunSummary{
		StartedAt:  p.startedAt,
		FinishedAt: p.finishedAt,
		Passed:     p.passed,
		Failed:     p.failed,
		Ignored:    p.ignored,
		Results:    p.results,
	}
}
