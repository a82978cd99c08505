package nextest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hindsight-dev/hindsight/internal/store"
)

func TestParseListFormat(t *testing.T) {
	payload := `{"test-count":2,"rust-suites":{"hindsight-mcp":{"test-cases":{"test_a":{"ignored":false},"test_b":{"ignored":true}}}}}`
	results, err := ParseList([]byte(payload))
	require.NoError(t, err)
	require.Len(t, results, 2)

	byName := map[string]*store.TestResult{}
	for _, r := range results {
		byName[r.TestName] = r
	}
	require.Equal(t, store.OutcomePassed, byName["test_a"].Outcome)
	require.Equal(t, store.OutcomeIgnored, byName["test_b"].Outcome)
}

func TestRunFormatStreamingParse(t *testing.T) {
	p := NewParser(nil)
	lines := []string{
		`{"type":"suite","event":"started","test_count":1}`,
		`{"type":"test","event":"started","name":"hindsight_mcp::test_x"}`,
		`{"type":"test","event":"ok","name":"hindsight_mcp::test_x","exec_time":0.05}`,
		`{"type":"suite","event":"ok","passed":1,"failed":0,"ignored":0,"exec_time":0.1}`,
	}
	for _, l := range lines {
		p.ProcessLine([]byte(l))
	}
	summary := p.Finish()
	require.Equal(t, 1, summary.Passed)
	require.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 1)
	require.Equal(t, "hindsight_mcp", summary.Results[0].SuiteName)
	require.Equal(t, "test_x", summary.Results[0].TestName)
	require.Equal(t, store.OutcomePassed, summary.Results[0].Outcome)
	require.Empty(t, p.Warnings)
}

func TestUnknownEventIsSkippedNotFatal(t *testing.T) {
	p := NewParser(nil)
	p.ProcessLine([]byte(`{"type":"suite","event":"weird"}`))
	p.ProcessLine([]byte(`{"type":"banana"}`))
	require.Len(t, p.Warnings, 2)
}

func TestMalformedJSONLineIsSkippedNotFatal(t *testing.T) {
	p := NewParser(nil)
	require.NotPanics(t, func() {
		p.ProcessLine([]byte(`{not json`))
	})
	require.Len(t, p.Warnings, 1)
}

func TestUnknownOutcomeDefaultsToFailed(t *testing.T) {
	p := NewParser(nil)
	p.ProcessLine([]byte(`{"type":"suite","event":"started"}`))
	p.ProcessLine([]byte(`{"type":"test","event":"weird","name":"t"}`))
	summary := p.Finish()
	require.Len(t, summary.Results, 1)
	require.Equal(t, store.OutcomeFailed, summary.Results[0].Outcome)
}

func TestFinishIsIdempotent(t *testing.T) {
	p := NewParser(nil)
	p.ProcessLine([]byte(`{"type":"suite","event":"started"}`))
	p.ProcessLine([]byte(`{"type":"test","event":"ok","name":"t"}`))
	first := p.Finish()
	second := p.Finish()
	require.Equal(t, first, second)
}

func TestNeverPanicsOnAdversarialInput(t *testing.T) {
	inputs := []string{"", "{}", "null", "[]", `{"type":"test"}`, `{"type":"suite","event":"ok","passed":"not a number"}`}
	p := NewParser(nil)
	for _, in := range inputs {
		require.NotPanics(t, func() {
			p.ProcessLine([]byte(in))
		})
	}
}
