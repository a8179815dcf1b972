package clarify

import (
	"strings"
	"testing"
)

func TestParseWellFormed(t *testing.T) {
	raw := "INSIGHT: foo\nTHREAD: bar\nCLARITY: baz\nQUESTION: qux"

	reply := Parse(raw)

	if reply.Insight != "foo" {
		t.Errorf("Expected insight %q, got %q", "foo", reply.Insight)
	}
	if reply.Thread != "bar" {
		t.Errorf("Expected thread %q, got %q", "bar", reply.Thread)
	}
	if reply.Clarity != "baz" {
		t.Errorf("Expected clarity %q, got %q", "baz", reply.Clarity)
	}
	if reply.Question != "qux" {
		t.Errorf("Expected question %q, got %q", "qux", reply.Question)
	}
}

func TestParseMultiParagraphClarity(t *testing.T) {
	raw := "INSIGHT:\nAn observation.\n\nTHREAD:\nA single line.\n\nCLARITY:\nFirst paragraph.\n\nSecond paragraph.\n\nQUESTION:\nWhat feels heaviest?"

	reply := Parse(raw)

	if reply.Clarity != "First paragraph.\n\nSecond paragraph." {
		t.Errorf("Clarity should preserve internal paragraphs, got %q", reply.Clarity)
	}
	if reply.Question != "What feels heaviest?" {
		t.Errorf("Expected question captured to end of input, got %q", reply.Question)
	}
}

func TestParseCaseInsensitiveHeaders(t *testing.T) {
	raw := "insight: a\nthread: b\nclarity: c\nquestion: d"

	reply := Parse(raw)

	if reply.Insight != "a" || reply.Thread != "b" || reply.Clarity != "c" || reply.Question != "d" {
		t.Errorf("Lowercase headers should parse, got %+v", reply)
	}
}

func TestParseNoHeadersYieldsAllDefaults(t *testing.T) {
	reply := Parse("the model ignored every formatting instruction")

	if reply.Insight != defaultInsight {
		t.Errorf("Expected default insight, got %q", reply.Insight)
	}
	if reply.Thread != defaultThread {
		t.Errorf("Expected default thread, got %q", reply.Thread)
	}
	if reply.Clarity != defaultClarity {
		t.Errorf("Expected default clarity, got %q", reply.Clarity)
	}
	if reply.Question != defaultQuestion {
		t.Errorf("Expected default question, got %q", reply.Question)
	}
}

func TestParseEmptyInputYieldsAllDefaults(t *testing.T) {
	reply := Parse("")

	if !reply.Complete() {
		t.Errorf("Reply must be fully populated for empty input, got %+v", reply)
	}
}

func TestParsePartialHeaders(t *testing.T) {
	// THREAD and QUESTION present; INSIGHT and CLARITY missing their
	// terminating structure.
	raw := "THREAD: a thin line\nCLARITY: held text\nQUESTION: and you?"

	reply := Parse(raw)

	if reply.Insight != defaultInsight {
		t.Errorf("Missing insight should default, got %q", reply.Insight)
	}
	if reply.Thread != "a thin line" {
		t.Errorf("Expected captured thread, got %q", reply.Thread)
	}
	if reply.Clarity != "held text" {
		t.Errorf("Expected captured clarity, got %q", reply.Clarity)
	}
	if reply.Question != "and you?" {
		t.Errorf("Expected captured question, got %q", reply.Question)
	}
}

func TestParseEmptySectionDefaults(t *testing.T) {
	raw := "INSIGHT:\nTHREAD: something real\nCLARITY: body\nQUESTION: q"

	reply := Parse(raw)

	if reply.Insight != defaultInsight {
		t.Errorf("Whitespace-only section should default, got %q", reply.Insight)
	}
	if reply.Thread != "something real" {
		t.Errorf("Expected captured thread, got %q", reply.Thread)
	}
}

func TestParseAlwaysComplete(t *testing.T) {
	inputs := []string{
		"",
		"QUESTION: only the last section",
		"INSIGHT: alone with no terminator",
		strings.Repeat("noise ", 500),
		"CLARITY: text\nINSIGHT: out of order",
	}

	for _, raw := range inputs {
		reply := Parse(raw)
		if !reply.Complete() {
			t.Errorf("Parse(%q) produced incomplete reply %+v", raw, reply)
		}
	}
}

func TestParseIdempotentOnCanonicalForm(t *testing.T) {
	reply := Parse("INSIGHT: foo\nTHREAD: bar\nCLARITY: baz\nQUESTION: qux")

	canonical := "INSIGHT: " + reply.Insight +
		"\nTHREAD: " + reply.Thread +
		"\nCLARITY: " + reply.Clarity +
		"\nQUESTION: " + reply.Question

	again := Parse(canonical)
	if again != reply {
		t.Errorf("Re-parsing canonical form changed fields: %+v vs %+v", again, reply)
	}
}
