package types_test

import (
	"encoding/json"
	"testing"

	"github.com/cantora-app/cantora/pkg/types"
)

func TestWordTokenUnmarshal_AbsentLineIndexIsNoLine(t *testing.T) {
	t.Parallel()

	var tok types.WordToken
	if err := json.Unmarshal([]byte(`{"word":"hello","start":0.5,"end":0.9,"index":3}`), &tok); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if tok.LineIndex != types.NoLine {
		t.Errorf("LineIndex = %d, want NoLine (%d)", tok.LineIndex, types.NoLine)
	}
	if tok.Word != "hello" || tok.Start != 0.5 || tok.End != 0.9 || tok.Index != 3 {
		t.Errorf("token = %+v, want remaining fields decoded", tok)
	}
}

func TestWordTokenUnmarshal_LineZeroIsNotNoLine(t *testing.T) {
	t.Parallel()

	var tok types.WordToken
	if err := json.Unmarshal([]byte(`{"word":"hello","line_index":0}`), &tok); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if tok.LineIndex != 0 {
		t.Errorf("LineIndex = %d, want 0 (an explicit assignment to line 0)", tok.LineIndex)
	}
}

func TestWordTokenUnmarshal_SliceOfTokens(t *testing.T) {
	t.Parallel()

	const doc = `[{"word":"a","line_index":1},{"word":"b"}]`
	var toks []types.WordToken
	if err := json.Unmarshal([]byte(doc), &toks); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if toks[0].LineIndex != 1 {
		t.Errorf("toks[0].LineIndex = %d, want 1", toks[0].LineIndex)
	}
	if toks[1].LineIndex != types.NoLine {
		t.Errorf("toks[1].LineIndex = %d, want NoLine", toks[1].LineIndex)
	}
}
