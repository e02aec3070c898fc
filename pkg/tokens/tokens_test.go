package tokens

import "testing"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("o200k_base")
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)
	text := "Graph RAG systems combine retrieval with structured knowledge."
	decoded := c.Decode(c.Encode(text))
	if decoded != text {
		t.Fatalf("round trip mismatch: got %q want %q", decoded, text)
	}
}

func TestCodec_TruncateHugeLimitUnchanged(t *testing.T) {
	c := newTestCodec(t)
	text := "short text that fits easily"
	if got := c.Truncate(text, 1_000_000); got != text {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestCodec_TruncateEnforcesLimit(t *testing.T) {
	c := newTestCodec(t)
	text := "one two three four five six seven eight nine ten eleven twelve"
	truncated := c.Truncate(text, 4)
	if got := c.Count(truncated); got > 4 {
		t.Fatalf("expected at most 4 tokens after truncate, got %d", got)
	}
	if truncated == text {
		t.Fatal("expected truncation to shorten the text")
	}
}

func TestCodec_CountEmpty(t *testing.T) {
	c := newTestCodec(t)
	if got := c.Count(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
}

func TestSplitBudget_SumsToTotal(t *testing.T) {
	shares := SplitBudget(8000, 0.4, 0.3, 0.3)
	sum := 0
	for _, s := range shares {
		sum += s
	}
	if sum != 8000 {
		t.Fatalf("expected shares to sum to 8000, got %d (%v)", sum, shares)
	}
	if shares[0] < shares[1] || shares[0] < shares[2] {
		t.Fatalf("expected first share largest, got %v", shares)
	}
}

func TestSplitBudget_ZeroTotal(t *testing.T) {
	shares := SplitBudget(0, 0.5, 0.5)
	if shares[0] != 0 || shares[1] != 0 {
		t.Fatalf("expected zero shares, got %v", shares)
	}
}
