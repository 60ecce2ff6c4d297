package llm

import "testing"

func TestEstimateTokens_Empty(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestEstimateTokens_RoundsUp(t *testing.T) {
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("5 chars should round up to 2 tokens, got %d", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("4 chars should be 1 token, got %d", got)
	}
}

func TestEstimateMessageTokens_IncludesOverhead(t *testing.T) {
	m := Message{Role: "user", Content: "abcd"}
	if got := EstimateMessageTokens(m); got != 5 {
		t.Errorf("expected 4 overhead + 1 content = 5, got %d", got)
	}
}

func TestEstimateMessagesTokens_Sums(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "abcd"},
		{Role: "assistant", Content: "abcd"},
	}
	if got := EstimateMessagesTokens(msgs); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
}
