package agent

import (
	"context"
	"testing"
)

func TestNormalizeMessagesForRequest_ExtractsSystemPrompt(t *testing.T) {
	input := []Message{
		{Role: "system", Content: "You are Mika."},
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi"},
		{Role: "system", Content: "Prefer fenced SQL."},
	}

	requestMessages, systemPrompt := normalizeMessagesForRequest(input)

	if systemPrompt != "You are Mika.\n\nPrefer fenced SQL." {
		t.Fatalf("systemPrompt = %q", systemPrompt)
	}
	if len(requestMessages) != 2 {
		t.Fatalf("len(requestMessages) = %d, want 2", len(requestMessages))
	}
	if requestMessages[0].Role != "user" {
		t.Fatalf("requestMessages[0].Role = %q, want user", requestMessages[0].Role)
	}
	if requestMessages[1].Role != "assistant" {
		t.Fatalf("requestMessages[1].Role = %q, want assistant", requestMessages[1].Role)
	}
}

func TestOfflineRunAnswersPaymentMethods(t *testing.T) {
	runner := NewRunner(RunnerConfig{Offline: true})

	result, err := runner.Run(context.Background(), []Message{
		{Role: "user", Content: "Which payment methods do we see most?"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "SELECT payment_method, COUNT(*) FROM payments GROUP BY payment_method;"
	if result.SQL != want {
		t.Fatalf("result.SQL = %q, want %q", result.SQL, want)
	}
	if result.Reply == "" {
		t.Fatalf("result.Reply is empty")
	}
}

func TestOfflineRunDefaultQuery(t *testing.T) {
	runner := NewRunner(RunnerConfig{Offline: true})

	result, err := runner.Run(context.Background(), []Message{
		{Role: "assistant", Content: "Hi!"},
		{Role: "user", Content: "show me something"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.SQL != "SELECT * FROM users LIMIT 10;" {
		t.Fatalf("result.SQL = %q", result.SQL)
	}
}

func TestRunWithoutUserTurnYieldsPlaceholder(t *testing.T) {
	runner := NewRunner(RunnerConfig{Offline: true})

	result, err := runner.Run(context.Background(), []Message{
		{Role: "assistant", Content: "Hi!"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Reply != "(No response)" {
		t.Fatalf("result.Reply = %q, want placeholder", result.Reply)
	}
}

func TestResultFromReplyLiftsFencedSQL(t *testing.T) {
	result := resultFromReply("Try this:\n\n```sql\nSELECT 1\n```")
	if result.SQL != "SELECT 1" {
		t.Fatalf("result.SQL = %q, want %q", result.SQL, "SELECT 1")
	}

	plain := resultFromReply("No query needed here.")
	if plain.SQL != "" {
		t.Fatalf("plain.SQL = %q, want empty", plain.SQL)
	}

	other := resultFromReply("```python\nprint(1)\n```")
	if other.SQL != "" {
		t.Fatalf("other.SQL = %q, want empty for a non-sql fence", other.SQL)
	}
}
