// Package agent produces Mika's replies for the dev backend. Online it runs
// the conversation through vai-lite; offline it falls back to a canned SQL
// heuristic so the development loop works without an API key. Either way the
// result is a markdown reply plus the extracted standalone SQL.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	vai "github.com/vango-go/vai-lite/sdk"

	"mika/internal/render"
)

type Message struct {
	Role    string
	Content string
}

type Result struct {
	Reply   string
	SQL     string
	VizType string
}

type RunnerConfig struct {
	Model        string
	MaxTurns     int
	RunTimeout   time.Duration
	SystemPrompt string
	Offline      bool
}

type Runner struct {
	client *vai.Client
	cfg    RunnerConfig
}

func NewRunner(cfg RunnerConfig) *Runner {
	var client *vai.Client
	if !cfg.Offline {
		client = vai.NewClient()
	}
	return &Runner{client: client, cfg: cfg}
}

// Run answers the latest user turn given the full conversation history.
func (r *Runner) Run(ctx context.Context, history []Message) (Result, error) {
	prompt := latestUserPrompt(history)
	if strings.TrimSpace(prompt) == "" {
		return Result{Reply: "(No response)", VizType: "bar"}, nil
	}

	if r.cfg.Offline {
		return cannedResult(prompt), nil
	}

	if !IsAllowedModel(r.cfg.Model) {
		return Result{}, fmt.Errorf("unsupported model %q", r.cfg.Model)
	}

	requestMessages, systemPrompt := normalizeMessagesForRequest(history)
	if r.cfg.SystemPrompt != "" {
		if systemPrompt != "" {
			systemPrompt = r.cfg.SystemPrompt + "\n\n" + systemPrompt
		} else {
			systemPrompt = r.cfg.SystemPrompt
		}
	}

	req := &vai.MessageRequest{
		Model:    r.cfg.Model,
		System:   systemPrompt,
		Messages: requestMessages,
	}

	runCtx := ctx
	cancel := func() {}
	if r.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
	}
	defer cancel()

	opts := []vai.RunOption{}
	if r.cfg.MaxTurns > 0 {
		opts = append(opts, vai.WithMaxTurns(r.cfg.MaxTurns))
	}

	stream, err := r.client.Messages.RunStream(runCtx, req, opts...)
	if err != nil {
		return Result{}, err
	}
	defer stream.Close()

	var reply strings.Builder
	_, processErr := stream.Process(vai.StreamCallbacks{
		OnTextDelta: func(delta string) {
			reply.WriteString(delta)
		},
	})
	if processErr != nil {
		return Result{}, processErr
	}
	if err := stream.Err(); err != nil {
		return Result{}, err
	}

	return resultFromReply(reply.String()), nil
}

// resultFromReply lifts the final fenced SQL block, if any, into the
// standalone sql field the extension renders separately.
func resultFromReply(reply string) Result {
	result := Result{Reply: reply, VizType: "bar"}
	if code, lang, ok := render.LastFencedBlock(reply); ok && (lang == "sql" || lang == "") {
		result.SQL = code
	}
	return result
}

// cannedResult mirrors the offline generate_sql heuristic the original dev
// backend shipped with.
func cannedResult(prompt string) Result {
	sql := "SELECT * FROM users LIMIT 10;"
	if strings.Contains(strings.ToLower(prompt), "payment methods") {
		sql = "SELECT payment_method, COUNT(*) FROM payments GROUP BY payment_method;"
	}
	reply := "Here is a query for that:\n\n```sql\n" + sql + "\n```"
	return Result{Reply: reply, SQL: sql, VizType: "bar"}
}

func latestUserPrompt(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

// normalizeMessagesForRequest folds system entries out of the history and
// keeps only user/assistant turns, in order.
func normalizeMessagesForRequest(history []Message) ([]vai.Message, string) {
	requestMessages := make([]vai.Message, 0, len(history))
	systemParts := make([]string, 0, 1)
	for _, message := range history {
		switch message.Role {
		case "system":
			if strings.TrimSpace(message.Content) != "" {
				systemParts = append(systemParts, message.Content)
			}
		case "user", "assistant":
			if strings.TrimSpace(message.Content) == "" {
				continue
			}
			requestMessages = append(requestMessages, vai.Message{
				Role:    message.Role,
				Content: []vai.ContentBlock{vai.Text(message.Content)},
			})
		}
	}
	return requestMessages, strings.Join(systemParts, "\n\n")
}
