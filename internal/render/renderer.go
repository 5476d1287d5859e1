// Package render turns chat messages into terminal output. Assistant replies
// go through glamour's markdown renderer (fenced code blocks get syntax
// coloring from their language tag); user text is shown literally. Rendering
// either produces output or a recoverable failure, and every failure path
// falls back to the original text with line breaks preserved. A reply's SQL
// payload renders as its own block, separate from any inline fence.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"mika/internal/chat"
)

type Renderer struct {
	markdown *glamour.TermRenderer
}

// New builds a renderer wrapping at width columns. A glamour setup failure is
// tolerated; rendering then always takes the plain-text path.
func New(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		renderer = nil
	}
	return &Renderer{markdown: renderer}
}

// Render produces the displayable form of one message.
func (r *Renderer) Render(msg chat.Message) string {
	if msg.Sender == chat.SenderUser {
		return plainText(msg.Text)
	}

	body, err := r.renderMarkdown(msg.Text)
	if err != nil {
		body = plainText(msg.Text)
	}

	if msg.CodePayload == "" {
		return body
	}

	sqlBlock, err := r.renderMarkdown("```sql\n" + msg.CodePayload + "\n```")
	if err != nil {
		sqlBlock = plainText(msg.CodePayload)
	}
	return body + "\n" + sqlBlock
}

// renderMarkdown converts markdown to styled terminal text. Any panic inside
// the markdown pipeline is converted to an error so callers can fall back.
func (r *Renderer) renderMarkdown(text string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = ""
			err = fmt.Errorf("markdown renderer panicked: %v", rec)
		}
	}()

	if r.markdown == nil {
		return "", fmt.Errorf("markdown renderer unavailable")
	}
	rendered, err := r.markdown.Render(text)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return rendered, nil
}

func plainText(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// LastFencedBlock extracts the content of the final fenced code block in an
// assistant reply, for the copy-to-clipboard binding. The declared language
// tag is returned alongside.
func LastFencedBlock(text string) (code, lang string, ok bool) {
	segments := strings.Split(text, "```")
	if len(segments) < 3 {
		return "", "", false
	}
	// Fence contents sit at the odd indexes; take the last complete one.
	lastFence := len(segments) - 1
	if lastFence%2 != 0 {
		lastFence--
	}
	fence := segments[lastFence-1]

	if strings.HasPrefix(fence, "\n") {
		// No language tag on the fence.
		fence = fence[1:]
	} else if newline := strings.IndexByte(fence, '\n'); newline >= 0 {
		header := strings.TrimSpace(fence[:newline])
		if header != "" && !strings.ContainsAny(header, " \t") {
			lang = header
			fence = fence[newline+1:]
		}
	}
	code = strings.TrimSuffix(fence, "\n")
	if strings.TrimSpace(code) == "" {
		return "", "", false
	}
	return code, lang, true
}
