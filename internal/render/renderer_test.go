package render

import (
	"strings"
	"testing"

	"mika/internal/chat"
)

func TestRenderUserMessageIsLiteral(t *testing.T) {
	renderer := New(80)

	got := renderer.Render(chat.Message{
		Sender: chat.SenderUser,
		Text:   "# not a heading\nline two",
	})

	if got != "# not a heading\nline two" {
		t.Fatalf("Render() = %q, want the text untouched", got)
	}
}

func TestRenderAssistantMessageInterpretsMarkdown(t *testing.T) {
	renderer := New(80)

	got := renderer.Render(chat.Message{
		Sender: chat.SenderAssistant,
		Text:   "Here is **bold** text.",
	})

	if !strings.Contains(got, "bold") {
		t.Fatalf("Render() = %q, want the reply content present", got)
	}
	if got == "Here is **bold** text." {
		t.Fatalf("Render() left markdown uninterpreted for an assistant message")
	}
}

func TestRenderFallsBackToPlainTextWhenMarkdownUnavailable(t *testing.T) {
	renderer := &Renderer{markdown: nil}

	reply := "line one\nline two\n`broken"
	got := renderer.Render(chat.Message{Sender: chat.SenderAssistant, Text: reply})

	if got != reply {
		t.Fatalf("Render() = %q, want the exact reply text as fallback", got)
	}
}

func TestRenderAppendsCodePayloadAsSeparateBlock(t *testing.T) {
	renderer := New(80)

	got := renderer.Render(chat.Message{
		Sender:      chat.SenderAssistant,
		Text:        "Run this:",
		CodePayload: "SELECT count(*) FROM payments",
	})

	if !strings.Contains(got, "SELECT count(*) FROM payments") {
		t.Fatalf("Render() = %q, want the SQL payload present", got)
	}
	if !strings.Contains(got, "Run this:") {
		t.Fatalf("Render() = %q, want the reply body present", got)
	}
}

func TestRenderCodePayloadFallsBackWithoutMarkdown(t *testing.T) {
	renderer := &Renderer{markdown: nil}

	got := renderer.Render(chat.Message{
		Sender:      chat.SenderAssistant,
		Text:        "Run this:",
		CodePayload: "SELECT 1",
	})

	if !strings.Contains(got, "SELECT 1") {
		t.Fatalf("Render() = %q, want the SQL payload in the fallback output", got)
	}
}

func TestLastFencedBlockWithLanguageTag(t *testing.T) {
	text := "Use this query:\n\n```sql\nSELECT id FROM users\n```\n\nDone."

	code, lang, ok := LastFencedBlock(text)
	if !ok {
		t.Fatalf("LastFencedBlock() ok = false")
	}
	if lang != "sql" {
		t.Fatalf("lang = %q, want %q", lang, "sql")
	}
	if code != "SELECT id FROM users" {
		t.Fatalf("code = %q", code)
	}
}

func TestLastFencedBlockWithoutLanguageTag(t *testing.T) {
	text := "```\nSELECT 1\n```"

	code, lang, ok := LastFencedBlock(text)
	if !ok {
		t.Fatalf("LastFencedBlock() ok = false")
	}
	if lang != "" {
		t.Fatalf("lang = %q, want empty", lang)
	}
	if code != "SELECT 1" {
		t.Fatalf("code = %q, want %q", code, "SELECT 1")
	}
}

func TestLastFencedBlockPicksFinalFence(t *testing.T) {
	text := "```sql\nSELECT 1\n```\nand then\n```sql\nSELECT 2\n```"

	code, _, ok := LastFencedBlock(text)
	if !ok {
		t.Fatalf("LastFencedBlock() ok = false")
	}
	if code != "SELECT 2" {
		t.Fatalf("code = %q, want the last fence", code)
	}
}

func TestLastFencedBlockIgnoresUnterminatedFence(t *testing.T) {
	text := "```sql\nSELECT 1\n```\ntrailing ```sql\nSELECT broken"

	code, _, ok := LastFencedBlock(text)
	if !ok {
		t.Fatalf("LastFencedBlock() ok = false")
	}
	if code != "SELECT 1" {
		t.Fatalf("code = %q, want the last complete fence", code)
	}
}

func TestLastFencedBlockAbsent(t *testing.T) {
	if _, _, ok := LastFencedBlock("no code here"); ok {
		t.Fatalf("LastFencedBlock() ok = true for text without fences")
	}
}
