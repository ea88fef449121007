package extract

import (
	"reflect"
	"testing"
)

func TestNormalizeText_CollapsesAndDecodes(t *testing.T) {
	got := NormalizeText("  hello &amp;   world\t!  ")
	want := "hello & world !"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeText_PreservesLineBreaks(t *testing.T) {
	got := NormalizeText("line one   \r\nline\ttwo")
	want := "line one\nline two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeText_Empty(t *testing.T) {
	if got := NormalizeText(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestCodeBlocks_LanguageAndOffset(t *testing.T) {
	content := "intro line\n```go\nfmt.Println(\"hi\")\n```\ntrailing"
	blocks := CodeBlocks("turn1", content)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Language != "go" {
		t.Errorf("language: got %q, want %q", b.Language, "go")
	}
	if b.Content != "fmt.Println(\"hi\")" {
		t.Errorf("content: got %q", b.Content)
	}
	if b.StartLine != 1 {
		t.Errorf("start line: got %d, want 1", b.StartLine)
	}
	if b.ID != "turn1:code:0" {
		t.Errorf("id: got %q", b.ID)
	}
}

func TestCodeBlocks_MultipleBlocks(t *testing.T) {
	content := "```python\nx = 1\n```\ntext\n```\nplain\n```"
	blocks := CodeBlocks("t", content)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Language != "python" || blocks[1].Language != "" {
		t.Errorf("languages: got %q, %q", blocks[0].Language, blocks[1].Language)
	}
	if blocks[1].StartLine != 4 {
		t.Errorf("second block start line: got %d, want 4", blocks[1].StartLine)
	}
}

func TestCodeBlocks_Idempotent(t *testing.T) {
	content := "```js\nconsole.log(1)\n```"
	first := CodeBlocks("t", content)
	second := CodeBlocks("t", content)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-extraction differs: %v vs %v", first, second)
	}
}

func TestCodeBlocks_None(t *testing.T) {
	if blocks := CodeBlocks("t", "no fences here"); blocks != nil {
		t.Errorf("expected nil, got %v", blocks)
	}
}

func TestLinks_MarkdownBeforeBare(t *testing.T) {
	content := "see [docs](https://example.com/docs) and https://other.org/page."
	links := Links("t", content)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].URL != "https://example.com/docs" || links[0].Text != "docs" {
		t.Errorf("markdown link: got %+v", links[0])
	}
	if links[0].Domain != "example.com" {
		t.Errorf("domain: got %q", links[0].Domain)
	}
	if links[1].URL != "https://other.org/page" {
		t.Errorf("bare link trailing dot not trimmed: got %q", links[1].URL)
	}
}

func TestLinks_DedupeByURL(t *testing.T) {
	content := "[a](https://example.com) then again https://example.com"
	links := Links("t", content)
	if len(links) != 1 {
		t.Fatalf("expected 1 link after dedupe, got %d", len(links))
	}
}

func TestLinks_StableIDs(t *testing.T) {
	content := "https://a.io https://b.io"
	links := Links("turn9", content)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].ID != "turn9:link:0" || links[1].ID != "turn9:link:1" {
		t.Errorf("ids: got %q, %q", links[0].ID, links[1].ID)
	}
}
