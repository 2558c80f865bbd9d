package sanitize

import "testing"

func TestStripHTMLRemovesEncodedTags(t *testing.T) {
	got := StripHTML("  <b>late</b> &lt;script&gt;x&lt;/script&gt; ")
	if got != "late x" {
		t.Fatalf("expected %q, got %q", "late x", got)
	}
}

func TestLineCollapsesWhitespaceAndTruncates(t *testing.T) {
	got := Line("sick\n\n  today <i>sorry</i>", 0)
	if got != "sick today sorry" {
		t.Fatalf("unexpected line: %q", got)
	}

	got = Line("ééééé", 3)
	if got != "ééé" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestTextPtrNil(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}
