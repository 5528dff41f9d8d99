package reader

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRead_PlainText(t *testing.T) {
	got, err := Read("notes.TXT", []byte("Call 555-123-4567"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "Call 555-123-4567" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestRead_UTF16WithBOM(t *testing.T) {
	// "Hi" in UTF-16LE with a byte order mark.
	data := []byte{0xFF, 0xFE, 'H', 0, 'i', 0}
	got, err := Read("a.txt", data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "Hi" {
		t.Fatalf("want Hi, got %q", got)
	}
}

func TestRead_NormalizesToNFC(t *testing.T) {
	got, err := Read("a.md", []byte("José"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "Jos\u00e9" {
		t.Fatalf("want composed form, got %q", got)
	}
}

func TestRead_Unsupported(t *testing.T) {
	_, err := Read("image.png", []byte{1, 2, 3})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}
	if Supported("image.png") {
		t.Fatalf("png should not be supported")
	}
	if !Supported("Letter.DOCX") {
		t.Fatalf("docx should be supported regardless of case")
	}
}

func TestRead_BrokenPDF(t *testing.T) {
	_, err := Read("broken.pdf", []byte("not a pdf"))
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("want ErrUnreadable, got %v", err)
	}
}

func TestExtensions_Sorted(t *testing.T) {
	exts := Extensions()
	for i := 1; i < len(exts); i++ {
		if exts[i-1] >= exts[i] {
			t.Fatalf("not sorted: %v", exts)
		}
	}
	found := false
	for _, e := range exts {
		if e == ".eml" {
			found = true
		}
	}
	if !found {
		t.Fatalf(".eml missing from %v", exts)
	}
}

func TestDecodeHTML(t *testing.T) {
	page := `<html><head><title>Contact</title><script>var x = "hidden@example.com";</script>
<style>.a{}</style></head><body>
<nav>Home</nav>
<p>Reach   John Smith</p>
<footer><a href="mailto:info@example.com?subject=hi">Write us</a> <a href="tel:+15551234567">Call</a></footer>
</body></html>`
	got, err := decodeHTML([]byte(page))
	if err != nil {
		t.Fatalf("decodeHTML: %v", err)
	}
	if strings.Contains(got, "hidden@example.com") {
		t.Fatalf("script content leaked: %q", got)
	}
	for _, want := range []string{"Contact", "Reach John Smith", "Home", "Write us", "info@example.com", "+15551234567"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "subject=hi") {
		t.Fatalf("mailto query kept: %q", got)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := normalizeWhitespace("\n\n a  b \n\n\n\n c\t d \n\n")
	if got != "a b\n\nc d" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestParagraphsFromWordXML(t *testing.T) {
	content := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Dr. Alice</w:t></w:r><w:r><w:t xml:space="preserve"> Wonderland</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>alice@example.com</w:t><w:tab/><w:t>555-123-4567</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	got, err := paragraphsFromWordXML(content)
	if err != nil {
		t.Fatalf("paragraphsFromWordXML: %v", err)
	}
	want := "Dr. Alice Wonderland\nalice@example.com\t555-123-4567"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestParagraphsFromWordXML_Malformed(t *testing.T) {
	if _, err := paragraphsFromWordXML("<w:p><w:t>open"); err == nil {
		t.Fatalf("expected error for truncated XML")
	}
}

func TestDecodeEML(t *testing.T) {
	msg := strings.Join([]string{
		"From: John Smith <john@example.com>",
		"To: sales@acme.example",
		"Subject: Quote",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Please call me at 555-123-4567.",
		"",
	}, "\r\n")
	got, err := Read("mail.eml", []byte(msg))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, want := range []string{"john@example.com", "sales@acme.example", "Subject: Quote", "555-123-4567"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestDecodeEML_HTMLOnly(t *testing.T) {
	msg := strings.Join([]string{
		"From: a@example.com",
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Office: <b>555-987-6543</b></p>",
		"",
	}, "\r\n")
	got, err := Read("mail.eml", []byte(msg))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(got, "555-987-6543") || strings.Contains(got, "<b>") {
		t.Fatalf("html body not converted: %q", got)
	}
}

func TestDecoderFunc(t *testing.T) {
	var d Decoder = DecoderFunc(func(b []byte) (string, error) { return strings.ToUpper(string(b)), nil })
	got, _ := d.Decode([]byte("x"))
	if !reflect.DeepEqual(got, "X") {
		t.Fatalf("got %q", got)
	}
}
