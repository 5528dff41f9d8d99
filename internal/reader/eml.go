package reader

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"
)

var emlHeaders = []string{"From", "To", "Cc", "Reply-To"}

// decodeEML returns the address headers followed by the text body. When the
// message only has an HTML part, its visible text is used.
func decodeEML(data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, h := range emlHeaders {
		if v := strings.TrimSpace(env.GetHeader(h)); v != "" {
			b.WriteString(h)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	if subj := strings.TrimSpace(env.GetHeader("Subject")); subj != "" {
		b.WriteString("Subject: ")
		b.WriteString(subj)
		b.WriteString("\n")
	}
	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		if t, err := decodeHTML([]byte(env.HTML)); err == nil {
			body = t
		}
	}
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String(), nil
}
