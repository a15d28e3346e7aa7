package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// previewRunes caps the preview snippet length.
const previewRunes = 120

// extractPreview pulls a short plain-text snippet from a raw RFC 2822
// message for use in notifications. Best effort: a message that cannot
// be parsed yields an empty preview.
func extractPreview(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(part.Body, 8192))
		if readErr != nil {
			continue
		}
		return clipPreview(string(body))
	}

	return ""
}

// clipPreview collapses whitespace runs and truncates to the preview
// length.
func clipPreview(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= previewRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:previewRunes])) + "…"
}
