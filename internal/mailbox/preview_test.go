package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPreviewPlainText(t *testing.T) {
	raw := []byte("From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: hi\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello Bob,\r\nhere is the   plan for\r\ntomorrow.\r\n")

	assert.Equal(t, "Hello Bob, here is the plan for tomorrow.", extractPreview(raw))
}

func TestExtractPreviewMultipartPrefersPlainPart(t *testing.T) {
	raw := []byte("From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: hi\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<b>html body</b>\r\n" +
		"--XYZ--\r\n")

	assert.Equal(t, "plain body", extractPreview(raw))
}

func TestExtractPreviewUnparseable(t *testing.T) {
	assert.Equal(t, "", extractPreview([]byte("not an rfc2822 message")))
	assert.Equal(t, "", extractPreview(nil))
}

func TestClipPreviewTruncates(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got := clipPreview(long)

	assert.LessOrEqual(t, len([]rune(got)), previewRunes+1)
	assert.True(t, strings.HasSuffix(got, "…"))

	assert.Equal(t, "short text", clipPreview("  short   text \n"))
}
