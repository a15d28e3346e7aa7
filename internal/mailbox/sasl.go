package mailbox

import "github.com/emersion/go-sasl"

// xoauth2Client implements the XOAUTH2 SASL mechanism used by Gmail and
// Outlook for bearer-token IMAP authentication. go-sasl ships
// OAUTHBEARER but not XOAUTH2, so the initial response is built here.
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

// Start returns the mechanism name and the XOAUTH2 initial response:
// "user=<user>\x01auth=Bearer <token>\x01\x01".
func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next handles the error challenge some servers send on failure; the
// protocol expects an empty response.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
