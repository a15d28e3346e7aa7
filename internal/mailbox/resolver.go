package mailbox

import (
	"fmt"
	"strings"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

// Candidate is one concrete connection attempt: a host/port/TLS triple
// paired with a login name.
type Candidate struct {
	Host     string
	Port     int
	TLS      bool
	Username string
}

// Candidates expands an account into the ordered list of connection
// candidates to try during verification: the configured host first,
// then any provider-specific alternates, each crossed with the
// configured username and, if distinct, the account email. Identical
// tuples are deduplicated. Pure sequence generation, no I/O.
func Candidates(cfg model.AccountConfig) []Candidate {
	hosts := []string{cfg.Host}
	for _, alt := range cfg.Family().Policy().AltIMAPHosts {
		if !containsFold(hosts, alt) {
			hosts = append(hosts, alt)
		}
	}

	users := []string{cfg.Username}
	if cfg.Email != "" && !strings.EqualFold(cfg.Email, cfg.Username) {
		users = append(users, cfg.Email)
	}

	seen := make(map[string]struct{})
	var out []Candidate
	for _, host := range hosts {
		if host == "" {
			continue
		}
		for _, user := range users {
			if user == "" {
				continue
			}
			c := Candidate{
				Host:     host,
				Port:     cfg.Port,
				TLS:      cfg.TLS,
				Username: user,
			}
			key := strings.ToLower(fmt.Sprintf(
				"%s|%d|%t|%s", c.Host, c.Port, c.TLS, c.Username,
			))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
