package session

import (
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
)

// foldEmail returns the case-folded form used for every email comparison.
func foldEmail(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func sameEmail(a, b string) bool {
	return foldEmail(a) == foldEmail(b)
}

// emailDomain validates a bare address and returns its folded domain.
func emailDomain(email string) (string, bool) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	at := strings.LastIndexByte(email, '@')
	domain := foldEmail(email[at+1:])
	if domain == "" || !strings.Contains(domain, ".") {
		return "", false
	}
	return domain, true
}

// domainAllowed reports whether domain may sign up without an invitation.
// Subdomains of an allowed domain are allowed too.
func (s *Store) domainAllowed(domain string) bool {
	if s.cfg.OpenSignUp {
		return true
	}
	for _, d := range s.cfg.AllowedDomains {
		d = strings.TrimPrefix(foldEmail(d), "@")
		if d == "" {
			continue
		}
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
