package slug

import (
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Option configures Make.
type Option func(*config)

type config struct {
	maxLength int
	separator rune
}

// MaxLength truncates the slug to n runes. Zero means no limit.
func MaxLength(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxLength = n
		}
	}
}

// Separator sets the rune placed between words. Default is '-'.
func Separator(r rune) Option {
	return func(c *config) {
		c.separator = r
	}
}

// Make builds a lowercase ASCII slug from s.
func Make(s string, opts ...Option) string {
	cfg := &config{separator: '-'}
	for _, opt := range opts {
		opt(cfg)
	}

	var b strings.Builder
	b.Grow(len(s))

	pendingSep := false
	count := 0
	for _, r := range fold(s) {
		if cfg.maxLength > 0 && count >= cfg.maxLength {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && count > 0 {
				if cfg.maxLength > 0 && count+2 > cfg.maxLength {
					break
				}
				b.WriteRune(cfg.separator)
				count++
			}
			b.WriteRune(r)
			count++
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// FromDomain returns the slug of the registrable label of domain, dropping
// subdomains and the public suffix.
func FromDomain(domain string) string {
	return Make(registrableLabel(domain))
}

// OrganizationName derives a display name from an email domain.
func OrganizationName(domain string) string {
	label := strings.ReplaceAll(registrableLabel(domain), "-", " ")
	return cases.Title(language.Und).String(label)
}

func registrableLabel(domain string) string {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if domain == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		etld1 = domain
	}
	suffix, _ := publicsuffix.PublicSuffix(etld1)
	label := strings.TrimSuffix(strings.TrimSuffix(etld1, suffix), ".")
	if label == "" {
		return etld1
	}
	return label
}

// fold strips diacritics and lowercases s.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
