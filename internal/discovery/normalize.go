package discovery

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// WhatsAppLink builds a wa.me deep link from a free-form phone number.
// Brazilian numbers rarely carry the country code, so 55 is prepended
// unless the stripped digits already start with it. Returns "" when the
// input has no digits at all.
func WhatsAppLink(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}
	if !strings.HasPrefix(d, "55") {
		d = "55" + d
	}
	return "https://wa.me/" + d
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases a name and strips diacritics so "São João" and
// "sao joao" compare equal.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Domain extracts the bare hostname of a link, without the www prefix.
func Domain(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// CanonicalName derives a plain competitor name from free-form input: a
// profile URL, an @handle, or the name itself.
func CanonicalName(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "@") {
		return strings.TrimPrefix(s, "@")
	}
	if strings.Contains(s, "://") || strings.HasPrefix(s, "www.") {
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		u, err := url.Parse(s)
		if err != nil {
			return input
		}
		path := strings.Trim(u.Path, "/")
		if path != "" {
			// Profile URLs put the handle in the first path segment.
			return strings.SplitN(path, "/", 2)[0]
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		if i := strings.Index(host, "."); i > 0 {
			return host[:i]
		}
		return host
	}
	return s
}
