package adspace

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/adslot/leasekeeper/pkg/errclass"
)

// MaxBrandNameLen bounds brand names in runes.
const MaxBrandNameLen = 64

// NormalizeBrandName returns name in NFC with surrounding space trimmed.
// Empty names, control characters and overlong names are rejected.
func NormalizeBrandName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return "", errclass.ErrInvalidRequest.WithMessage("brand name must not be empty")
	}
	if n := utf8.RuneCountInString(name); n > MaxBrandNameLen {
		return "", errclass.ErrInvalidRequest.WithMessagef("brand name is %d characters, limit %d", n, MaxBrandNameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", errclass.ErrInvalidRequest.WithMessagef("brand name must not contain control characters: %q", name)
		}
	}
	return name, nil
}

// ValidateLink accepts an empty link or an absolute http(s) URL.
func ValidateLink(field, link string) error {
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errclass.ErrInvalidRequest.WithMessagef("%s must be an http(s) URL: %q", field, link)
	}
	return nil
}
