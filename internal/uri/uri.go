// Package uri implements the typed foreign-key encoding used across the
// ledger: <kind>.<domain>://<scheme><id>, e.g. actor.user://telegram42.
package uri

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedURI    = errors.New("malformed uri")
	ErrURITypeMismatch = errors.New("uri type mismatch")
)

const (
	KindAsset     = "asset"
	KindActor     = "actor"
	KindAgreement = "agreement"

	DomainPublication = "publication"
	DomainTransaction = "transaction"
	DomainUser        = "user"
	DomainHashtag     = "hashtag"

	SchemeTelegram = "telegram"
	SchemeSlug     = "slug"
)

const separator = "://"

// schemes lists the identifier scheme each domain carries on the wire.
var schemes = map[string]string{
	DomainUser:    SchemeTelegram,
	DomainHashtag: SchemeSlug,
}

// uidDomains identify records by generated uid, never by slug.
var uidDomains = map[string]bool{
	DomainTransaction: true,
}

type URI struct {
	Kind   string
	Domain string
	Scheme string
	ID     string
}

func Publication(slug string) URI {
	return URI{Kind: KindAsset, Domain: DomainPublication, ID: slug}
}

func Transaction(uid string) URI {
	return URI{Kind: KindAgreement, Domain: DomainTransaction, ID: uid}
}

func User(telegramID string) URI {
	return URI{Kind: KindActor, Domain: DomainUser, Scheme: SchemeTelegram, ID: telegramID}
}

func Community(slug string) URI {
	return URI{Kind: KindActor, Domain: DomainHashtag, Scheme: SchemeSlug, ID: slug}
}

func Parse(raw string) (URI, error) {
	head, rest, ok := strings.Cut(raw, separator)
	if !ok || rest == "" {
		return URI{}, fmt.Errorf("%w: %q", ErrMalformedURI, raw)
	}
	kind, domain, ok := strings.Cut(head, ".")
	if !ok || !isName(kind) || !isName(domain) {
		return URI{}, fmt.Errorf("%w: %q", ErrMalformedURI, raw)
	}
	u := URI{Kind: kind, Domain: domain, ID: rest}
	if scheme, ok := schemes[domain]; ok {
		id, found := strings.CutPrefix(rest, scheme)
		if !found || id == "" {
			return URI{}, fmt.Errorf("%w: %q lacks %s scheme", ErrURITypeMismatch, raw, scheme)
		}
		u.Scheme, u.ID = scheme, id
	}
	if uidDomains[domain] && strings.HasPrefix(rest, SchemeSlug) {
		return URI{}, fmt.Errorf("%w: %q is in slug form, uid expected", ErrURITypeMismatch, raw)
	}
	return u, nil
}

func MustParse(raw string) URI {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func (u URI) String() string {
	if u.IsZero() {
		return ""
	}
	return u.Kind + "." + u.Domain + separator + u.Scheme + u.ID
}

func (u URI) IsZero() bool {
	return u == URI{}
}

func (u URI) Is(kind, domain string) bool {
	return u.Kind == kind && u.Domain == domain
}

// Expect returns the identifier when u has the given kind and domain.
func (u URI) Expect(kind, domain string) (string, error) {
	if !u.Is(kind, domain) {
		return "", fmt.Errorf("%w: want %s.%s, got %q", ErrURITypeMismatch, kind, domain, u.String())
	}
	return u.ID, nil
}

func (u URI) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *URI) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*u = URI{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ParseAll parses a list, failing on the first invalid entry.
func ParseAll(raw []string) ([]URI, error) {
	out := make([]URI, 0, len(raw))
	for _, item := range raw {
		u, err := Parse(item)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func Strings(uris []URI) []string {
	out := make([]string, 0, len(uris))
	for _, u := range uris {
		out = append(out, u.String())
	}
	return out
}

func isName(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
