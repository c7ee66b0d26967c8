package browser

import (
	"strconv"
	"strings"
	"time"
)

// Extractor recognizes a provider's terminal authenticated page and pulls
// the access token out of it. Implementations are stateless; the handle
// feeds them every URL (and URL fragment) the browser reaches.
type Extractor interface {
	// Provider is the provider key the extracted token is stored under.
	Provider() string

	// ExtractFromURL parses a token from a full URL or a bare fragment.
	// ok is false when the URL carries no token.
	ExtractFromURL(raw string) (tok *Token, ok bool)

	// Terminal reports whether the URL is the provider's post-login page,
	// i.e. the flow finished even if no token could be parsed from it.
	Terminal(raw string) bool
}

// DefaultYandexClientID is the Yandex Music OAuth application id used when
// no client id is configured.
const DefaultYandexClientID = "23cabbbdc6cd418abb4b39c32c41195d"

// YandexAuthURL builds the implicit-flow authorize URL for a client id.
func YandexAuthURL(clientID string) string {
	if clientID == "" {
		clientID = DefaultYandexClientID
	}
	return "https://oauth.yandex.ru/authorize?response_type=token&client_id=" + clientID
}

// YandexExtractor parses access tokens from the fragment Yandex appends to
// its OAuth redirect (#access_token=...&expires_in=...).
type YandexExtractor struct{}

func (YandexExtractor) Provider() string { return "yandex" }

func (YandexExtractor) ExtractFromURL(raw string) (*Token, bool) {
	idx := strings.Index(raw, "access_token=")
	if idx == -1 {
		return nil, false
	}
	return parseTokenFragment(raw[idx:])
}

// Terminal: Yandex lands the user on a redirect URL whose fragment carries
// the token. Anything with a fragment past the authorize page counts as
// the end of the flow.
func (YandexExtractor) Terminal(raw string) bool {
	if strings.Contains(raw, "access_token=") {
		return true
	}
	frag := strings.IndexByte(raw, '#')
	return frag != -1 && !strings.Contains(raw, "oauth.yandex")
}

// jsonEscapedAmp is the backslash-u-0026 sequence raw CDP JSON payloads
// use for "&". Built from bytes so source tooling cannot collapse it.
var jsonEscapedAmp = string([]byte{'\\', 'u', '0', '0', '2', '6'})

// parseTokenFragment parses "access_token=...&expires_in=..." key-value
// pairs. CDP event payloads JSON-escape ampersands; both forms are
// accepted.
func parseTokenFragment(fragment string) (*Token, bool) {
	fragment = strings.TrimPrefix(fragment, "#")
	fragment = strings.ReplaceAll(fragment, jsonEscapedAmp, "&")
	if end := strings.IndexByte(fragment, '"'); end != -1 {
		fragment = fragment[:end]
	}

	tok := &Token{}
	for _, part := range strings.Split(fragment, "&") {
		switch {
		case strings.HasPrefix(part, "access_token="):
			tok.AccessToken = part[len("access_token="):]
		case strings.HasPrefix(part, "expires_in="):
			if secs, err := strconv.Atoi(part[len("expires_in="):]); err == nil {
				tok.ExpiresIn = time.Duration(secs) * time.Second
			}
		}
	}
	if tok.AccessToken == "" {
		return nil, false
	}
	return tok, true
}

// ExtractorFor returns the extractor for a provider key, or nil when the
// provider is not supported.
func ExtractorFor(provider string) Extractor {
	switch provider {
	case "yandex", "":
		return YandexExtractor{}
	default:
		return nil
	}
}
