package browser

import (
	"testing"
	"time"
)

func TestYandexExtractFromRedirectURL(t *testing.T) {
	ex := YandexExtractor{}

	tok, ok := ex.ExtractFromURL("https://music.yandex.ru/#access_token=y0_abc123&token_type=bearer&expires_in=31535645")
	if !ok {
		t.Fatal("expected token in redirect URL")
	}
	if tok.AccessToken != "y0_abc123" {
		t.Fatalf("access token = %q, want %q", tok.AccessToken, "y0_abc123")
	}
	if want := 31535645 * time.Second; tok.ExpiresIn != want {
		t.Fatalf("expires in = %v, want %v", tok.ExpiresIn, want)
	}
}

func TestYandexExtractFromEscapedLogLine(t *testing.T) {
	ex := YandexExtractor{}

	// CDP event payloads JSON-escape ampersands and quote the URL. The
	// escape sequence is assembled from jsonEscapedAmp so the test feeds
	// the exact bytes the payloads carry.
	raw := `{"url":"https://music.yandex.ru/#access_token=tok42` +
		jsonEscapedAmp + `expires_in=3600","type":"Document"}`
	tok, ok := ex.ExtractFromURL(raw)
	if !ok {
		t.Fatal("expected token in escaped log line")
	}
	if tok.AccessToken != "tok42" {
		t.Fatalf("access token = %q, want %q", tok.AccessToken, "tok42")
	}
	if tok.ExpiresIn != time.Hour {
		t.Fatalf("expires in = %v, want 1h", tok.ExpiresIn)
	}
}

func TestYandexExtractNoToken(t *testing.T) {
	ex := YandexExtractor{}

	for _, raw := range []string{
		"",
		"https://oauth.yandex.ru/authorize?response_type=token&client_id=x",
		"https://passport.yandex.ru/auth?retpath=x",
		"https://music.yandex.ru/#state=abc", // fragment without a token
	} {
		if tok, ok := ex.ExtractFromURL(raw); ok {
			t.Fatalf("ExtractFromURL(%q) unexpectedly returned %+v", raw, tok)
		}
	}
}

func TestYandexExtractMissingExpiry(t *testing.T) {
	ex := YandexExtractor{}

	tok, ok := ex.ExtractFromURL("#access_token=solo")
	if !ok || tok.AccessToken != "solo" {
		t.Fatalf("ExtractFromURL = (%+v, %v)", tok, ok)
	}
	if tok.ExpiresIn != 0 {
		t.Fatalf("expires in = %v, want 0 for missing expiry", tok.ExpiresIn)
	}
}

func TestYandexTerminal(t *testing.T) {
	ex := YandexExtractor{}

	if ex.Terminal("https://oauth.yandex.ru/authorize?response_type=token") {
		t.Fatal("authorize page must not be terminal")
	}
	if !ex.Terminal("https://music.yandex.ru/#access_token=x") {
		t.Fatal("token fragment must be terminal")
	}
	if !ex.Terminal("https://music.yandex.ru/#state=done") {
		t.Fatal("non-oauth page with fragment must be terminal")
	}
}

func TestExtractorFor(t *testing.T) {
	if ex := ExtractorFor("yandex"); ex == nil || ex.Provider() != "yandex" {
		t.Fatalf("ExtractorFor(yandex) = %v", ex)
	}
	if ex := ExtractorFor(""); ex == nil {
		t.Fatal("empty provider should default to yandex")
	}
	if ex := ExtractorFor("spotify"); ex != nil {
		t.Fatalf("ExtractorFor(spotify) = %v, want nil", ex)
	}
}

func TestViewportClamp(t *testing.T) {
	vp := Viewport{Width: 1280, Height: 720}

	cases := []struct {
		x, y   float64
		wx, wy float64
	}{
		{100, 100, 100, 100},
		{-5, -5, 0, 0},
		{5000, 100, 1279, 100},
		{100, 5000, 100, 719},
	}
	for _, c := range cases {
		gx, gy := vp.Clamp(c.x, c.y)
		if gx != c.wx || gy != c.wy {
			t.Fatalf("Clamp(%v, %v) = (%v, %v), want (%v, %v)", c.x, c.y, gx, gy, c.wx, c.wy)
		}
	}
}

func TestYandexAuthURL(t *testing.T) {
	got := YandexAuthURL("")
	want := "https://oauth.yandex.ru/authorize?response_type=token&client_id=" + DefaultYandexClientID
	if got != want {
		t.Fatalf("YandexAuthURL() = %q, want %q", got, want)
	}
	if got := YandexAuthURL("custom"); got != "https://oauth.yandex.ru/authorize?response_type=token&client_id=custom" {
		t.Fatalf("YandexAuthURL(custom) = %q", got)
	}
}
