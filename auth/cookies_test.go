package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bayue48/pia-scrap/model"
	"github.com/chromedp/cdproto/network"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseNetscapeCookies(t *testing.T) {
	path := writeTemp(t, "cookies.txt", `# Netscape HTTP Cookie File
# comment line

.novelpia.com	TRUE	/	TRUE	1893456000	LOGINKEY	abc123
.novelpia.com	TRUE	/	FALSE	0	USERKEY	dev-1
`)
	cookies, err := ParseNetscapeCookies(path)
	if err != nil {
		t.Fatalf("ParseNetscapeCookies: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("got %d cookies", len(cookies))
	}

	first := cookies[0]
	if first.Name != "LOGINKEY" || first.Value != "abc123" || first.Domain != ".novelpia.com" {
		t.Errorf("first cookie = %+v", first)
	}
	if !first.Secure || first.Expires == nil {
		t.Errorf("first cookie flags = %+v", first)
	}
	if cookies[1].Expires != nil {
		t.Errorf("session cookie should carry no expiry: %+v", cookies[1])
	}
}

func TestParseNetscapeCookiesEmptyIsMalformed(t *testing.T) {
	path := writeTemp(t, "cookies.txt", "# only comments\n")
	_, err := ParseNetscapeCookies(path)
	var malformed *model.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedInputError, got %v", err)
	}
}

func TestParseStorageStateObject(t *testing.T) {
	path := writeTemp(t, "state.json", `{"cookies":[
		{"name":"LOGINKEY","value":"abc","domain":".novelpia.com","path":"/","secure":true,"sameSite":"Strict","expires":1893456000}
	]}`)
	cookies, err := ParseStorageState(path)
	if err != nil {
		t.Fatalf("ParseStorageState: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "LOGINKEY" {
		t.Fatalf("cookies = %+v", cookies)
	}
	if cookies[0].SameSite != network.CookieSameSiteStrict {
		t.Errorf("sameSite = %v", cookies[0].SameSite)
	}
}

func TestParseStorageStateBareArray(t *testing.T) {
	path := writeTemp(t, "state.json", `[{"name":"USERKEY","value":"u","domain":".novelpia.com","path":"/"}]`)
	cookies, err := ParseStorageState(path)
	if err != nil {
		t.Fatalf("ParseStorageState: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "USERKEY" {
		t.Fatalf("cookies = %+v", cookies)
	}
}

func TestParseStorageStateGarbage(t *testing.T) {
	path := writeTemp(t, "state.json", "{not json")
	_, err := ParseStorageState(path)
	var malformed *model.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedInputError, got %v", err)
	}
}
