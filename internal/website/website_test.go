package website

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/config"
)

const homepage = `<!doctype html>
<html><head>
<title>  Acme Plumbing | Austin TX </title>
<meta name="Description" content="Family-owned plumbing since 1982.">
</head><body>
<p>Welcome to Acme.</p>
<a href="https://www.linkedin.com/company/acme-plumbing">LinkedIn</a>
<a href="https://www.linkedin.com/company/second-one">ignored</a>
<a href="//facebook.com/acmeplumbing">Facebook</a>
<a href="https://instagram.com/acme.plumbing">IG</a>
<a href="https://www.fox.com/news">News</a>
<a href="https://x.com/acmeplumb">X</a>
</body></html>`

func testFetcher() *Fetcher {
	return NewFetcher(config.WebsiteConfig{TimeoutSecs: 2})
}

func TestEnrich_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(homepage))
	}))
	defer srv.Close()

	res, err := testFetcher().Enrich(context.Background(), srv.URL, "Acme Plumbing")
	require.NoError(t, err)

	assert.Equal(t, srv.URL, res.URL)
	assert.Equal(t, "Acme Plumbing | Austin TX", res.Title)
	assert.Equal(t, "https://www.linkedin.com/company/acme-plumbing", res.Links.LinkedIn)
	assert.Equal(t, "https://facebook.com/acmeplumbing", res.Links.Facebook)
	assert.Equal(t, "https://instagram.com/acme.plumbing", res.Links.Instagram)
	assert.Equal(t, "https://x.com/acmeplumb", res.Links.Twitter)
	assert.Equal(t, "Acme Plumbing: Family-owned plumbing since 1982.", res.Brief)
}

func TestEnrich_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Enrich(context.Background(), srv.URL, "Acme")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "HTTP 404", fe.Reason)
}

func TestEnrich_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("cf-ray", "abc123")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html>Just a moment...</html>"))
	}))
	defer srv.Close()

	_, err := testFetcher().Enrich(context.Background(), srv.URL, "Acme")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Blocked (cloudflare)", fe.Reason)
}

func TestEnrich_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := testFetcher().WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond})
	_, err := f.Enrich(context.Background(), srv.URL, "Acme")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Timeout", fe.Reason)
}

func TestEnrich_BlankURL(t *testing.T) {
	_, err := testFetcher().Enrich(context.Background(), "  ", "Acme")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "No website URL", fe.Reason)
}

func TestExtract_ParagraphFallback(t *testing.T) {
	long := strings.Repeat("word ", 100)
	res, err := Extract([]byte(`<html><head><title>T</title></head><body><p>`+long+`</p></body></html>`), "Beta")
	require.NoError(t, err)

	assert.Len(t, []rune(res.Description), maxParagraph)
	assert.True(t, strings.HasPrefix(res.Brief, "Beta: word word"))
	assert.Len(t, []rune(strings.TrimPrefix(res.Brief, "Beta: ")), maxDescription)
}

func TestExtract_TitleFallback(t *testing.T) {
	res, err := Extract([]byte(`<html><head><title>Beta Co</title></head><body></body></html>`), "Beta")
	require.NoError(t, err)
	assert.Equal(t, "Beta - Beta Co", res.Brief)
	assert.Equal(t, Links{}, res.Links)
}

func TestBrief_NameOnly(t *testing.T) {
	assert.Equal(t, "Gamma", Brief(" Gamma ", "", "   "))
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://acme.com", NormalizeURL(" acme.com "))
	assert.Equal(t, "http://acme.com", NormalizeURL("http://acme.com"))
	assert.Equal(t, "HTTPS://ACME.COM", NormalizeURL("HTTPS://ACME.COM"))
	assert.Equal(t, "", NormalizeURL(""))
}

func TestDetectBlock(t *testing.T) {
	ok := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}

	blocked, kind := DetectBlock(ok, []byte("<html>Checking your browser before accessing</html>"))
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, kind)

	blocked, kind = DetectBlock(ok, []byte(`<div class="g-recaptcha"></div>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, kind)

	big := strings.Repeat("<p>content</p>", 1000) + `<div class="g-recaptcha"></div>`
	blocked, _ = DetectBlock(ok, []byte(big))
	assert.False(t, blocked)

	blocked, _ = DetectBlock(nil, nil)
	assert.False(t, blocked)
}

func TestReason_TruncatesOnRunes(t *testing.T) {
	msg := strings.Repeat("a", 49) + "éééé"
	got := reason(errors.New(msg))

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Request failed: "+strings.Repeat("a", 49)+"é", got)
}
