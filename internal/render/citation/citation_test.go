package citation_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lawyrs-chat/internal/render/citation"
)

func TestGenerate(t *testing.T) {
	got := citation.Generate("K.S.A. 60-513", citation.KindKansasStatute)
	want := citation.Links{
		GoogleScholar: "https://scholar.google.com/scholar?hl=en&as_sdt=4,17&q=K.S.A.+60-513",
		CourtListener: "https://www.courtlistener.com/?type=o&q=K.S.A.+60-513",
		Casetext:      "https://casetext.com/search?q=K.S.A.+60-513",
		Verify:        "/api/research/verify?citation=K.S.A.+60-513",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateIsTotalAndDeterministic(t *testing.T) {
	inputs := []string{"", "RSMo § 537.765", "a&b=c?d#e/f g", "<script>", "100%", "\x00\n"}
	for _, in := range inputs {
		first := citation.Generate(in, citation.KindCaseLaw)
		assert.Equal(t, first, citation.Generate(in, citation.KindCaseLaw))

		for _, raw := range []string{first.GoogleScholar, first.CourtListener, first.Casetext, first.Verify} {
			u, err := url.Parse(raw)
			require.NoError(t, err, "url %q", raw)
			// round trip through the query string recovers the citation
			var key string
			if strings.HasPrefix(raw, "/api/") {
				key = "citation"
			} else {
				key = "q"
			}
			assert.Equal(t, in, u.Query().Get(key))
		}
	}
}

func TestStyle(t *testing.T) {
	assert.Equal(t, "cite cite-ks", citation.Style(citation.ParseKind("KSA")))
	assert.Equal(t, "cite cite-mo", citation.Style(citation.KindMissouriStatute))
	assert.Equal(t, "cite cite-fed", citation.Style(citation.KindFederalStatute))
	assert.Equal(t, "cite cite-case", citation.Style(citation.ParseKind("case")))
	assert.Equal(t, "cite", citation.Style(citation.ParseKind("treatise")))
}

func TestBadgeEscapes(t *testing.T) {
	b := citation.Badge(`<b>"x"</b>`, citation.KindCaseLaw)
	assert.NotContains(t, b, "<b>")
	assert.Contains(t, b, "&lt;b&gt;")
	assert.Contains(t, b, `class="cite cite-case"`)
}

func TestCountAndKinds(t *testing.T) {
	text := strings.Join([]string{
		"See K.S.A. 60-513 and K.S.A. 60-258a.",
		"Missouri: RSMo § 537.765, RSMo 516.120, and again RSMo  516.120.",
		"Federal: 42 U.S.C. § 1983; 550 U.S. 544.",
		"Cases: 410 S.W.3d 1; 281 Kan. 1; 25 Kan. App. 2d 100; 555 F.3d 12.",
		"Rule: Mo. Sup. Ct. R. 55.05.",
	}, "\n")
	assert.Equal(t, 11, citation.Count(text))
	assert.Equal(t, 0, citation.Count("no authority here, 2025"))

	kinds := map[string]citation.Kind{
		"K.S.A. 60-513":         citation.KindKansasStatute,
		"RSMo 516.120":          citation.KindMissouriStatute,
		"Mo. Sup. Ct. R. 55.05": citation.KindMissouriStatute,
		"42 U.S.C. § 1983":      citation.KindFederalStatute,
		"410 S.W.3d 1":          citation.KindCaseLaw,
		"550 U.S. 544":          citation.KindCaseLaw,
	}
	for tok, want := range kinds {
		assert.Equal(t, want, citation.KindOf(tok), tok)
	}
}

func TestAnnotateWrapsTextRunsOnly(t *testing.T) {
	in := `<p>See RSMo 537.765 and 42 U.S.C. § 1983.</p>` +
		`<pre class="md-code"><code>K.S.A. 60-513</code></pre>` +
		`<code class="md-inline">K.S.A. 60-258a</code>` +
		`<a href="http://x">550 U.S. 544</a><br>`

	out := citation.Annotate(in)

	assert.Contains(t, out, citation.Badge("RSMo 537.765", citation.KindMissouriStatute))
	assert.Contains(t, out, citation.Badge("42 U.S.C. § 1983", citation.KindFederalStatute))
	assert.Contains(t, out, `<code>K.S.A. 60-513</code>`)
	assert.Contains(t, out, `<code class="md-inline">K.S.A. 60-258a</code>`)
	assert.Contains(t, out, `<a href="http://x">550 U.S. 544</a><br>`)
	assert.Equal(t, 2, strings.Count(out, `<span class="cite`))
}

func TestAnnotateWithoutCitationsIsIdentity(t *testing.T) {
	in := "<p>Nothing to cite &amp; nothing to link.</p>"
	assert.Equal(t, in, citation.Annotate(in))
}
