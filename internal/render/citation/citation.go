// Package citation builds lookup links for legal citations found in agent
// replies and marks them up in rendered text. It makes no network calls.
package citation

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

// Kind is the type tag attached to a citation token.
type Kind string

const (
	KindKansasStatute   Kind = "ks_statute"
	KindMissouriStatute Kind = "mo_statute"
	KindFederalStatute  Kind = "federal_statute"
	KindCaseLaw         Kind = "case_law"
)

// ParseKind accepts the backend's tag spellings; anything else is returned
// as-is and styled with the default.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ks_statute", "kansas_statute", "ksa":
		return KindKansasStatute
	case "mo_statute", "missouri_statute", "rsmo":
		return KindMissouriStatute
	case "federal_statute", "usc", "federal":
		return KindFederalStatute
	case "case_law", "case", "caselaw":
		return KindCaseLaw
	}
	return Kind(s)
}

// Links is the fixed set of lookup URLs for one citation.
type Links struct {
	GoogleScholar string `json:"google_scholar"`
	CourtListener string `json:"courtlistener"`
	Casetext      string `json:"casetext"`
	Verify        string `json:"verify"`
}

const (
	scholarBase       = "https://scholar.google.com/scholar?hl=en&as_sdt=4,17&q="
	courtListenerBase = "https://www.courtlistener.com/?type=o&q="
	casetextBase      = "https://casetext.com/search?q="
	verifyPath        = "/api/research/verify?citation="
)

// Generate returns the lookup URLs for cite. The kind does not change the
// URLs, only how the citation is styled.
func Generate(cite string, kind Kind) Links {
	q := url.QueryEscape(cite)
	return Links{
		GoogleScholar: scholarBase + q,
		CourtListener: courtListenerBase + q,
		Casetext:      casetextBase + q,
		Verify:        verifyPath + q,
	}
}

// Style is the CSS class for a citation of the given kind.
func Style(kind Kind) string {
	switch kind {
	case KindKansasStatute:
		return "cite cite-ks"
	case KindMissouriStatute:
		return "cite cite-mo"
	case KindFederalStatute:
		return "cite cite-fed"
	case KindCaseLaw:
		return "cite cite-case"
	default:
		return "cite"
	}
}

// Badge renders the citation token with its links as a markup fragment.
func Badge(cite string, kind Kind) string {
	l := Generate(cite, kind)
	esc := html.EscapeString
	return fmt.Sprintf(
		`<span class="%s">%s <a href="%s" target="_blank" rel="noopener noreferrer">Scholar</a> `+
			`<a href="%s" target="_blank" rel="noopener noreferrer">CourtListener</a> `+
			`<a href="%s" target="_blank" rel="noopener noreferrer">Casetext</a> `+
			`<a href="%s" data-verify="true">Verify</a></span>`,
		Style(kind), esc(cite),
		esc(l.GoogleScholar), esc(l.CourtListener), esc(l.Casetext), esc(l.Verify),
	)
}
