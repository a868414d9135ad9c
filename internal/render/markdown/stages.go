package markdown

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	blockMark  = "\x00B"
	inlineMark = "\x00I"
	anchorMark = "\x00A"
	markEnd    = "\x00"
)

var (
	fenceRe      = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_+#.-]*[ \t]*\n)?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	blockPhRe    = regexp.MustCompile("\x00B(\\d+)\x00")
	inlinePhRe   = regexp.MustCompile("\x00I(\\d+)\x00")
	anchorPhRe   = regexp.MustCompile("\x00A(\\d+)\x00")
)

func placeholder(mark string, i int) string {
	return mark + strconv.Itoa(i) + markEnd
}

// protectCode moves code into side tables and escapes everything else.
func protectCode(d *doc) {
	d.text = fenceRe.ReplaceAllStringFunc(d.text, func(m string) string {
		code := fenceRe.FindStringSubmatch(m)[1]
		d.blocks = append(d.blocks, code)
		return placeholder(blockMark, len(d.blocks)-1)
	})
	d.text = inlineCodeRe.ReplaceAllStringFunc(d.text, func(m string) string {
		code := inlineCodeRe.FindStringSubmatch(m)[1]
		d.inlines = append(d.inlines, code)
		return placeholder(inlineMark, len(d.inlines)-1)
	})
	d.text = html.EscapeString(d.text)
}

var blockquoteRe = regexp.MustCompile(`(?m)^&gt; ?(.*)$`)

func renderBlockquotes(d *doc) {
	d.text = blockquoteRe.ReplaceAllString(d.text, `<blockquote class="md-quote">$1</blockquote>`)
}

var linkRe = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)

// renderLinks keeps the opening tag in a side table so the inline stage
// cannot rewrite the URL. The label stays in the text and is formatted.
func renderLinks(d *doc) {
	d.text = linkRe.ReplaceAllStringFunc(d.text, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		label, href := sub[1], sub[2]
		if !safeHref(html.UnescapeString(href)) {
			return label
		}
		d.anchors = append(d.anchors, fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">`, href))
		return placeholder(anchorMark, len(d.anchors)-1) + label + "</a>"
	})
}

// safeHref allows absolute http(s)/mailto links and relative paths.
func safeHref(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	case "":
		return u.Opaque == "" && !strings.Contains(raw, ":")
	}
	return false
}

var (
	smallEscapedRe = regexp.MustCompile(`(?s)&amp;lt;small&amp;gt;(.*?)&amp;lt;/small&amp;gt;`)
	smallRawRe     = regexp.MustCompile(`(?s)&lt;small&gt;(.*?)&lt;/small&gt;`)
)

// renderSmallPrint handles text that arrived already escaped before text
// that arrived raw; both are escaped by now, once and twice respectively.
func renderSmallPrint(d *doc) {
	const repl = `<div class="md-small">$1</div>`
	d.text = smallEscapedRe.ReplaceAllString(d.text, repl)
	d.text = smallRawRe.ReplaceAllString(d.text, repl)
}

type rule struct {
	re   *regexp.Regexp
	repl string
}

var inlineRules = []rule{
	{regexp.MustCompile(`(?m)^## (.+)$`), `<h2 class="md-h2">$1</h2>`},
	{regexp.MustCompile(`(?m)^### (.+)$`), `<h3 class="md-h3">$1</h3>`},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), `<strong>$1</strong>`},
	{regexp.MustCompile(`(?m)^[-*] \[ \] (.+)$`), `<div class="md-check"><span class="md-box"></span>$1</div>`},
	{regexp.MustCompile(`(?m)^[-*] (.+)$`), `<li class="md-li">$1</li>`},
	{regexp.MustCompile(`(?m)^(\d+)\. (.+)$`), `<li class="md-li md-num" value="$1">$2</li>`},
	{regexp.MustCompile(`(?m)^-{3,}[ \t]*$`), `<hr class="md-hr">`},
	{regexp.MustCompile(`\n{2,}`), `<div class="md-gap"></div>`},
	{regexp.MustCompile("(</h2>|</h3>|</li>|</div>|</blockquote>|</table>|<hr class=\"md-hr\">|\x00B\\d+\x00)\n"), `$1`},
	{regexp.MustCompile(`\n`), `<br>`},
	{regexp.MustCompile(`\*([^*\n]+)\*`), `<em>$1</em>`},
}

// renderInline applies the line-level markdown rules. Bold runs before
// italics so "**x**" is never split by the single-star rule.
func renderInline(d *doc) {
	for _, r := range inlineRules {
		d.text = r.re.ReplaceAllString(d.text, r.repl)
	}
}

// restoreCode escapes code at substitution time, never earlier. Anchor
// tags were built escaped and go back as they are.
func restoreCode(d *doc) {
	d.text = anchorPhRe.ReplaceAllStringFunc(d.text, func(m string) string {
		tag, _ := lookup(d.anchors, anchorPhRe.FindStringSubmatch(m)[1])
		return tag
	})
	d.text = blockPhRe.ReplaceAllStringFunc(d.text, func(m string) string {
		code, ok := lookup(d.blocks, blockPhRe.FindStringSubmatch(m)[1])
		if !ok {
			return ""
		}
		class := "md-code"
		if t := strings.TrimSpace(code); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
			class += " md-code-json"
		}
		return fmt.Sprintf(`<pre class="%s"><code>%s</code></pre>`, class, html.EscapeString(strings.TrimRight(code, "\n")))
	})
	d.text = inlinePhRe.ReplaceAllStringFunc(d.text, func(m string) string {
		code, ok := lookup(d.inlines, inlinePhRe.FindStringSubmatch(m)[1])
		if !ok {
			return ""
		}
		return `<code class="md-inline">` + html.EscapeString(code) + `</code>`
	})
}

func lookup(table []string, idx string) (string, bool) {
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(table) {
		return "", false
	}
	return table[i], true
}
