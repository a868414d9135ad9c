// Package markdown turns agent replies into markup that is safe to embed in
// the chat transcript.
//
// Rendering is a fixed pipeline of named stages. The order matters: code is
// pulled out first so no later stage can rewrite it, and it is put back
// (escaped) last.
//
//	protect-code  fenced and inline code moved to side tables, rest escaped
//	tables        pipe tables with an alignment row
//	blockquotes   one block per "> " line
//	links         [text](url) anchors, opening tag held in a side table
//	small-print   <small>…</small>, escaped or raw
//	inline        headers, bold, lists, rules, breaks, italics
//	restore-code  side tables substituted back
package markdown

import "strings"

// Stage is a single rewrite over the document.
type Stage struct {
	Name  string
	Apply func(d *doc)
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// doc is the intermediate form passed between stages.
type doc struct {
	text    string
	blocks  []string
	inlines []string
	anchors []string
}

var defaultPipeline = Pipeline{
	{Name: "protect-code", Apply: protectCode},
	{Name: "tables", Apply: renderTables},
	{Name: "blockquotes", Apply: renderBlockquotes},
	{Name: "links", Apply: renderLinks},
	{Name: "small-print", Apply: renderSmallPrint},
	{Name: "inline", Apply: renderInline},
	{Name: "restore-code", Apply: restoreCode},
}

// Stages returns the stage names of the default pipeline in execution order.
func Stages() []string {
	names := make([]string, 0, len(defaultPipeline))
	for _, s := range defaultPipeline {
		names = append(names, s.Name)
	}
	return names
}

// Render converts arbitrary (possibly hostile) agent text into markup.
// It never fails; anything it does not recognise comes out as escaped text.
func Render(text string) string {
	return defaultPipeline.Run(text)
}

// Run executes the pipeline over text.
func (p Pipeline) Run(text string) string {
	d := &doc{text: normalize(text)}
	for _, s := range p {
		s.Apply(d)
	}
	return d.text
}

// normalize drops NUL bytes (they delimit placeholders) and CRLF line endings.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
