// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package xmlstream implements a pull-mode XML lexer producing a token
// stream (BeginElement, EndElement, Text, EndDocument) with namespace
// resolution, the way internal/protocol/reader.go walks a binary frame
// one field at a time rather than materializing the whole structure
// up front.
package xmlstream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
)

// QName is a qualified name: a local name plus an optional resolved
// namespace URI and the prefix it was written with.
type QName struct {
	Local     string
	Namespace string
	Prefix    string
}

func (q QName) String() string {
	if q.Prefix != "" {
		return q.Prefix + ":" + q.Local
	}
	return q.Local
}

// Namespace is one xmlns/xmlns:prefix declaration stripped off an
// element's attribute map.
type Namespace struct {
	URI    string
	Prefix string // empty for the default namespace
}

// TokenKind discriminates the XmlToken tagged variants.
type TokenKind int

const (
	BeginElement TokenKind = iota
	EndElement
	Text
	EndDocument
)

func (k TokenKind) String() string {
	switch k {
	case BeginElement:
		return "BeginElement"
	case EndElement:
		return "EndElement"
	case Text:
		return "Text"
	case EndDocument:
		return "EndDocument"
	default:
		return "Unknown"
	}
}

// Token is the tagged union of the lexer's four token kinds. Fields not
// relevant to Kind are zero-valued.
type Token struct {
	Kind           TokenKind
	Depth          int
	Name           QName
	Attributes     map[QName]string
	NsDeclarations []Namespace
	Text           string
}

type elementFrame struct {
	name     QName
	depth    int
	prefixes map[string]string // prefix -> uri, scoped to this element and its descendants
	hadChild bool
}

// Lexer is a pull-mode tokenizer over a whole in-memory XML document.
// It keeps a small bounded peek queue rather than materializing a DOM.
type Lexer struct {
	input string
	pos   int
	depth int
	stack []elementFrame

	// pendingEnd, when non-nil, is an EndElement token to emit before
	// continuing to scan, used to desugar self-closing tags into
	// BeginElement immediately followed by EndElement at the same depth.
	pendingEnd *Token

	peeked []Token
	done   bool

	defaultNS []string // stack of default namespace URIs in scope
}

// New constructs a Lexer over the given well-formed XML 1.0 document.
func New(input string) *Lexer {
	return &Lexer{input: input, defaultNS: []string{""}}
}

func (l *Lexer) errAt(pos int, format string, args ...any) error {
	snippet, caret := cursorSnippet(l.input, pos)
	msg := fmt.Sprintf(format, args...)
	return sdkerrors.NewDeserializationException(
		fmt.Sprintf("%s at offset %d:\n%s\n%s", msg, pos, snippet, caret), nil)
}

func cursorSnippet(input string, pos int) (string, string) {
	start := pos - 20
	if start < 0 {
		start = 0
	}
	end := pos + 20
	if end > len(input) {
		end = len(input)
	}
	snippet := input[start:end]
	caret := strings.Repeat(" ", pos-start) + "^"
	return snippet, caret
}

// NextToken returns the next token in document order.
func (l *Lexer) NextToken() (Token, error) {
	if len(l.peeked) > 0 {
		t := l.peeked[0]
		l.peeked = l.peeked[1:]
		return t, nil
	}
	return l.advance()
}

// Peek returns the token lookahead positions ahead (lookahead >= 1)
// without consuming it.
func (l *Lexer) Peek(lookahead int) (Token, error) {
	if lookahead < 1 {
		return Token{}, sdkerrors.NewClientException("lookahead must be >= 1", nil)
	}
	for len(l.peeked) < lookahead {
		t, err := l.advance()
		if err != nil {
			return Token{}, err
		}
		l.peeked = append(l.peeked, t)
	}
	return l.peeked[lookahead-1], nil
}

// advance produces the next raw token, bypassing the peek queue.
func (l *Lexer) advance() (Token, error) {
	if l.pendingEnd != nil {
		t := *l.pendingEnd
		l.pendingEnd = nil
		return t, nil
	}
	if l.done {
		return Token{Kind: EndDocument}, nil
	}

	l.skipMisc()

	if l.pos >= len(l.input) {
		if len(l.stack) != 0 {
			return Token{}, l.errAt(l.pos, "unexpected end of document, unclosed element %q", l.stack[len(l.stack)-1].name)
		}
		l.done = true
		return Token{Kind: EndDocument}, nil
	}

	if l.input[l.pos] != '<' || strings.HasPrefix(l.input[l.pos:], "<![CDATA[") {
		return l.lexText()
	}

	if strings.HasPrefix(l.input[l.pos:], "</") {
		return l.lexEndTag()
	}

	return l.lexStartTag()
}

// skipMisc consumes processing instructions, comments, and the XML
// declaration, which are parsed but ignored.
func (l *Lexer) skipMisc() {
	for {
		rest := l.input[l.pos:]
		switch {
		case strings.HasPrefix(rest, "<?"):
			if i := strings.Index(rest, "?>"); i >= 0 {
				l.pos += i + 2
				continue
			}
		case strings.HasPrefix(rest, "<!--"):
			if i := strings.Index(rest, "-->"); i >= 0 {
				l.pos += i + 3
				continue
			}
		default:
			// Skip leading whitespace before the root element only;
			// interior whitespace-only text is handled by lexText.
			if len(l.stack) == 0 {
				n := 0
				for n < len(rest) && isXMLSpace(rest[n]) {
					n++
				}
				if n > 0 {
					l.pos += n
					continue
				}
			}
		}
		return
	}
}

func isXMLSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (l *Lexer) lexText() (Token, error) {
	depth := l.depth
	var sb strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != '<' {
		if strings.HasPrefix(l.input[l.pos:], "&") {
			decoded, newPos, err := decodeReference(l.input, l.pos)
			if err != nil {
				return Token{}, l.errAt(l.pos, "%s", err.Error())
			}
			sb.WriteString(decoded)
			l.pos = newPos
			continue
		}
		sb.WriteByte(l.input[l.pos])
		l.pos++
	}
	if l.pos < len(l.input) && strings.HasPrefix(l.input[l.pos:], "<![CDATA[") {
		end := strings.Index(l.input[l.pos:], "]]>")
		if end < 0 {
			return Token{}, l.errAt(l.pos, "unterminated CDATA section")
		}
		sb.WriteString(l.input[l.pos+len("<![CDATA[") : l.pos+end])
		l.pos += end + len("]]>")
		// A CDATA section may be followed by more text; recurse by
		// reading any subsequent text/CDATA runs into the same token.
		more, err := l.lexText()
		if err != nil {
			return Token{}, err
		}
		if more.Kind == Text {
			sb.WriteString(more.Text)
		} else {
			// Only text/CDATA can legally follow; if the recursive call
			// produced something else (e.g. reached '<' of a tag) just
			// fall through: advance() handles it on the next call since
			// we've only consumed the CDATA itself above. Undo is not
			// needed because lexText's only non-Text outcome is an
			// immediate return with pos unchanged.
		}
		return Token{Kind: Text, Depth: depth, Text: sb.String()}, nil
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" && text != "" {
		// Whitespace-only text between child elements is dropped unless
		// it is the only child of the tag (no intervening child element
		// has been seen yet and the next thing is an end tag).
		if l.nextIsEndTagOfCurrent() && !l.sawChildElement() {
			return Token{Kind: Text, Depth: depth, Text: text}, nil
		}
		return l.advance()
	}
	return Token{Kind: Text, Depth: depth, Text: text}, nil
}

func (l *Lexer) nextIsEndTagOfCurrent() bool {
	return l.pos < len(l.input) && strings.HasPrefix(l.input[l.pos:], "</")
}

func (l *Lexer) sawChildElement() bool {
	if len(l.stack) == 0 {
		return false
	}
	return l.stack[len(l.stack)-1].hadChild
}

func decodeReference(s string, pos int) (string, int, error) {
	if s[pos] != '&' {
		return "", pos, fmt.Errorf("not a reference")
	}
	end := strings.IndexByte(s[pos:], ';')
	if end < 0 {
		return "", pos, fmt.Errorf("unterminated character reference")
	}
	end += pos
	body := s[pos+1 : end]
	switch body {
	case "lt":
		return "<", end + 1, nil
	case "gt":
		return ">", end + 1, nil
	case "amp":
		return "&", end + 1, nil
	case "apos":
		return "'", end + 1, nil
	case "quot":
		return "\"", end + 1, nil
	}
	if strings.HasPrefix(body, "#x") || strings.HasPrefix(body, "#X") {
		v, err := strconv.ParseInt(body[2:], 16, 32)
		if err != nil {
			return "", pos, fmt.Errorf("invalid hex character reference %q", body)
		}
		return string(rune(v)), end + 1, nil
	}
	if strings.HasPrefix(body, "#") {
		v, err := strconv.ParseInt(body[1:], 10, 32)
		if err != nil {
			return "", pos, fmt.Errorf("invalid decimal character reference %q", body)
		}
		return string(rune(v)), end + 1, nil
	}
	return "", pos, fmt.Errorf("unknown entity reference %q", body)
}

func isNameStart(c byte) bool {
	return c == '_' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (l *Lexer) lexName() (string, error) {
	start := l.pos
	if l.pos >= len(l.input) || !isNameStart(l.input[l.pos]) {
		return "", l.errAt(l.pos, "expected name")
	}
	l.pos++
	for l.pos < len(l.input) && isNameChar(l.input[l.pos]) {
		l.pos++
	}
	return l.input[start:l.pos], nil
}

func (l *Lexer) lexStartTag() (Token, error) {
	l.pos++ // consume '<'
	rawName, err := l.lexName()
	if err != nil {
		return Token{}, err
	}

	attrOrder := []string{}
	rawAttrs := map[string]string{}
	for {
		l.skipWhitespace()
		if l.pos < len(l.input) && (l.input[l.pos] == '/' || l.input[l.pos] == '>') {
			break
		}
		if l.pos >= len(l.input) {
			return Token{}, l.errAt(l.pos, "unexpected end of document inside start tag")
		}
		aname, err := l.lexName()
		if err != nil {
			return Token{}, err
		}
		l.skipWhitespace()
		if l.pos >= len(l.input) || l.input[l.pos] != '=' {
			return Token{}, l.errAt(l.pos, "expected '=' after attribute name %q", aname)
		}
		l.pos++
		l.skipWhitespace()
		aval, err := l.lexAttrValue()
		if err != nil {
			return Token{}, err
		}
		attrOrder = append(attrOrder, aname)
		rawAttrs[aname] = aval
	}

	selfClosing := false
	if l.pos < len(l.input) && l.input[l.pos] == '/' {
		selfClosing = true
		l.pos++
	}
	if l.pos >= len(l.input) || l.input[l.pos] != '>' {
		return Token{}, l.errAt(l.pos, "expected '>' to close start tag %q", rawName)
	}
	l.pos++

	// Separate namespace declarations from regular attributes.
	var nsDecls []Namespace
	prefixes := map[string]string{}
	defaultNS := l.currentDefaultNS()
	for _, aname := range attrOrder {
		switch {
		case aname == "xmlns":
			defaultNS = rawAttrs[aname]
			nsDecls = append(nsDecls, Namespace{URI: rawAttrs[aname], Prefix: ""})
		case strings.HasPrefix(aname, "xmlns:"):
			prefix := aname[len("xmlns:"):]
			prefixes[prefix] = rawAttrs[aname]
			nsDecls = append(nsDecls, Namespace{URI: rawAttrs[aname], Prefix: prefix})
		}
	}

	name := l.resolveQName(rawName, defaultNS, prefixes)

	attrs := map[QName]string{}
	for _, aname := range attrOrder {
		if aname == "xmlns" || strings.HasPrefix(aname, "xmlns:") {
			continue
		}
		// Unprefixed attributes never inherit the default namespace.
		aq := l.resolveAttrQName(aname, prefixes)
		attrs[aq] = rawAttrs[aname]
	}

	l.depth++
	if len(l.stack) > 0 {
		l.stack[len(l.stack)-1].hadChild = true
	}
	frame := elementFrame{name: name, depth: l.depth, prefixes: mergePrefixes(l.currentPrefixes(), prefixes)}
	l.stack = append(l.stack, frame)
	l.defaultNS = append(l.defaultNS, defaultNS)

	tok := Token{Kind: BeginElement, Depth: l.depth, Name: name, Attributes: attrs, NsDeclarations: nsDecls}

	if selfClosing {
		end := Token{Kind: EndElement, Depth: l.depth, Name: name}
		l.popElement()
		l.pendingEnd = &end
	}

	return tok, nil
}

func (l *Lexer) currentDefaultNS() string {
	return l.defaultNS[len(l.defaultNS)-1]
}

func (l *Lexer) currentPrefixes() map[string]string {
	if len(l.stack) == 0 {
		return map[string]string{}
	}
	return l.stack[len(l.stack)-1].prefixes
}

func mergePrefixes(outer, inner map[string]string) map[string]string {
	merged := map[string]string{}
	for k, v := range outer {
		merged[k] = v
	}
	for k, v := range inner {
		merged[k] = v
	}
	return merged
}

func (l *Lexer) resolveQName(raw, defaultNS string, newPrefixes map[string]string) QName {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		prefix, local := raw[:i], raw[i+1:]
		uri := newPrefixes[prefix]
		if uri == "" {
			uri = l.currentPrefixes()[prefix]
		}
		return QName{Local: local, Namespace: uri, Prefix: prefix}
	}
	return QName{Local: raw, Namespace: defaultNS}
}

func (l *Lexer) resolveAttrQName(raw string, newPrefixes map[string]string) QName {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		prefix, local := raw[:i], raw[i+1:]
		uri := newPrefixes[prefix]
		if uri == "" {
			uri = l.currentPrefixes()[prefix]
		}
		return QName{Local: local, Namespace: uri, Prefix: prefix}
	}
	return QName{Local: raw}
}

func (l *Lexer) popElement() {
	l.stack = l.stack[:len(l.stack)-1]
	l.defaultNS = l.defaultNS[:len(l.defaultNS)-1]
	l.depth--
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && isXMLSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) lexAttrValue() (string, error) {
	if l.pos >= len(l.input) || (l.input[l.pos] != '"' && l.input[l.pos] != '\'') {
		return "", l.errAt(l.pos, "expected quoted attribute value")
	}
	quote := l.input[l.pos]
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != quote {
		if l.input[l.pos] == '&' {
			decoded, newPos, err := decodeReference(l.input, l.pos)
			if err != nil {
				return "", l.errAt(l.pos, "%s", err.Error())
			}
			sb.WriteString(decoded)
			l.pos = newPos
			continue
		}
		sb.WriteByte(l.input[l.pos])
		l.pos++
	}
	if l.pos >= len(l.input) {
		return "", l.errAt(l.pos, "unterminated attribute value")
	}
	l.pos++ // closing quote
	return sb.String(), nil
}

func (l *Lexer) lexEndTag() (Token, error) {
	startPos := l.pos
	l.pos += 2 // consume '</'
	rawName, err := l.lexName()
	if err != nil {
		return Token{}, err
	}
	l.skipWhitespace()
	if l.pos >= len(l.input) || l.input[l.pos] != '>' {
		return Token{}, l.errAt(l.pos, "expected '>' to close end tag %q", rawName)
	}
	l.pos++

	if len(l.stack) == 0 {
		return Token{}, l.errAt(startPos, "unexpected end tag %q with no open element", rawName)
	}
	top := l.stack[len(l.stack)-1]
	closingName := l.resolveQName(rawName, l.currentDefaultNSForEnd(), map[string]string{})
	if closingName.Local != top.name.Local || closingName.Prefix != top.name.Prefix {
		return Token{}, l.errAt(startPos, "mismatched end tag: expected %q, got %q", top.name, rawName)
	}

	tok := Token{Kind: EndElement, Depth: top.depth, Name: top.name}
	l.popElement()
	return tok, nil
}

func (l *Lexer) currentDefaultNSForEnd() string {
	if len(l.defaultNS) < 2 {
		return ""
	}
	return l.defaultNS[len(l.defaultNS)-2]
}

// SkipNext consumes the next token and, if it is a BeginElement, every
// token up to and including its matching EndElement.
func (l *Lexer) SkipNext() error {
	t, err := l.NextToken()
	if err != nil {
		return err
	}
	if t.Kind != BeginElement {
		return nil
	}
	return l.skipToMatchingEnd(t.Depth)
}

// SkipCurrent is the same as SkipNext, applied to the last-returned
// token (i.e. a BeginElement the caller already consumed via NextToken).
func (l *Lexer) SkipCurrent(last Token) error {
	if last.Kind != BeginElement {
		return nil
	}
	return l.skipToMatchingEnd(last.Depth)
}

func (l *Lexer) skipToMatchingEnd(depth int) error {
	for {
		t, err := l.NextToken()
		if err != nil {
			return err
		}
		if t.Kind == EndDocument {
			return l.errAt(l.pos, "reached end of document while skipping subtree at depth %d", depth)
		}
		if t.Kind == EndElement && t.Depth == depth {
			return nil
		}
	}
}

// SubtreeStart selects whether SubtreeReader begins at the token
// already consumed (CURRENT) or expects NextToken to yield the child
// BeginElement first (CHILD).
type SubtreeStart int

const (
	Current SubtreeStart = iota
	Child
)

// SubtreeReader yields tokens bounded to a single element's subtree,
// terminating with an EndDocument-shaped sentinel once the subtree's
// matching EndElement has been consumed.
type SubtreeReader struct {
	lexer     *Lexer
	baseDepth int
	finished  bool
}

// SubtreeReader constructs a reader scoped to the current subtree. With
// start == Current, root is the BeginElement already returned by
// NextToken; with start == Child, the next token is read and used as root.
func (l *Lexer) SubtreeReader(start SubtreeStart, root Token) (*SubtreeReader, error) {
	if start == Child {
		t, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		root = t
	}
	if root.Kind != BeginElement {
		return nil, sdkerrors.NewClientException("SubtreeReader requires a BeginElement root", nil)
	}
	return &SubtreeReader{lexer: l, baseDepth: root.Depth}, nil
}

// NextToken returns the next token within the subtree, or an
// EndDocument-kind sentinel once the subtree has closed.
func (r *SubtreeReader) NextToken() (Token, error) {
	if r.finished {
		return Token{Kind: EndDocument}, nil
	}
	t, err := r.lexer.NextToken()
	if err != nil {
		return Token{}, err
	}
	if t.Kind == EndElement && t.Depth == r.baseDepth {
		r.finished = true
	}
	return t, nil
}
