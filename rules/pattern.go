package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/webmacs/adblock/internal/ufnet"
)

// Special characters of the basic rule pattern.
const (
	// MaskStartURL anchors the pattern to the beginning of the hostname or to
	// any label boundary inside it.
	MaskStartURL = "||"
	// MaskPipe anchors the pattern to the start or the end of the URL.
	MaskPipe = "|"
	// MaskSeparator matches a separator character or the end of the URL.
	MaskSeparator = "^"
	// MaskAnyCharacter matches any number of any characters.
	MaskAnyCharacter = "*"
	// MaskRegex starts and ends a regular expression pattern.
	MaskRegex = "/"
)

// TokenKind is the kind of a pattern token.
type TokenKind uint8

// TokenKind enumeration.  The values are persisted, do not reorder.
const (
	TokenLiteral     TokenKind = iota // plain text
	TokenWildcard                     // *
	TokenSeparator                    // ^
	TokenStartAnchor                  // leading |
	TokenHostAnchor                   // leading ||
	TokenEndAnchor                    // trailing |
	TokenRegex                        // /regex/
)

// Token is a single element of a rule pattern.
type Token struct {
	// Text is the literal text for TokenLiteral and the expression source for
	// TokenRegex.  It is empty for the other kinds.
	Text string

	// Kind is the kind of the token.
	Kind TokenKind
}

// Pattern is a compiled rule pattern.  It is immutable and safe for concurrent
// use.
type Pattern struct {
	// regex is set for TokenRegex patterns only.
	regex *regexp.Regexp

	// tokens are the tokens the pattern was built from.
	tokens []Token

	// segments are the parts of the pattern between wildcards.  Each segment
	// consists of literals and separators only.
	segments [][]Token

	startAnchor bool
	hostAnchor  bool
	endAnchor   bool
}

// tokenizePattern splits the rule pattern into tokens.  Literals are lowered
// unless matchCase is true.
func tokenizePattern(pattern string, matchCase bool) (tokens []Token) {
	if isRegexPattern(pattern) {
		return []Token{{Kind: TokenRegex, Text: pattern[1 : len(pattern)-1]}}
	}

	switch {
	case strings.HasPrefix(pattern, MaskStartURL):
		tokens = append(tokens, Token{Kind: TokenHostAnchor})
		pattern = pattern[len(MaskStartURL):]
	case strings.HasPrefix(pattern, MaskPipe):
		tokens = append(tokens, Token{Kind: TokenStartAnchor})
		pattern = pattern[len(MaskPipe):]
	}

	endAnchor := false
	if strings.HasSuffix(pattern, MaskPipe) {
		endAnchor = true
		pattern = pattern[:len(pattern)-len(MaskPipe)]
	}

	var sb strings.Builder
	flush := func() {
		if sb.Len() == 0 {
			return
		}

		text := sb.String()
		if !matchCase {
			text = strings.ToLower(text)
		}

		tokens = append(tokens, Token{Kind: TokenLiteral, Text: text})
		sb.Reset()
	}

	for i := range len(pattern) {
		switch c := pattern[i]; c {
		case '*':
			flush()
			if n := len(tokens); n > 0 && tokens[n-1].Kind == TokenWildcard {
				continue
			}

			tokens = append(tokens, Token{Kind: TokenWildcard})
		case '^':
			flush()
			tokens = append(tokens, Token{Kind: TokenSeparator})
		default:
			sb.WriteByte(c)
		}
	}
	flush()

	if endAnchor {
		tokens = append(tokens, Token{Kind: TokenEndAnchor})
	}

	return tokens
}

// isRegexPattern returns true if pattern is a regular expression.
func isRegexPattern(pattern string) (ok bool) {
	return len(pattern) > len(MaskRegex)*2 &&
		strings.HasPrefix(pattern, MaskRegex) &&
		strings.HasSuffix(pattern, MaskRegex)
}

// newPattern compiles tokens into a pattern.  tokens must be built by
// tokenizePattern or restored from it, otherwise an error is returned.
func newPattern(tokens []Token, matchCase bool) (p *Pattern, err error) {
	p = &Pattern{tokens: tokens}

	if len(tokens) == 1 && tokens[0].Kind == TokenRegex {
		expr := tokens[0].Text
		if !matchCase {
			expr = "(?i)" + expr
		}

		p.regex, err = regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling regex: %w", err)
		}

		return p, nil
	}

	var seg []Token
	for i, t := range tokens {
		switch t.Kind {
		case TokenLiteral, TokenSeparator:
			seg = append(seg, t)
		case TokenWildcard:
			p.segments = append(p.segments, seg)
			seg = nil
		case TokenStartAnchor, TokenHostAnchor:
			if i != 0 {
				return nil, fmt.Errorf("token %d: start anchor in the middle of the pattern", i)
			}

			p.startAnchor = t.Kind == TokenStartAnchor
			p.hostAnchor = t.Kind == TokenHostAnchor
		case TokenEndAnchor:
			if i != len(tokens)-1 {
				return nil, fmt.Errorf("token %d: end anchor in the middle of the pattern", i)
			}

			p.endAnchor = true
		default:
			return nil, fmt.Errorf("token %d: unexpected kind %d", i, t.Kind)
		}
	}
	p.segments = append(p.segments, seg)

	return p, nil
}

// Tokens returns the tokens of the pattern.  The returned slice must not be
// modified.
func (p *Pattern) Tokens() (tokens []Token) {
	return p.tokens
}

// IsRegex returns true if p is a regular expression pattern.
func (p *Pattern) IsRegex() (ok bool) {
	return p.regex != nil
}

// Match returns true if the pattern matches url.  url must be lowered by the
// caller unless the pattern is case-sensitive.
func (p *Pattern) Match(url string) (ok bool) {
	if p.regex != nil {
		return p.regex.MatchString(url)
	}

	switch {
	case p.startAnchor:
		return p.matchAnchored(url, 0)
	case p.hostAnchor:
		start, end := ufnet.HostnameBounds(url)
		if start < 0 {
			return false
		}

		for i := start; i < end; i++ {
			if (i == start || url[i-1] == '.') && p.matchAnchored(url, i) {
				return true
			}
		}

		return false
	default:
		return p.matchFrom(url, p.segments, 0)
	}
}

// matchAnchored matches the pattern with its first segment fixed at pos.
func (p *Pattern) matchAnchored(url string, pos int) (ok bool) {
	end, ok := matchSegmentAt(url, p.segments[0], pos)
	if !ok {
		return false
	}

	if len(p.segments) == 1 {
		return !p.endAnchor || end == len(url)
	}

	return p.matchFrom(url, p.segments[1:], end)
}

// matchFrom matches segs left to right starting at pos.  Every segment may
// start anywhere at or after the end of the previous one, the leftmost
// position is taken.  The last segment must end at the end of url if the
// pattern has an end anchor.
func (p *Pattern) matchFrom(url string, segs [][]Token, pos int) (ok bool) {
	for i, seg := range segs {
		if p.endAnchor && i == len(segs)-1 {
			return matchTail(url, seg, pos)
		}

		pos, ok = findSegment(url, seg, pos)
		if !ok {
			return false
		}
	}

	return true
}

// findSegment looks for the leftmost occurrence of seg in url at or after pos
// and returns the position right after it.
func findSegment(url string, seg []Token, pos int) (end int, ok bool) {
	for start := pos; start <= len(url); start++ {
		if len(seg) > 0 && seg[0].Kind == TokenLiteral {
			idx := strings.Index(url[start:], seg[0].Text)
			if idx == -1 {
				return 0, false
			}

			start += idx
		}

		if end, ok = matchSegmentAt(url, seg, start); ok {
			return end, true
		}
	}

	return 0, false
}

// matchTail checks if seg matches url at or after pos so that it ends exactly
// at the end of url.
func matchTail(url string, seg []Token, pos int) (ok bool) {
	start := max(pos, len(url)-segmentLen(seg))
	for ; start <= len(url); start++ {
		if end, matched := matchSegmentAt(url, seg, start); matched && end == len(url) {
			return true
		}
	}

	return false
}

// segmentLen returns the maximum number of characters seg consumes.
func segmentLen(seg []Token) (n int) {
	for _, t := range seg {
		if t.Kind == TokenLiteral {
			n += len(t.Text)
		} else {
			n++
		}
	}

	return n
}

// matchSegmentAt checks if seg matches url exactly at pos and returns the
// position right after the match.
func matchSegmentAt(url string, seg []Token, pos int) (end int, ok bool) {
	for _, t := range seg {
		if t.Kind == TokenLiteral {
			if !strings.HasPrefix(url[pos:], t.Text) {
				return 0, false
			}

			pos += len(t.Text)

			continue
		}

		// A separator at the end of the URL matches the end itself.
		if pos == len(url) {
			continue
		}

		if !isSeparator(url[pos]) {
			return 0, false
		}

		pos++
	}

	return pos, true
}

// isSeparator returns true if c is matched by the ^ pattern character.
func isSeparator(c byte) (ok bool) {
	switch c {
	case '/', ':', '?', '=', '&':
		return true
	default:
		return false
	}
}

// findShortcut returns the longest literal of the pattern tokens.  Regex
// patterns have no shortcut.
func findShortcut(tokens []Token) (shortcut string) {
	for _, t := range tokens {
		if t.Kind == TokenLiteral && len(t.Text) > len(shortcut) {
			shortcut = t.Text
		}
	}

	return shortcut
}
