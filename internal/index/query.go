package index

import (
	"strings"
)

// The search box accepts a small query grammar: bare terms (implicit AND),
// quoted phrases, the boolean operators AND / OR / NOT, field-scoped terms
// (title:go, tags:"deep work"), and trailing-* prefix wildcards. rewriteQuery
// translates it into an FTS5 MATCH expression with every term quoted, so
// user input can never inject FTS5 syntax. Anything the grammar cannot make
// sense of degrades to the bare-terms interpretation instead of erroring:
// search boxes receive arbitrary input.

type queryToken struct {
	field  string // "title" or "tags", empty for unscoped
	text   string
	prefix bool   // trailing-* wildcard
	op     string // "AND", "OR", "NOT"; empty for terms
}

// rewriteQuery converts a user query to an FTS5 MATCH string. ok is false
// when the input does not scan as the grammar (unterminated quote, dangling
// operator); callers then use fallbackQuery.
func rewriteQuery(q string) (match string, ok bool) {
	tokens, ok := scanQuery(q)
	if !ok || len(tokens) == 0 {
		return "", false
	}

	var parts []string
	prevTerm := false
	for i, t := range tokens {
		if t.op != "" {
			// Operators are infix only; NOT additionally may not trail.
			if i == 0 || i == len(tokens)-1 || tokens[i-1].op != "" {
				return "", false
			}
			parts = append(parts, t.op)
			prevTerm = false
			continue
		}
		if prevTerm {
			parts = append(parts, "AND")
		}
		parts = append(parts, renderTerm(t))
		prevTerm = true
	}
	return strings.Join(parts, " "), true
}

// fallbackQuery is the bare-terms interpretation: every whitespace-separated
// token stripped of grammar characters and quoted, joined by implicit AND.
func fallbackQuery(q string) string {
	var parts []string
	for _, w := range strings.Fields(q) {
		w = strings.Trim(w, `"'()*:`)
		if i := strings.Index(w, ":"); i >= 0 {
			w = w[i+1:]
		}
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		parts = append(parts, `"`+w+`"`)
	}
	return strings.Join(parts, " ")
}

// queryTerms returns the plain lowercase search terms of a query, for the
// LIKE-based search used when FTS5 is not compiled in.
func queryTerms(q string) []string {
	var out []string
	tokens, ok := scanQuery(q)
	if !ok {
		for _, w := range strings.Fields(q) {
			if w = strings.Trim(w, `"'()*:`); w != "" {
				out = append(out, strings.ToLower(w))
			}
		}
		return out
	}
	for _, t := range tokens {
		if t.op == "" && t.text != "" {
			out = append(out, strings.ToLower(t.text))
		}
	}
	return out
}

func renderTerm(t queryToken) string {
	s := `"` + strings.ReplaceAll(t.text, `"`, `""`) + `"`
	if t.prefix {
		s += "*"
	}
	if t.field != "" {
		s = t.field + ":" + s
	}
	return s
}

func scanQuery(q string) ([]queryToken, bool) {
	var tokens []queryToken
	i := 0
	for i < len(q) {
		switch {
		case q[i] == ' ' || q[i] == '\t' || q[i] == '\n':
			i++
		case q[i] == '"':
			text, next, ok := scanPhrase(q, i)
			if !ok {
				return nil, false
			}
			if text != "" {
				tokens = append(tokens, queryToken{text: text})
			}
			i = next
		default:
			tok, next, ok := scanWord(q, i)
			if !ok {
				return nil, false
			}
			if tok.op != "" || tok.text != "" {
				tokens = append(tokens, tok)
			}
			i = next
		}
	}
	return tokens, true
}

// scanPhrase reads a double-quoted phrase starting at q[start] == '"'.
func scanPhrase(q string, start int) (text string, next int, ok bool) {
	end := strings.IndexByte(q[start+1:], '"')
	if end < 0 {
		return "", 0, false
	}
	end += start + 1
	return strings.TrimSpace(q[start+1 : end]), end + 1, true
}

func scanWord(q string, start int) (queryToken, int, bool) {
	end := start
	for end < len(q) && q[end] != ' ' && q[end] != '\t' && q[end] != '\n' && q[end] != '"' {
		end++
	}
	word := q[start:end]

	switch word {
	case "AND", "OR", "NOT":
		return queryToken{op: word}, end, true
	}

	var tok queryToken
	if rest, found := strings.CutPrefix(word, "title:"); found {
		tok.field, word = "title", rest
	} else if rest, found := strings.CutPrefix(word, "tags:"); found {
		tok.field, word = "tags", rest
	}

	// Field-scoped phrase: title:"deep work". The quote opens right after
	// the colon and may span further input.
	if word == "" && tok.field != "" && end < len(q) && q[end] == '"' {
		text, next, ok := scanPhrase(q, end)
		if !ok {
			return queryToken{}, 0, false
		}
		tok.text = text
		return tok, next, true
	}

	if strings.HasSuffix(word, "*") {
		tok.prefix = true
		word = strings.TrimRight(word, "*")
	}
	// Interior stars and stray quotes are not part of the grammar.
	if strings.ContainsAny(word, `*"`) {
		return queryToken{}, 0, false
	}
	tok.text = word
	return tok, end, true
}
