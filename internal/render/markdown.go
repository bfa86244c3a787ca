// Package render turns article Markdown into sanitized HTML: wikilinks are
// resolved against the metadata cache, include directives are expanded from
// the content tree, and the result is run through goldmark and bluemonday.
package render

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"github.com/aldergrove/arbor/internal/index"
	"github.com/aldergrove/arbor/internal/storage"
)

var (
	wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	includePattern  = regexp.MustCompile(`\{\{\s*include:\s*([^}]+?)\s*\}\}`)
)

// Includes may nest; past this depth the directive is left untouched to
// break cycles.
const maxIncludeDepth = 3

// Renderer converts Markdown to display HTML.
type Renderer struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	resolver *index.Resolver
	store    storage.Provider
	logger   *slog.Logger
}

// New creates a Renderer over the given resolver and content store.
func New(resolver *index.Resolver, store storage.Provider, logger *slog.Logger) *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(ghtml.WithUnsafe()),
		),
		policy:   buildPolicy(),
		resolver: resolver,
		store:    store,
		logger:   logger,
	}
}

func buildPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	// Wikilink markup survives sanitization.
	policy.AllowAttrs("class").OnElements("a", "span")
	return policy
}

// Render converts Markdown to sanitized HTML, resolving wikilinks relative
// to currentGarden. The returned resolutions cover every wikilink in the
// document, broken ones included, for backlink panels and link reports.
func (r *Renderer) Render(markdown, currentGarden string) (string, []index.Resolution, error) {
	expanded := r.expandIncludes(markdown, 0)
	rewritten, resolutions, err := r.rewriteWikilinks(expanded, currentGarden)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(rewritten), &buf); err != nil {
		return "", nil, fmt.Errorf("render: convert: %w", err)
	}
	return r.policy.Sanitize(buf.String()), resolutions, nil
}

// expandIncludes replaces {{include: path}} directives with the body of the
// referenced page. Unreadable targets are replaced by a visible marker
// rather than failing the whole render.
func (r *Renderer) expandIncludes(markdown string, depth int) string {
	if depth >= maxIncludeDepth || !strings.Contains(markdown, "{{") {
		return markdown
	}
	return includePattern.ReplaceAllStringFunc(markdown, func(m string) string {
		target := strings.TrimSpace(includePattern.FindStringSubmatch(m)[1])
		data, err := r.store.Read(target)
		if err != nil {
			r.logger.Warn("render: include failed",
				slog.String("target", target),
				slog.String("error", err.Error()))
			return fmt.Sprintf("*(missing include: %s)*", target)
		}
		body := stripFrontmatter(string(data))
		return r.expandIncludes(body, depth+1)
	})
}

// rewriteWikilinks replaces [[Target]] and [[Target|Alias]] tokens with
// inline HTML anchors, or a flagged span when the target does not resolve.
func (r *Renderer) rewriteWikilinks(markdown, currentGarden string) (string, []index.Resolution, error) {
	var resolutions []index.Resolution
	var firstErr error

	out := wikilinkPattern.ReplaceAllStringFunc(markdown, func(m string) string {
		inner := wikilinkPattern.FindStringSubmatch(m)[1]
		target, label := inner, inner
		if i := strings.Index(inner, "|"); i >= 0 {
			target = strings.TrimSpace(inner[:i])
			label = strings.TrimSpace(inner[i+1:])
		}

		res, err := r.resolver.Resolve(target, currentGarden)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		resolutions = append(resolutions, res)

		if res.Broken {
			return fmt.Sprintf(`<span class="wiki-link broken">%s</span>`, html.EscapeString(label))
		}
		return fmt.Sprintf(`<a class="wiki-link" href="%s">%s</a>`, res.URL, html.EscapeString(label))
	})
	if firstErr != nil {
		return "", nil, firstErr
	}
	return out, resolutions, nil
}

// stripFrontmatter drops a leading YAML frontmatter block from included
// content so its metadata does not leak into the host page.
func stripFrontmatter(s string) string {
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return s
	}
	rest := s[strings.Index(s, "\n")+1:]
	i := strings.Index(rest, "\n---")
	if i < 0 {
		return s
	}
	after := rest[i+len("\n---"):]
	if j := strings.Index(after, "\n"); j >= 0 {
		return after[j+1:]
	}
	return ""
}
