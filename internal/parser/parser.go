// Package parser extracts frontmatter, wikilinks, and tags from Markdown
// content and derives URL slugs from content-tree paths.
package parser

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aldergrove/arbor/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	slugRe     = regexp.MustCompile(`[^a-z0-9/._-]+`)
)

// ParseError reports a Markdown file whose frontmatter block could not be
// decoded. During bulk rebuilds the offending file is skipped; when a file
// is indexed individually (e.g. on save) the error reaches the caller.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse frontmatter: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Description string
	Tags        []string
	Links       []string
	Status      string
	// Dates are normalized to YYYY-MM-DD; empty means absent.
	CreatedDate   string
	PublishedDate string
	UpdatedDate   string
}

// Parse extracts frontmatter and body from raw Markdown bytes and
// derives title, description, tags, dates, status, and wikilink targets.
// A present-but-malformed frontmatter block yields a *ParseError.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Description: stringField(fm, "description"),
		Tags:        extractTags(body, fm),
		Links:       extractLinks(body),
		Status:      deriveStatus(fm),
	}
	r.CreatedDate = dateField(fm, "created_date")
	r.PublishedDate = dateField(fm, "published_date")
	r.UpdatedDate = dateField(fm, "updated_date")
	return r, nil
}

// EffectiveUpdated returns the date an article should sort under:
// updated, then published, then created, then the file's mtime,
// then today.
func EffectiveUpdated(r *Result, mtime time.Time) string {
	for _, d := range []string{r.UpdatedDate, r.PublishedDate, r.CreatedDate} {
		if d != "" {
			return d
		}
	}
	if !mtime.IsZero() {
		return mtime.Format("2006-01-02")
	}
	return time.Now().Format("2006-01-02")
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter block is present the entire
// content is body; a present block that fails to decode is a *ParseError.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter; the --- was a horizontal rule, not frontmatter.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", &ParseError{Err: err}
	}

	return fm, body, nil
}

// extractLinks returns deduplicated wikilink targets in order of first
// appearance. Aliases ([[Target|Alias]]) are stripped to the target;
// garden prefixes ([[garden/Title]]) are preserved as written.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects tags from the frontmatter "tags" list and inline
// #tags from the body, preserving first-seen order.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if fm != nil {
		if raw, ok := fm["tags"]; ok {
			switch v := raw.(type) {
			case []any:
				for _, item := range v {
					if s, ok := item.(string); ok {
						add(s)
					}
				}
			case string:
				for _, s := range strings.Split(v, ",") {
					add(s)
				}
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t := stringField(fm, "title"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// deriveStatus normalizes the frontmatter "status" field. Anything other
// than an explicit draft marker counts as published.
func deriveStatus(fm map[string]any) string {
	s := strings.ToLower(strings.TrimSpace(stringField(fm, "status")))
	if s == models.StatusDraft {
		return models.StatusDraft
	}
	if fm != nil {
		if d, ok := fm["draft"].(bool); ok && d {
			return models.StatusDraft
		}
	}
	return models.StatusPublished
}

func stringField(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return s
	}
	return ""
}

// dateField normalizes a frontmatter date to YYYY-MM-DD. YAML may hand us
// a string or a time.Time depending on how the value was written.
func dateField(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	switch v := fm[key].(type) {
	case time.Time:
		return v.Format("2006-01-02")
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return ""
		}
		// Accept full timestamps but keep only the date part.
		if len(s) > 10 {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.Format("2006-01-02")
			}
		}
		return s
	default:
		return ""
	}
}

// GenerateSlug derives a URL slug from a content-tree path. The ".page"
// directory marker and the ".md" extension are stripped from every path
// element; the result is lowercased with spaces collapsed to dashes.
//
//	"article.md"              -> "article"
//	"my-project.page"         -> "my-project"
//	"section/Deep Dive.page"  -> "section/deep-dive"
func GenerateSlug(p string) string {
	var parts []string
	for _, part := range strings.Split(path.Clean(CanonicalPath(p)), "/") {
		switch {
		case strings.HasSuffix(part, ".page"):
			parts = append(parts, strings.TrimSuffix(part, ".page"))
		case strings.HasSuffix(part, ".md"):
			parts = append(parts, strings.TrimSuffix(part, ".md"))
		default:
			parts = append(parts, part)
		}
	}
	slug := strings.ToLower(strings.Join(parts, "/"))
	slug = strings.ReplaceAll(slug, " ", "-")
	return slugRe.ReplaceAllString(slug, "")
}

// CanonicalPath maps a raw file path to its logical content path: the
// canonical source of a page directory is "<name>.page/page.md", and its
// logical path is the directory itself.
func CanonicalPath(p string) string {
	p = strings.Trim(filepathToSlash(p), "/")
	if dir, file := path.Split(p); file == "page.md" && strings.HasSuffix(strings.TrimSuffix(dir, "/"), ".page") {
		return strings.TrimSuffix(dir, "/")
	}
	return p
}

// SplitGarden splits a content-tree path into its garden (first path
// element, empty for root-level pages) and the remainder.
func SplitGarden(p string) (garden, rest string) {
	p = strings.Trim(filepathToSlash(p), "/")
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
