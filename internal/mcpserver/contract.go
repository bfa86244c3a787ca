package mcpserver

// ArticleFormatContract describes the canonical Markdown article format that
// LLM consumers should follow when creating or updating articles.
const ArticleFormatContract = `# Arbor Article Format Contract

Every Markdown article stored in Arbor MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # RECOMMENDED – falls back to the first H1 or the slug
description: One-line summary       # OPTIONAL – shown in listings
tags:                               # OPTIONAL – YAML list or comma string
  - tag-one
  - tag-two
status: published                   # OPTIONAL – "published" (default) or "draft"
created_date: 2025-01-15            # OPTIONAL – YYYY-MM-DD
published_date: 2025-01-16          # OPTIONAL – YYYY-MM-DD
updated_date: 2025-01-20            # OPTIONAL – YYYY-MM-DD
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other articles by title or slug.
Use [[garden/Target]] to pin a link to one garden.
Use [[target|alias]] for display text that differs from the target.
` + "```" + `

## Rules

1. **YAML frontmatter is optional but recommended.** When present, the
   ` + "`" + `---` + "`" + ` fences must be the first thing in the file. Malformed YAML
   between valid fences is rejected on save.
2. **Gardens are top-level directories.** ` + "`" + `blog/intro.md` + "`" + ` lives in the
   ` + "`" + `blog` + "`" + ` garden; files at the content root are standalone pages.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `). Inline
   ` + "`" + `#hashtags` + "`" + ` in the body are indexed too.
4. **Wikilinks** resolve by exact title first, then slug, then fuzzy title
   match. Ambiguous targets prefer the linking article's own garden.
5. **Drafts** (` + "`" + `status: draft` + "`" + ` or ` + "`" + `draft: true` + "`" + `) are hidden from
   public listings and recent feeds but remain searchable by admins.
6. **Pages with assets** use a ` + "`" + `.page` + "`" + ` directory: the Markdown lives at
   ` + "`" + `name.page/page.md` + "`" + ` and sibling files are its assets.
7. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
8. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
title: Growing Basil
description: Notes from two seasons of basil
tags:
  - herbs
  - gardening
created_date: 2025-01-20
---

# Growing Basil

Basil wants sun, warmth, and steady water. See [[Watering Basics]] and
[[herbs/Pests]] before planting out.
` + "```" + `
`
