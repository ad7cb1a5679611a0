// Package convert turns one markdown/MDX source file into a canonical,
// tokenized document row ready for indexing.
package convert

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	sifterrors "github.com/docsift/docsift/internal/errors"
)

// Options tunes the conversion of a single file.
type Options struct {
	// IncludeCodeBlocks keeps fenced code blocks in the token stream.
	IncludeCodeBlocks bool

	// NgramSize overlays fixed-width substring tokens when > 1.
	NgramSize int

	// MaxBytes is the per-file content ceiling.
	MaxBytes int64
}

// DefaultOptions returns the conversion defaults: code blocks stripped,
// no n-gram overlay, 1 MiB ceiling.
func DefaultOptions() Options {
	return Options{MaxBytes: 1 << 20}
}

// DocumentRow is one indexed unit: the relational row plus the token
// stream destined for the full-text side.
type DocumentRow struct {
	DocID      string
	URL        string
	Format     string
	Title      string
	TagsJSON   string
	Lang       string
	UpdatedAt  int64
	Digest     string
	BodyTokens string
}

// Skip marks a document that was filtered out by a pre-publication gate.
// It is not an error: the build carries on without the file.
type Skip struct {
	Reason string
}

// Convert reads the file at filePath (beneath rootDir) and produces either
// a document row, a skip, or an error. Exactly one of the three results is
// non-nil/set.
func Convert(rootDir, filePath string, opts Options) (*DocumentRow, *Skip, error) {
	contents, info, err := readLimited(filePath, opts.MaxBytes)
	if err != nil {
		return nil, nil, err
	}

	frontmatter, body := splitFrontmatter(contents)

	if draft, ok := frontmatter["draft"]; ok && isDraft(draft) {
		return nil, &Skip{Reason: "draft"}, nil
	}
	if status, ok := frontmatter["status"]; ok {
		if !strings.EqualFold(strings.TrimSpace(status), "publish") {
			return nil, &Skip{Reason: "status=" + status}, nil
		}
	}

	isMDX := filepath.Ext(filePath) == ".mdx"
	body = removeCodeBlocks(body, opts.IncludeCodeBlocks)
	if isMDX {
		body = stripMDXTags(body)
	}

	docID, err := buildDocID(rootDir, filePath)
	if err != nil {
		return nil, nil, err
	}

	row := &DocumentRow{
		DocID:  docID,
		URL:    buildURL(docID, frontmatter),
		Format: "md",
	}
	if isMDX {
		row.Format = "mdx"
	}

	if title, ok := frontmatter["title"]; ok {
		row.Title = title
	} else if heading := firstHeading(body); heading != "" {
		row.Title = heading
	} else {
		row.Title = humanizeFilename(filePath)
	}

	row.Lang = frontmatter["lang"]
	row.TagsJSON = tagsToJSON(parseTags(frontmatter["tags"]))
	row.UpdatedAt = info.ModTime().Unix()
	row.BodyTokens = BuildTokens(body, opts.NgramSize)
	row.Digest = contentDigest(row.Title, row.BodyTokens)

	return row, nil, nil
}

// readLimited reads a file whose size must not exceed maxBytes.
func readLimited(filePath string, maxBytes int64) (string, os.FileInfo, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", nil, sifterrors.Wrap(sifterrors.ErrCodeFileUnreadable, err)
	}
	if info.Size() > maxBytes {
		return "", nil, sifterrors.Newf(sifterrors.ErrCodeContentTooLarge,
			"%s exceeds max bytes (%d > %d)", filePath, info.Size(), maxBytes)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, sifterrors.Wrap(sifterrors.ErrCodeFileUnreadable, err)
	}
	return string(data), info, nil
}

// buildDocID derives the stable document id: the slash-separated path
// relative to the source root.
func buildDocID(rootDir, filePath string) (string, error) {
	rel, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s against %s: %w", filePath, rootDir, err)
	}
	return filepath.ToSlash(rel), nil
}

// buildURL derives the canonical URL. Precedence: frontmatter url
// (/-prefixed), frontmatter slug (/-wrapped), then the relative path with
// the extension stripped, index leaves collapsed to their directory, a
// trailing slash ensured, and duplicate slashes collapsed.
func buildURL(docID string, frontmatter map[string]string) string {
	if url := frontmatter["url"]; url != "" {
		if strings.HasPrefix(url, "/") {
			return url
		}
		return "/" + url
	}
	if slug := frontmatter["slug"]; slug != "" {
		if !strings.HasPrefix(slug, "/") {
			slug = "/" + slug
		}
		if !strings.HasSuffix(slug, "/") {
			slug += "/"
		}
		return slug
	}

	base := path.Base(docID)
	url := "/" + strings.TrimSuffix(docID, path.Ext(docID))
	if base == "index.md" || base == "index.mdx" {
		parent := path.Dir(docID)
		if parent == "." || parent == "/" {
			url = "/"
		} else {
			url = "/" + parent
		}
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return collapseSlashes(url)
}

// collapseSlashes folds runs of '/' into one.
func collapseSlashes(url string) string {
	var b strings.Builder
	b.Grow(len(url))
	prevSlash := false
	for i := 0; i < len(url); i++ {
		c := url[i]
		if c == '/' {
			if !prevSlash {
				b.WriteByte(c)
			}
			prevSlash = true
			continue
		}
		b.WriteByte(c)
		prevSlash = false
	}
	return b.String()
}

// removeCodeBlocks drops content between fenced-code delimiters line by
// line. Opening and closing fences toggle a skip state; an unterminated
// fence leaves the remainder skipped.
func removeCodeBlocks(body string, includeCodeBlocks bool) string {
	if includeCodeBlocks {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	skipping := false
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			skipping = !skipping
			continue
		}
		if !skipping {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// stripMDXTags removes any text between '<' and '>'. Not real MDX parsing:
// embedded components are treated as non-indexable markup.
func stripMDXTags(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	insideTag := false
	for i := 0; i < len(body); i++ {
		switch c := body[i]; c {
		case '<':
			insideTag = true
		case '>':
			insideTag = false
		default:
			if !insideTag {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

// firstHeading returns the first markdown heading line of the body with
// leading '#' runs stripped, or "" when the body has none.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if heading != "" {
			return heading
		}
	}
	return ""
}

// humanizeFilename turns a filename stem into a readable title: hyphens
// and underscores become spaces and the first letter is capitalized. An
// "index" stem borrows the parent directory's name.
func humanizeFilename(filePath string) string {
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	if base == "index" {
		if parent := filepath.Base(filepath.Dir(filePath)); parent != "" && parent != "." && parent != string(filepath.Separator) {
			base = parent
		}
	}
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	if base == "" {
		return base
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

// tagsToJSON serializes tags as a JSON array string; nil becomes "[]".
func tagsToJSON(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		// []string cannot fail to marshal; keep the invariant anyway.
		return "[]"
	}
	return string(data)
}

// contentDigest fingerprints title + body tokens with FNV-1a. It only
// backs change detection and debugging, so collisions are acceptable.
func contentDigest(title, bodyTokens string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(title))
	_, _ = h.Write([]byte{'\n'})
	_, _ = h.Write([]byte(bodyTokens))
	return strconv.FormatUint(h.Sum64(), 16)
}
