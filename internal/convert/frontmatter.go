package convert

import (
	"strings"
)

// Frontmatter is parsed line-by-line rather than as YAML: content trees
// carry loosely formatted headers (bare comma lists, half-quoted values,
// truthy strings like "1") that a strict YAML parser would either reject
// or type-coerce differently.

// splitFrontmatter splits a leading "---"-delimited block from the content.
// Absence of a well-formed block yields an empty map and the whole content
// as body.
func splitFrontmatter(contents string) (map[string]string, string) {
	if !strings.HasPrefix(contents, "---") {
		return map[string]string{}, contents
	}
	end := strings.Index(contents[3:], "\n---")
	if end < 0 {
		return map[string]string{}, contents
	}
	end += 3

	block := contents[3:end]

	body := ""
	if after := strings.IndexByte(contents[end+4:], '\n'); after >= 0 {
		body = contents[end+4+after+1:]
	}

	return parseFrontmatterLines(block), body
}

// parseFrontmatterLines parses "key: value" lines, trimming whitespace and
// stripping one layer of matching quotes from values. Lines without a colon
// are ignored.
func parseFrontmatterLines(block string) map[string]string {
	result := map[string]string{}
	for _, line := range strings.Split(block, "\n") {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if key != "" {
			result[key] = stripQuotes(value)
		}
	}
	return result
}

// stripQuotes removes one matching pair of surrounding single or double
// quotes, if present.
func stripQuotes(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// parseTags accepts a bracketed comma list ("[a, b]") or a bare comma list
// ("a, b"); items are trimmed and unquoted, empties dropped.
func parseTags(value string) []string {
	working := value
	if strings.HasPrefix(working, "[") && strings.HasSuffix(working, "]") {
		working = working[1 : len(working)-1]
	}
	var tags []string
	for _, item := range strings.Split(working, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			tags = append(tags, stripQuotes(trimmed))
		}
	}
	return tags
}

// isDraft reports whether a frontmatter draft value marks the document as
// unpublished.
func isDraft(value string) bool {
	switch strings.TrimSpace(value) {
	case "true", "True", "1":
		return true
	}
	return false
}
