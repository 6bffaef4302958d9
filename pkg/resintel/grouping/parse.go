package grouping

import (
	"encoding/json"
	"strings"
	"unicode"
)

// DefaultDescription is given to groups parsed from free text without one.
const DefaultDescription = "Research group focusing on related topics"

// ParseResult is the outcome of reading a model reply.
type ParseResult struct {
	Groups []Group
	// Source is SourceJSON or SourceLines, or empty when nothing was found.
	Source Source
}

// Parse reads a reply as JSON first and as a loosely formatted list second.
func Parse(reply string) ParseResult {
	if groups, ok := parseJSON(reply); ok {
		return ParseResult{Groups: groups, Source: SourceJSON}
	}
	if groups := parseLines(reply); len(groups) > 0 {
		return ParseResult{Groups: groups, Source: SourceLines}
	}
	return ParseResult{}
}

func parseJSON(reply string) ([]Group, bool) {
	text := stripFence(strings.TrimSpace(reply))
	if text == "" {
		return nil, false
	}
	var groups []Group
	switch text[0] {
	case '[':
		if err := json.Unmarshal([]byte(text), &groups); err != nil {
			return nil, false
		}
	case '{':
		var wrapped struct {
			Groups []Group `json:"groups"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, false
		}
		groups = wrapped.Groups
	default:
		return nil, false
	}

	out := groups[:0]
	for _, g := range groups {
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" && len(g.Fields) == 0 {
			continue
		}
		if g.Fields == nil {
			g.Fields = []string{}
		}
		out = append(out, g)
	}
	return out, len(out) > 0
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// parseLines walks the reply line by line. A header line opens a group; bullet
// lines add fields to the open group; "Description:" lines describe it.
func parseLines(reply string) []Group {
	var (
		groups []Group
		cur    *Group
	)
	flush := func() {
		if cur != nil {
			groups = append(groups, *cur)
			cur = nil
		}
	}
	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch {
		case isHeader(line):
			flush()
			cur = &Group{Name: headerName(line), Description: DefaultDescription, Fields: []string{}}
		case cur == nil:
		case hasPrefixFold(line, "description:"):
			if d := strings.TrimSpace(line[len("description:"):]); d != "" {
				cur.Description = d
			}
		case isBullet(line):
			field := strings.TrimSpace(strings.TrimLeft(line, "-•* "))
			if field != "" {
				cur.Fields = append(cur.Fields, field)
			}
		}
	}
	flush()
	return groups
}

func isHeader(line string) bool {
	if numbered(line) > 0 || strings.HasPrefix(line, "**") || strings.HasPrefix(line, "#") {
		return true
	}
	if isBullet(line) {
		return false
	}
	return isUpper(line) && len(strings.Fields(line)) <= 4
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*")
}

// numbered returns the length of a leading "N." prefix with N from 1 to 10, or 0.
func numbered(line string) int {
	i := 0
	for i < len(line) && i < 2 && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != '.' {
		return 0
	}
	if n := line[:i]; n == "0" || n[0] == '0' || (i == 2 && n != "10") {
		return 0
	}
	return i + 1
}

func headerName(line string) string {
	line = line[numbered(line):]
	line = strings.NewReplacer("*", "", "#", "").Replace(line)
	return strings.TrimSpace(line)
}

// isUpper reports whether line has letters and all of them are upper case.
func isUpper(line string) bool {
	cased := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
