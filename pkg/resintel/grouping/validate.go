package grouping

import "strings"

// Violations lists fields that break the one-group-per-field rule.
type Violations struct {
	Missing   []string `json:"missing,omitempty"`
	Duplicate []string `json:"duplicate,omitempty"`
	Unknown   []string `json:"unknown,omitempty"`
}

// Empty reports whether every field is placed exactly once.
func (v Violations) Empty() bool {
	return len(v.Missing) == 0 && len(v.Duplicate) == 0 && len(v.Unknown) == 0
}

func key(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}

// Check compares groups against the input fields. Names match case-insensitively.
func Check(fields []string, groups []Group) Violations {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[key(f)] = true
	}
	var v Violations
	seen := make(map[string]int)
	for _, g := range groups {
		for _, f := range g.Fields {
			k := key(f)
			if !known[k] {
				v.Unknown = append(v.Unknown, f)
				continue
			}
			seen[k]++
			if seen[k] == 2 {
				v.Duplicate = append(v.Duplicate, f)
			}
		}
	}
	for _, f := range fields {
		if seen[key(f)] == 0 {
			v.Missing = append(v.Missing, f)
		}
	}
	return v
}

// Repair drops unknown and repeated fields, keeping the first placement, and
// collects missing fields into an "Other Fields" group. Groups left empty are
// removed. Field names are normalized to the input spelling.
func Repair(fields []string, groups []Group) []Group {
	canonical := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, ok := canonical[key(f)]; !ok {
			canonical[key(f)] = f
		}
	}
	placed := make(map[string]bool)
	var out []Group
	for _, g := range groups {
		kept := []string{}
		for _, f := range g.Fields {
			k := key(f)
			name, ok := canonical[k]
			if !ok || placed[k] {
				continue
			}
			placed[k] = true
			kept = append(kept, name)
		}
		if len(kept) == 0 {
			continue
		}
		g.Fields = kept
		out = append(out, g)
	}

	var missing []string
	for _, f := range fields {
		if !placed[key(f)] {
			placed[key(f)] = true
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		out = append(out, Group{
			Name:        OtherFieldsGroup,
			Description: "Fields not assigned to any other group",
			Fields:      missing,
		})
	}
	return out
}
