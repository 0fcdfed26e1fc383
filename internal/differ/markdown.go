package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apiscribe/apiscribe/api/schemas"
)

func sortStrings(s []string) { sort.Strings(s) }

// FormatAsMarkdown renders a changelog grouped by change type, with a
// **[BREAKING]** marker on breaking entries. Suitable for release notes.
func FormatAsMarkdown(cl *schemas.Changelog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Changelog %s\n\n", headerVersion(cl))
	fmt.Fprintf(&b, "_%s_\n", cl.Date.Format("2006-01-02"))

	if len(cl.Changes) == 0 {
		b.WriteString("\nNo changes.\n")
		return b.String()
	}

	sections := []struct {
		title string
		ctype schemas.ChangeType
	}{
		{"Added", schemas.ChangeAdded},
		{"Changed", schemas.ChangeChanged},
		{"Removed", schemas.ChangeRemoved},
	}
	for _, section := range sections {
		var lines []string
		for _, c := range cl.Changes {
			if c.Type != section.ctype {
				continue
			}
			marker := ""
			if c.Breaking {
				marker = "**[BREAKING]** "
			}
			lines = append(lines, fmt.Sprintf("- %s%s", marker, c.Description))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", section.title)
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func headerVersion(cl *schemas.Changelog) string {
	if cl.Version == "" {
		return "unversioned"
	}
	return "v" + strings.TrimPrefix(cl.Version, "v")
}
