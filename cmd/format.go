package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/samhoang/myrepo/internal/catalog"
	"github.com/samhoang/myrepo/internal/plugin"
)

// shortHash is the identifier prefix shown in tables
const shortHash = 8

// renderRecords writes records as a table sized to the terminal
func renderRecords(w io.Writer, records []plugin.Record) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.DrawBorder = true

	tw.AppendHeader(table.Row{"★", "Hash", "Name", "Author", "Version", "API", "Feed"})

	nameWidth, feedWidth := columnWidths(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignCenter},
		{Number: 3, WidthMax: nameWidth, WidthMaxEnforcer: text.Trim},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, WidthMax: feedWidth, WidthMaxEnforcer: text.Trim},
	})

	for _, r := range records {
		star := ""
		if r.IsFavorite() {
			star = "★"
		}
		api := ""
		if level := r.APILevel(); level > 0 {
			api = fmt.Sprint(level)
		}
		tw.AppendRow(table.Row{star, abbrev(r.Hash()), r.Name(), r.Author(), r.Version(), api, r.URL()})
	}

	tw.Render()
}

func abbrev(hash string) string {
	if len(hash) > shortHash {
		return hash[:shortHash]
	}
	return hash
}

// columnWidths splits the terminal width between the name and feed columns
func columnWidths(w io.Writer) (name, feed int) {
	width := detectTerminalWidth(w)
	if width <= 0 {
		return 40, 60
	}
	// star, hash, author, version, api and borders take roughly 60 columns
	rest := width - 60
	if rest < 30 {
		rest = 30
	}
	return rest * 2 / 5, rest * 3 / 5
}

func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// resolveHash accepts a full identifier or a unique prefix of one in the
// working list. Unknown full-length identifiers pass through unchanged so
// stale favorites can still be addressed.
func resolveHash(c *catalog.Catalog, arg string) (string, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "" {
		return "", fmt.Errorf("empty plugin hash")
	}
	if _, ok := c.Find(arg); ok || len(arg) == 32 {
		return arg, nil
	}

	var matches []string
	seen := make(map[string]bool)
	for _, r := range c.Records() {
		h := r.Hash()
		if strings.HasPrefix(h, arg) && !seen[h] {
			seen[h] = true
			matches = append(matches, h)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no plugin matches %q (see 'myrepo list')", arg)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%q is ambiguous: matches %d plugins", arg, len(matches))
}
