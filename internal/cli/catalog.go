package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/aretw0/switchboard/pkg/domain"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// CatalogMarkdown describes the catalog as a markdown document.
func CatalogMarkdown(catalog []domain.Action) string {
	var b strings.Builder
	b.WriteString("# Actions\n\n")
	for _, a := range sorted(catalog) {
		fmt.Fprintf(&b, "## `%s`\n\n", a.Name())
		if len(a.Schema()) == 0 {
			b.WriteString("No payload.\n\n")
			continue
		}
		b.WriteString("| Field | Type | Required | Description |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, f := range a.Schema() {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", f.Name, strings.ReplaceAll(f.Type.Name(), "|", "\\|"), yesNo(f.Required), f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteCatalogPlain writes one line per action followed by its fields.
func WriteCatalogPlain(w io.Writer, catalog []domain.Action) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, a := range sorted(catalog) {
		fmt.Fprintf(tw, "%s\n", a.Name())
		for _, f := range a.Schema() {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Name, f.Type.Name(), requiredLabel(f.Required), f.Description)
		}
	}
	return tw.Flush()
}

// RenderCatalog writes the catalog to w, styled with glamour when styled is
// true and as plain text otherwise.
func RenderCatalog(w io.Writer, catalog []domain.Action, styled bool) error {
	if !styled {
		return WriteCatalogPlain(w, catalog)
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(CatalogMarkdown(catalog))
	if err != nil {
		return fmt.Errorf("render catalog: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func sorted(catalog []domain.Action) []domain.Action {
	out := append([]domain.Action(nil), catalog...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func requiredLabel(b bool) string {
	if b {
		return "required"
	}
	return "optional"
}
