package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/openfroyo/themesync/pkg/models"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printThemes writes themes as a table, or as JSON with --json.
func printThemes(w io.Writer, themes []*models.Theme) error {
	if jsonOutput {
		if themes == nil {
			themes = []*models.Theme{}
		}
		return printJSON(w, themes)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "THEME\tNAME\tSITE\tACTIVE\tVERSION")
	for _, t := range themes {
		site := "wpcom"
		if !t.IsWPComTheme {
			site = fmt.Sprintf("%d", t.LocalSiteID)
		}
		active := ""
		if t.Active {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ThemeID, t.Name, site, active, t.Version)
	}
	return tw.Flush()
}

// printTheme writes a single theme, or a placeholder when there is none.
func printTheme(w io.Writer, theme *models.Theme) error {
	if jsonOutput {
		return printJSON(w, theme)
	}
	if theme == nil {
		_, err := fmt.Fprintln(w, "(none)")
		return err
	}
	return printThemes(w, []*models.Theme{theme})
}
