package view

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// RenderText writes a plain-text version of the page
func RenderText(w io.Writer, p Page) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Total\t%d\n", p.Stats.Total)
	fmt.Fprintf(tw, "Pleines\t%d\n", p.Stats.Pleines)
	fmt.Fprintf(tw, "Moyen remplissage\t%s\n", p.Stats.MoyenRemplissage)

	if !p.Loaded {
		fmt.Fprintln(tw, "\n(no data yet)")
		return tw.Flush()
	}

	if p.ListVisible {
		fmt.Fprintln(tw, "\nID\tNom\tNiveau\tEtat\t")
		for _, row := range p.List {
			marker := " "
			if row.Selected {
				marker = "*"
			}
			fmt.Fprintf(tw, "%s%d\t%s\t%s\t%s\t\n", marker, row.ID, row.Nom, row.Niveau, row.Severity)
		}
	}

	if d := p.Details; d != nil {
		fmt.Fprintf(tw, "\nDetails: %s\n", d.Nom)
		fmt.Fprintf(tw, "ID:\t%d\n", d.ID)
		fmt.Fprintf(tw, "Niveau:\t%s\n", d.Niveau)
		fmt.Fprintf(tw, "Coordonnees:\t%v, %v\n", d.Latitude, d.Longitude)
	}

	return tw.Flush()
}
