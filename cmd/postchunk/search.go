package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/postchunk/internal/config"
	"github.com/dgallion1/postchunk/internal/store"
)

func searchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across indexed sections",
		Long: `Search indexed sections using FTS5. Output is TSV:
  sectionId, headingHref, pageTitle, sectionHeading, snippet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.SearchLimit
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			hits, err := st.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			flat := strings.NewReplacer("\t", " ", "\n", " ")
			for _, h := range hits {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
					h.SectionID,
					h.HeadingHref,
					flat.Replace(h.PageTitle),
					flat.Replace(h.SectionHeading),
					flat.Replace(h.Snippet),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (default: SEARCH_LIMIT)")
	return cmd
}
