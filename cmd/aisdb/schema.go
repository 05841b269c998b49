package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aisdb/internal/storage"
)

func newSchemaCmd(a *app) *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:     "schema",
		Short:   "Create the schema and describe the tables",
		GroupID: "data",
		Long: `Create any missing tables in the configured store and list them with their
columns. With --stats, print the row count of every table instead.`,
		Example: `  aisdb schema
  aisdb schema --extended --stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if stats {
				counts, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "TABLE\tROWS")
				for _, s := range counts {
					fmt.Fprintf(tw, "%s\t%d\n", s.Table, s.Rows)
				}
				return tw.Flush()
			}

			fmt.Fprintf(tw, "# %s backend\n", store.Backend())
			for _, t := range store.Tables() {
				kind := "static"
				if t.Dynamic {
					kind = "dynamic"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, kind, strings.Join(t.ColumnNames(), ", "))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&stats, "stats", false, "Print row counts per table")
	return cmd
}

// tableNames lists every table of the extended schema.
func tableNames() string {
	var names []string
	for _, t := range storage.Tables(true) {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}
