package main

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"aisdb/internal/gfw"
)

func newGFWCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:     "gfw",
		Short:   "Query the Global Fishing Watch API",
		GroupID: "data",
		Long: `Look up vessel identities and fishing events on the Global Fishing Watch
API. The token is taken from --token, then gfw.token in the configuration,
then GFW_API_TOKEN, and is prompted for when none is set.`,
	}
	cmd.PersistentFlags().StringVar(&token, "token", "", "GFW API token")

	client := func(cmd *cobra.Command) (*gfw.Client, error) {
		explicit := token
		if explicit == "" {
			explicit = a.cfg.GFW.Token
		}
		tok, err := gfw.ResolveToken(explicit, os.Stdin, cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		return gfw.New(tok, gfw.WithBaseURL(a.cfg.GFW.BaseURL), gfw.WithLogger(a.log.Named("gfw")))
	}

	search := &cobra.Command{
		Use:   "search IDENTIFIER",
		Short: "Search vessel identities by name, MMSI, IMO or call sign",
		Example: `  aisdb gfw search 367596940
  aisdb gfw search "EVER DIADEM"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client(cmd)
			if err != nil {
				return err
			}
			entries, err := c.SearchVessel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}

	var q gfw.EventsQuery
	events := &cobra.Command{
		Use:   "events VESSEL_ID",
		Short: "List fishing events of a GFW vessel id",
		Example: `  aisdb gfw events $VESSEL_ID --start 2020-01-01 --end 2020-12-31
  aisdb gfw events $VESSEL_ID --limit 50 --offset 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client(cmd)
			if err != nil {
				return err
			}
			q.VesselID = args[0]
			entries, err := c.FishingEvents(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
	events.Flags().StringVar(&q.StartDate, "start", "", "Start date, YYYY-MM-DD")
	events.Flags().StringVar(&q.EndDate, "end", "", "End date, YYYY-MM-DD")
	events.Flags().IntVar(&q.Limit, "limit", gfw.DefaultEventsLimit, "Maximum number of events")
	events.Flags().IntVar(&q.Offset, "offset", 0, "Number of events to skip")

	cmd.AddCommand(search, events)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
