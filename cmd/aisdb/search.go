package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aisdb/internal/export"
	"aisdb/internal/query"
	"aisdb/internal/storage"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		mmsi        []uint
		c           query.Criteria
		direction   string
		minVelocity float64
		maxVelocity float64
		minTurnRate float64
		maxTurnRate float64
		table       string
		format      string
		output      string
	)

	cmd := &cobra.Command{
		Use:     "search",
		Short:   "Query position reports",
		GroupID: "data",
		Long: `Query stored position reports. Filters combine with AND; filters that are
not given fall back to query.defaults from the configuration.

Dates are YYYY-MM-DD or YYYY-MM-DD HH:MM:SS in UTC and must be given
together. A date-only end covers the whole day. Polygons are WKT in
longitude/latitude order.`,
		Example: `  aisdb search --mmsi 367596940 --start 2016-07-27 --end 2016-07-28
  aisdb search --polygon "POLYGON((-123 37,-122 37,-122 38,-123 38,-123 37))" -o bay.geojson
  aisdb search --min-velocity 10 --direction N --format csv
  aisdb search --extended --table ais_msg_18_19 --limit 100 -o classb.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()

			for _, id := range mmsi {
				if id > math.MaxUint32 {
					return fmt.Errorf("invalid mmsi %d: out of range", id)
				}
				c.MMSI = append(c.MMSI, uint32(id))
			}
			c.Direction = query.Direction(strings.ToUpper(strings.TrimSpace(direction)))
			if flags.Changed("min-velocity") {
				c.MinVelocity = &minVelocity
			}
			if flags.Changed("max-velocity") {
				c.MaxVelocity = &maxVelocity
			}
			if flags.Changed("min-turn-rate") {
				c.MinTurnRate = &minTurnRate
			}
			if flags.Changed("max-turn-rate") {
				c.MaxTurnRate = &maxTurnRate
			}

			f, err := outputFormat(format, output)
			if err != nil {
				return err
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			engine, err := a.engine(store)
			if err != nil {
				return err
			}
			rs, err := engine.SearchTable(ctx, table, c)
			if err != nil {
				return err
			}
			a.log.Info("search finished", zap.String("table", table), zap.Int("rows", rs.Len()))
			return writeResult(cmd, rs, f, output)
		},
	}

	f := cmd.Flags()
	f.UintSliceVar(&mmsi, "mmsi", nil, "Vessel MMSI, repeatable or comma-separated")
	f.StringVar(&c.StartDate, "start", "", "Start of the time range (UTC)")
	f.StringVar(&c.EndDate, "end", "", "End of the time range (UTC, inclusive)")
	f.StringVar(&c.Polygon, "polygon", "", "WKT polygon the position must fall in")
	f.Float64Var(&minVelocity, "min-velocity", 0, "Minimum speed over ground in knots")
	f.Float64Var(&maxVelocity, "max-velocity", 0, "Maximum speed over ground in knots")
	f.Float64Var(&minTurnRate, "min-turn-rate", 0, "Minimum rate of turn in degrees per minute")
	f.Float64Var(&maxTurnRate, "max-turn-rate", 0, "Maximum rate of turn in degrees per minute")
	f.StringVar(&direction, "direction", "", "Course quadrant: N, E, S or W")
	f.IntVar(&c.Limit, "limit", 0, "Maximum number of rows (0 = no limit)")
	f.StringVar(&table, "table", storage.TablePositions, "Table to query: "+tableNames())
	addOutputFlags(cmd, &format, &output)
	return cmd
}

func newVesselsCmd(a *app) *cobra.Command {
	var (
		parts  bool
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:     "vessels [MMSI...]",
		Short:   "Look up static and voyage records",
		GroupID: "data",
		Long: `Print the static and voyage records (message type 5) of the given vessels,
or of every vessel when no MMSI is given. With --parts, print the class B
static data parts (message type 24) instead, which requires the extended
schema.`,
		Example: `  aisdb vessels 351759000
  aisdb vessels --format csv -o vessels.csv
  aisdb vessels --extended --parts 271041815`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids := make([]uint32, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseUint(arg, 10, 32)
				if err != nil {
					return fmt.Errorf("invalid mmsi %q: %w", arg, err)
				}
				ids = append(ids, uint32(id))
			}

			f, err := outputFormat(format, output)
			if err != nil {
				return err
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			engine, err := a.engine(store)
			if err != nil {
				return err
			}
			var rs *query.ResultSet
			if parts {
				rs, err = engine.StaticParts(ctx, ids...)
			} else {
				rs, err = engine.Vessels(ctx, ids...)
			}
			if err != nil {
				return err
			}
			return writeResult(cmd, rs, f, output)
		},
	}

	cmd.Flags().BoolVar(&parts, "parts", false, "Print class B static data parts")
	addOutputFlags(cmd, &format, &output)
	return cmd
}

func addOutputFlags(cmd *cobra.Command, format, output *string) {
	cmd.Flags().StringVar(format, "format", "", "Output format: csv, json, geojson, kml, wkt, xlsx, parquet or shp (default: from --output, else csv)")
	cmd.Flags().StringVarP(output, "output", "o", "", "Output file (default: stdout)")
}

// outputFormat resolves the format from the flag, then the output file
// extension, falling back to CSV.
func outputFormat(format, output string) (export.Format, error) {
	switch {
	case format != "":
		f, err := export.ParseFormat(format)
		if err != nil {
			return "", err
		}
		if f == export.Shapefile && output == "" {
			return "", errors.New("shapefile output requires --output")
		}
		return f, nil
	case output != "":
		return export.FormatFromPath(output)
	}
	return export.CSV, nil
}

func writeResult(cmd *cobra.Command, rs *query.ResultSet, f export.Format, output string) error {
	if output == "" {
		return export.Write(cmd.OutOrStdout(), rs, f)
	}
	if f == export.Shapefile {
		return export.WriteShapefile(output, rs)
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := export.Write(out, rs, f); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", rs.Len(), output)
	return nil
}
