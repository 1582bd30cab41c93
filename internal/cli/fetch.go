package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [resort-id...]",
		Short: "Run one aggregation cycle and print the result",
		Long: `fetch runs a single aggregation cycle over every registered resort,
or refreshes only the given resorts, and prints one row per record.`,
		Example: `snow-status fetch
snow-status fetch --json stubai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			var records []resort.Record
			if len(args) == 0 {
				records = rt.service.AggregateAll(cmd.Context())
			} else {
				for _, id := range args {
					rec, err := rt.service.Refresh(cmd.Context(), id)
					if err != nil {
						return err
					}
					records = append(records, rec)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			return renderRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().Bool("json", false, "Print records as JSON")
	return cmd
}

func renderRecords(out io.Writer, records []resort.Record) error {
	table := tablewriter.NewTable(out)
	table.Header([]string{"Resort", "Status", "Lifts", "Snow (cm)", "Weather", "Note"})

	for _, r := range records {
		row := []string{r.ResortID, paintStatus(r.Status), lifts(r), snow(r), weatherCell(r), note(r)}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

var statusColors = map[resort.RecordStatus]*color.Color{
	resort.StatusLive:        color.New(color.FgGreen),
	resort.StatusStatic:      color.New(color.FgCyan),
	resort.StatusMaintenance: color.New(color.FgBlue),
	resort.StatusStale:       color.New(color.FgYellow),
	resort.StatusError:       color.New(color.FgRed),
}

func paintStatus(s resort.RecordStatus) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

func lifts(r resort.Record) string {
	if r.LiftsOpen == nil || r.LiftsTotal == nil {
		return "-"
	}
	return fmt.Sprintf("%d/%d", *r.LiftsOpen, *r.LiftsTotal)
}

func snow(r resort.Record) string {
	if r.Snow == nil {
		return "-"
	}
	return fmt.Sprintf("%s / %s", cm(r.Snow.Valley), cm(r.Snow.Mountain))
}

func cm(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}

func weatherCell(r resort.Record) string {
	if r.Weather == nil || r.Weather.Current == nil {
		return "-"
	}
	c := r.Weather.Current
	if c.Temperature == nil {
		return c.Icon
	}
	return fmt.Sprintf("%s %.1f°C", c.Icon, *c.Temperature)
}

func note(r resort.Record) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.CachedAt != nil:
		return "cached " + r.CachedAt.Format("15:04")
	case r.Traffic != nil:
		return fmt.Sprintf("drive %d min", r.Traffic.Duration/60)
	}
	return ""
}
