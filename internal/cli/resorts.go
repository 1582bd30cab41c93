package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/i474232898/snow-status-aggregation/internal/config"
)

func NewResortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resorts",
		Short: "List the configured resort registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			defs, err := config.LoadResorts(cfg.ResortsFile)
			if err != nil {
				return err
			}

			table := tablewriter.NewTable(cmd.OutOrStdout())
			table.Header([]string{"ID", "Name", "Kind", "Vendor", "Coordinates", "Traffic"})
			for _, d := range defs {
				vendor := d.Vendor
				if d.Maintenance {
					vendor = "maintenance"
				}
				coords := "-"
				if d.HasCoordinates() {
					coords = fmt.Sprintf("%.4f,%.4f", *d.Lat, *d.Lon)
				}
				trafficID := d.TrafficID
				if trafficID == "" {
					trafficID = "-"
				}
				if err := table.Append([]string{d.ID, d.Name, d.Kind, vendor, coords, trafficID}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}
