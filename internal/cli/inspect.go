package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/raster"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		crs          string
		areaWeighted bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <mask.asc>",
		Short: "Describe a raster mask",
		Long: `Describe a raster mask: its extent, cell size, valid cells and how
uniform samples are weighted. Use it to check a mask before a long run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := geo.ParseCRS(crs)
			if err != nil {
				return err
			}
			grid, err := raster.ReadASCIIGridFile(args[0], ref, raster.WithAreaWeighting(areaWeighted))
			if err != nil {
				return err
			}
			c.Logger.Debug("mask loaded", "path", args[0], "cells", grid.NCols*grid.NRows)
			printMask(args[0], grid)
			return nil
		},
	}

	cmd.Flags().StringVar(&crs, "crs", "", "reference system of the mask, e.g. EPSG:4326")
	cmd.Flags().BoolVar(&areaWeighted, "area-weighted", true, "weight geographic cells by their area")

	return cmd
}

func printMask(path string, g *raster.Grid) {
	total := g.NCols * g.NRows
	valid := g.ValidCellCount()

	fmt.Println(StyleTitle.Render(path))
	printKeyValue("CRS", crsLabel(g.CRS()))
	printKeyValue("Size", fmt.Sprintf("%d × %d cells of %g", g.NCols, g.NRows, g.CellSize))
	b := g.Bound()
	printKeyValue("Extent", fmt.Sprintf("[%g, %g] – [%g, %g]", b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()))
	printKeyValue("Valid", fmt.Sprintf("%d of %d (%.1f%%)", valid, total, 100*float64(valid)/float64(max(total, 1))))
	weighting := "uniform per cell"
	if g.AreaWeighted() {
		weighting = "by spherical cell area"
	}
	printKeyValue("Sampling", weighting)
	if valid == 0 {
		printWarning("The mask has no valid cells; no point can be placed")
	}
}
