package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/LdDl/dtanet"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	cfg        *dtanet.Config
)

var rootCmd = &cobra.Command{
	Use:   "dtaprep",
	Short: "Prepare road networks for dynamic traffic assignment",
	Long: `dtaprep reads a DTA network (scenario, base and advanced network files), reshapes it and writes it back.

Available commands:
  prepare - insert virtual layer, move connectors to midblocks, fix overlapping and short links
  export  - export network to CSV (WKT geometry) or GeoJSON
  osm     - import road network from OSM file
  tod     - split single-slice demand by time-of-day factors`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := dtanet.InitLogger(verbose); err != nil {
			return errors.Wrap(err, "Can't initialize logger")
		}
		loaded, err := dtanet.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		dtanet.Logger().Debug(cfg.String())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		dtanet.SyncLogger()
	},
}

var (
	scenarioFile    string
	baseFile        string
	advancedFile    string
	outBaseFile     string
	outAdvancedFile string
)

func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scenarioFile, "scenario", "scen.dqt", "Scenario file")
	cmd.Flags().StringVar(&baseFile, "base", "base.dqt", "Base network file")
	cmd.Flags().StringVar(&advancedFile, "advanced", "", "Advanced network file (optional)")
}

func readNetwork() (*dtanet.Scenario, *dtanet.Network, error) {
	scn, err := dtanet.ReadScenario(scenarioFile)
	if err != nil {
		return nil, nil, err
	}
	net, err := dtanet.ReadNetwork(scn, baseFile, advancedFile, dtanet.WithConfig(*cfg))
	if err != nil {
		return nil, nil, err
	}
	return scn, net, nil
}

var (
	virtualStartID int
	skipMidblocks  bool
	splitVetoTypes string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Insert virtual layer and move centroid connectors to midblocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, net, err := readNetwork()
		if err != nil {
			return err
		}
		startID := dtanet.NodeID(virtualStartID)
		if startID <= 0 {
			startID = net.NewNodeID()
		}
		if _, err := net.InsertVirtualNodeBetweenCentroidsAndRoadNodes(startID, 0); err != nil {
			return err
		}
		if !skipMidblocks {
			veto, err := facilityVeto(splitVetoTypes)
			if err != nil {
				return err
			}
			opts := dtanet.MidblockOptions{
				SplitVeto:           veto,
				MinSplitLength:      cfg.MinSplitLinkLength,
				MoveVirtualNodeDist: cfg.MoveVirtualNodeDistance,
			}
			if _, err := net.MoveCentroidConnectorsFromIntersectionsToMidblocks(opts); err != nil {
				return err
			}
		}
		net.HandleOverlappingLinks(true, cfg.MoveVirtualNodeDistance)
		net.HandleShortLinks(cfg.MinSplitLinkLength, true, false)
		if err := net.CheckInvariants(); err != nil {
			return err
		}
		return net.WriteNetwork(outBaseFile, outAdvancedFile)
	},
}

// facilityVeto parses comma separated facility types which must not be split
func facilityVeto(s string) (dtanet.LinkPredicate, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	vetoed := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		ft, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't parse facility type '%s'", part))
		}
		vetoed[ft] = struct{}{}
	}
	return func(link *dtanet.Link) bool {
		_, ok := vetoed[link.FacilityType()]
		return ok
	}, nil
}

var (
	exportOut       string
	exportFormat    string
	exportSpherical bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export network to CSV or GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, net, err := readNetwork()
		if err != nil {
			return err
		}
		return exportNetwork(net, exportOut, exportFormat, exportSpherical)
	},
}

func exportNetwork(net *dtanet.Network, fname, format string, spherical bool) error {
	switch strings.ToLower(format) {
	case "csv":
		return net.ExportToCSV(fname)
	case "geojson":
		fnamePart := strings.TrimSuffix(fname, ".geojson")
		if err := dtanet.WriteGeoJSON(fnamePart+"_links.geojson", net.LinksToGeoJSON(spherical)); err != nil {
			return err
		}
		return dtanet.WriteGeoJSON(fnamePart+"_nodes.geojson", net.NodesToGeoJSON(spherical))
	default:
		return fmt.Errorf("unknown export format '%s'. Expected values: csv / geojson", format)
	}
}

var (
	osmFile        string
	osmHighways    string
	osmStartEnd    string
	osmScenario    string
	osmOutBase     string
	osmOutAdvanced string
	osmExport      string
	osmFormat      string
	osmSpherical   bool
)

var osmCmd = &cobra.Command{
	Use:   "osm",
	Short: "Import road network from OSM file",
	RunE: func(cmd *cobra.Command, args []string) error {
		times := strings.Split(osmStartEnd, "-")
		if len(times) != 2 {
			return fmt.Errorf("bad study period '%s'. Expected HH:MM-HH:MM", osmStartEnd)
		}
		start, err := dtanet.ParseTime(times[0])
		if err != nil {
			return err
		}
		end, err := dtanet.ParseTime(times[1])
		if err != nil {
			return err
		}
		scn, err := dtanet.NewScenario(start, end)
		if err != nil {
			return err
		}
		opts := dtanet.ImportOSMOptions{}
		if osmHighways != "" {
			opts.Highways = strings.Split(osmHighways, ",")
		}
		net, err := dtanet.ImportOSMFile(scn, osmFile, opts, dtanet.WithConfig(*cfg))
		if err != nil {
			return err
		}
		if err := scn.WriteScenario(osmScenario); err != nil {
			return err
		}
		if err := net.WriteNetwork(osmOutBase, osmOutAdvanced); err != nil {
			return err
		}
		if osmExport != "" {
			return exportNetwork(net, osmExport, osmFormat, osmSpherical)
		}
		return nil
	},
}

var (
	demandFile    string
	outDemandFile string
	todFactors    string
)

var todCmd = &cobra.Command{
	Use:   "tod",
	Short: "Split single-slice demand by time-of-day factors and drop unreachable OD pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, net, err := readNetwork()
		if err != nil {
			return err
		}
		demand, err := dtanet.ReadDynameqDemand(net, demandFile)
		if err != nil {
			return err
		}
		if todFactors != "" {
			factors := make([]float64, 0)
			for _, part := range strings.Split(todFactors, ",") {
				f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					return errors.Wrap(err, fmt.Sprintf("Can't parse factor '%s'", part))
				}
				factors = append(factors, f)
			}
			demand, err = demand.ApplyTimeOfDayFactors(factors)
			if err != nil {
				return err
			}
		}
		if _, err := demand.RemoveInvalidODPairs(); err != nil {
			return err
		}
		return demand.WriteDynameqDemand(outDemandFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file (defaults and DTA_* environment variables are used otherwise)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	addNetworkFlags(prepareCmd)
	prepareCmd.Flags().StringVar(&outBaseFile, "out-base", "prepared_base.dqt", "Output base network file")
	prepareCmd.Flags().StringVar(&outAdvancedFile, "out-advanced", "prepared_advn.dqt", "Output advanced network file")
	prepareCmd.Flags().IntVar(&virtualStartID, "virtual-start-id", 0, "First id of virtual nodes. Zero means max node id + 1")
	prepareCmd.Flags().BoolVar(&skipMidblocks, "skip-midblocks", false, "Do not move connectors from intersections to midblocks")
	prepareCmd.Flags().StringVar(&splitVetoTypes, "no-split", "", "Comma separated facility types which must not be split")

	addNetworkFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "network.csv", "Output file name. E.g.: 'map.csv' gives 'map_nodes.csv', 'map_links.csv' and 'map_movements.csv'")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format. Expected values: csv / geojson")
	exportCmd.Flags().BoolVar(&exportSpherical, "spherical", false, "Convert EPSG:3857 coordinates to longitude/latitude in GeoJSON")

	osmCmd.Flags().StringVar(&osmFile, "file", "my_graph.osm.pbf", "OSM file (.osm, .xml or .pbf)")
	osmCmd.Flags().StringVar(&osmHighways, "highways", "motorway,motorway_link,trunk,trunk_link,primary,primary_link,secondary,secondary_link,tertiary,tertiary_link,residential,unclassified", "Set of needed highway tags (separated by commas)")
	osmCmd.Flags().StringVar(&osmStartEnd, "period", "07:00-09:00", "Study period of generated scenario")
	osmCmd.Flags().StringVar(&osmScenario, "scenario", "scen.dqt", "Output scenario file")
	osmCmd.Flags().StringVar(&osmOutBase, "out-base", "base.dqt", "Output base network file")
	osmCmd.Flags().StringVar(&osmOutAdvanced, "out-advanced", "advn.dqt", "Output advanced network file")
	osmCmd.Flags().StringVar(&osmExport, "export", "", "Also export network to this file (see 'export --format')")
	osmCmd.Flags().StringVar(&osmFormat, "format", "csv", "Export format. Expected values: csv / geojson")
	osmCmd.Flags().BoolVar(&osmSpherical, "spherical", true, "Convert coordinates to longitude/latitude in GeoJSON")

	addNetworkFlags(todCmd)
	todCmd.Flags().StringVar(&demandFile, "demand", "matx.dqt", "Demand file in full matrix format")
	todCmd.Flags().StringVar(&outDemandFile, "out", "matx_tod.dqt", "Output demand file")
	todCmd.Flags().StringVar(&todFactors, "factors", "", "Comma separated time-of-day factors summing to 1")

	rootCmd.AddCommand(prepareCmd, exportCmd, osmCmd, todCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
