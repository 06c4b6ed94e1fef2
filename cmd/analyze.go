package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/export"
	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/layers"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a buffer-zone analysis around a point",
	Long:  "Loads every layer, builds the risk rings around --lat/--lng and prints per-zone counts. Results can also be written as XLSX, shapefile or GeoJSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		radius, _ := cmd.Flags().GetFloat64("radius")
		width, _ := cmd.Flags().GetFloat64("width")
		fromDir, _ := cmd.Flags().GetString("from-dir")
		format, _ := cmd.Flags().GetString("format")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		shpPath, _ := cmd.Flags().GetString("shp")
		geojsonPath, _ := cmd.Flags().GetString("geojson")
		save, _ := cmd.Flags().GetBool("save")
		refresh, _ := cmd.Flags().GetBool("refresh")

		zc := zoneConfig(radius, width)
		if err := checkLimits(zc); err != nil {
			return err
		}

		var st store.Store
		if save || fromDir == "" {
			s, err := initStore(ctx)
			if err != nil {
				if save {
					return err
				}
				zap.L().Warn("layer cache unavailable", zap.Error(err))
			} else {
				st = s
				defer st.Close() //nolint:errcheck
			}
		}

		result, err := runAnalysis(ctx, geo.FromLatLng(lat, lng), zc, fromDir, st, refresh)
		if err != nil {
			return err
		}

		if save {
			run := store.NewRun(result)
			if err := st.SaveRun(ctx, run); err != nil {
				return eris.Wrap(err, "analyze: save run")
			}
			zap.L().Info("run saved", zap.String("run_id", run.ID))
		}

		if err := writeExports(result, xlsxPath, shpPath, geojsonPath); err != nil {
			return err
		}
		return export.WriteReport(os.Stdout, result, format)
	},
}

func zoneConfig(radius, width float64) model.ZoneConfig {
	zc := defaultZoneConfig()
	if radius > 0 {
		zc.TotalRadiusKm = radius
	}
	if width > 0 {
		zc.ZoneWidthKm = width
	}
	return zc
}

func checkLimits(zc model.ZoneConfig) error {
	a := cfg.Analysis
	if zc.TotalRadiusKm < a.MinTotalRadiusKm || zc.TotalRadiusKm > a.MaxTotalRadiusKm {
		return eris.Errorf("radius must be between %g and %g km", a.MinTotalRadiusKm, a.MaxTotalRadiusKm)
	}
	if zc.ZoneWidthKm < a.MinZoneWidthKm || zc.ZoneWidthKm > a.MaxZoneWidthKm {
		return eris.Errorf("width must be between %g and %g km", a.MinZoneWidthKm, a.MaxZoneWidthKm)
	}
	return nil
}

// runAnalysis loads the layers and analyzes center. st may be nil.
func runAnalysis(ctx context.Context, center geo.Point, zc model.ZoneConfig, fromDir string, st store.Store, refresh bool) (*model.AnalysisResult, error) {
	analyzer, err := newAnalyzer()
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry(fromDir)
	if err != nil {
		return nil, err
	}

	var cache layers.Cache
	if st != nil && fromDir == "" {
		cache = st
	}
	state, err := newLoader(reg, cache).Load(ctx, layers.LoadOpts{Refresh: refresh})
	if err != nil {
		return nil, eris.Wrap(err, "analyze: load layers")
	}
	for _, name := range state.Failed {
		zap.L().Warn("layer missing from analysis", zap.String("layer", name))
	}

	return analyzer.Analyze(center, zc, state.Schools, state.Snapshot)
}

func writeExports(result *model.AnalysisResult, xlsxPath, shpPath, geojsonPath string) error {
	if xlsxPath != "" {
		if err := export.SaveXLSX(xlsxPath, result); err != nil {
			return err
		}
	}
	if shpPath != "" {
		if err := export.WriteShapefile(shpPath, result); err != nil {
			return err
		}
	}
	if geojsonPath != "" {
		return writeFile(geojsonPath, func(w io.Writer) error {
			return export.WriteGeoJSON(w, result)
		})
	}
	return nil
}

// writeFile creates path and hands it to write.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	f := analyzeCmd.Flags()
	f.Float64("lat", 0, "center latitude (required)")
	f.Float64("lng", 0, "center longitude (required)")
	f.Float64("radius", 0, "total radius in km (default from config)")
	f.Float64("width", 0, "zone width in km (default from config)")
	f.String("from-dir", "", "read layers from local files in this directory")
	f.String("format", export.FormatJSON, "report format: json or yaml")
	f.String("xlsx", "", "write zone statistics to this XLSX file")
	f.String("shp", "", "write zone rings to this shapefile")
	f.String("geojson", "", "write zone rings to this GeoJSON file")
	f.Bool("save", false, "record the run in the store")
	f.Bool("refresh", false, "ignore cached layers")
	_ = analyzeCmd.MarkFlagRequired("lat")
	_ = analyzeCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(analyzeCmd)
}
