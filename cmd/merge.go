package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/layers"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/source"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge official and community school files",
	Long:  "Links an official school file (GeoJSON) with a community file (GeoJSON or saved Overpass JSON) and writes the merged schools as GeoJSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("merge"); err != nil {
			return err
		}

		officialPath, _ := cmd.Flags().GetString("official")
		communityPath, _ := cmd.Flags().GetString("community")
		out, _ := cmd.Flags().GetString("out")

		official, err := layers.FileLayer("official", layers.RolePrimarySchools, model.CategorySchools, officialPath).Fetch(ctx)
		if err != nil {
			return eris.Wrap(err, "merge: read official")
		}
		community, err := layers.FileLayer("community", layers.RoleSecondarySchools, model.CategorySchools, communityPath).Fetch(ctx)
		if err != nil {
			return eris.Wrap(err, "merge: read community")
		}

		merged := newLinker().Merge(official.Schools, community.Schools)
		zap.L().Info("schools merged",
			zap.Int("official", len(official.Schools)),
			zap.Int("community", len(community.Schools)),
			zap.Int("merged", len(merged)),
			zap.Int("hybrid", countProvenance(merged, model.ProvenanceHybrid)),
		)

		write := func(w io.Writer) error { return source.EncodeSchools(w, merged) }
		if out == "" || out == "-" {
			return write(os.Stdout)
		}
		if !strings.EqualFold(filepath.Ext(out), ".geojson") && !strings.EqualFold(filepath.Ext(out), ".json") {
			return eris.Errorf("merge: output must be .geojson or .json, got %q", out)
		}
		return writeFile(out, write)
	},
}

func countProvenance(schools []model.School, p model.Provenance) int {
	n := 0
	for _, s := range schools {
		if s.Provenance == p {
			n++
		}
	}
	return n
}

func init() {
	mergeCmd.Flags().String("official", "", "official schools GeoJSON file (required)")
	mergeCmd.Flags().String("community", "", "community schools GeoJSON or Overpass JSON file (required)")
	mergeCmd.Flags().String("out", "", "output GeoJSON file (default stdout)")
	_ = mergeCmd.MarkFlagRequired("official")
	_ = mergeCmd.MarkFlagRequired("community")
	rootCmd.AddCommand(mergeCmd)
}
