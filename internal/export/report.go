package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/school-risk/internal/model"
)

// Report formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// WriteReport writes result in the given format. Zone geometry is left out;
// use WriteGeoJSON for the rings.
func WriteReport(w io.Writer, result *model.AnalysisResult, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(result), "export: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "export: encode yaml")
		}
		return eris.Wrap(enc.Close(), "export: close yaml")
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}
