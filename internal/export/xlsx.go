package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/school-risk/internal/model"
)

// ZonesSheet is the name of the statistics sheet.
const ZonesSheet = "zones"

// TotalsLabel marks the summary row of the statistics sheet.
const TotalsLabel = "total"

var zoneHeader = []string{"zone_id", "radius_km", "risk_level", "schools", "hospitals", "police", "fire_stations", "risk_zones", "total", "ring_approximate"}

// Workbook builds a workbook with one row per zone followed by a totals row.
// The totals row sums the per-zone counts; features outside every ring are
// not included.
func Workbook(result *model.AnalysisResult) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(ZonesSheet)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range zoneHeader {
		header.AddCell().SetString(h)
	}

	approx := make(map[int]bool, len(result.Zones))
	for _, z := range result.Zones {
		approx[z.ID] = z.RingApproximate
	}

	for _, s := range result.Statistics {
		row := sheet.AddRow()
		row.AddCell().SetInt(s.ZoneID)
		row.AddCell().SetFloat(s.RadiusKm)
		row.AddCell().SetString(string(s.Risk))
		addCounts(row, s.Counts)
		row.AddCell().SetInt(s.Total)
		row.AddCell().SetBool(approx[s.ZoneID])
	}

	counted := result.CountedTotals()
	row := sheet.AddRow()
	row.AddCell().SetString(TotalsLabel)
	row.AddCell().SetFloat(result.Config.TotalRadiusKm)
	row.AddCell().SetString("")
	addCounts(row, counted)
	row.AddCell().SetInt(counted.Total())
	row.AddCell().SetInt(result.ApproximateRings)

	return f, nil
}

func addCounts(row *xlsx.Row, cc model.CategoryCounts) {
	for _, c := range model.Categories() {
		row.AddCell().SetInt(cc.Get(c))
	}
}

// WriteXLSX writes the statistics workbook to w.
func WriteXLSX(w io.Writer, result *model.AnalysisResult) error {
	f, err := Workbook(result)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "xlsx: write")
}

// SaveXLSX writes the statistics workbook to path.
func SaveXLSX(path string, result *model.AnalysisResult) error {
	f, err := Workbook(result)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}
