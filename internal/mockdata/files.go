package mockdata

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Default sheet names, matching the published workbook.
const (
	Dose1Sheet = "At least 1 Dose  by FSA"
	Dose2Sheet = "2 doses by FSA"
)

// Paths locates the files written by WriteFiles.
type Paths struct {
	Workbook    string
	Population  string
	Inspections string
}

// WriteFiles writes the statistics workbook, the census CSV, and the
// inspection registry for ds into dir.
func WriteFiles(dir string, ds *Dataset) (Paths, error) {
	paths := Paths{
		Workbook:    filepath.Join(dir, "ICES-COVID19-Vaccination-Data-by-FSA.xlsx"),
		Population:  filepath.Join(dir, "T120120211212055123.csv"),
		Inspections: filepath.Join(dir, "ds.xml"),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return paths, eris.Wrap(err, "mockdata: create output dir")
	}
	if err := writeWorkbook(paths.Workbook, ds); err != nil {
		return paths, err
	}
	if err := writeFile(paths.Population, func(w io.Writer) error { return writePopulation(w, ds) }); err != nil {
		return paths, err
	}
	if err := writeFile(paths.Inspections, func(w io.Writer) error { return writeInspections(w, ds) }); err != nil {
		return paths, err
	}
	return paths, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "mockdata: create %s", filepath.Base(path))
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "mockdata: write %s", filepath.Base(path))
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "mockdata: close %s", filepath.Base(path))
	}
	return nil
}

func writeWorkbook(path string, ds *Dataset) error {
	f := xlsx.NewFile()

	dose1, err := f.AddSheet(Dose1Sheet)
	if err != nil {
		return eris.Wrap(err, "mockdata: add sheet")
	}
	addRow(dose1, "FSA", "Population", "Cases per 100", "Hospitalizations per 1,000", "Deaths per 1,000", "% at least 1 dose")
	addRow(dose1, "Ontario", "14734014", "4.1", "2.2", "0.7", "0.83")
	for _, r := range ds.Regions {
		deaths := formatFloat(r.DeathsPer1000)
		if r.SuppressDeaths {
			deaths = "*"
		}
		addRow(dose1, r.Code, strconv.Itoa(r.Population),
			formatFloat(r.CasesPer100), formatFloat(r.HospitalizationsPer1000), deaths, formatFloat(r.PercentOneDose))
	}
	// A region outside the prefix, as in the province-wide sheet.
	addRow(dose1, "K1P", "3120", "3.3", "1.1", "*", "0.9")
	addRow(dose1, "")
	addRow(dose1, "Source: ICES")

	dose2, err := f.AddSheet(Dose2Sheet)
	if err != nil {
		return eris.Wrap(err, "mockdata: add sheet")
	}
	addRow(dose2, "FSA", "Population", "% 2 doses")
	for i := len(ds.Regions) - 1; i >= 0; i-- {
		r := ds.Regions[i]
		addRow(dose2, r.Code, strconv.Itoa(r.Population), formatFloat(r.PercentTwoDoses))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "mockdata: save workbook")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func writePopulation(w io.Writer, ds *Dataset) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Geographic code", "Geographic name", "Province or territory", "Incompleteness", "Population, 2016"},
		{"01", "Canada", "", "", "35151728"},
	}
	for _, r := range ds.Regions {
		rows = append(rows, []string{r.Code, r.Code, "Ontario", "0", strconv.Itoa(r.Population)})
	}
	rows = append(rows, []string{"Note:"}, []string{"Source: Statistics Canada, 2016 Census of Population."})
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

type xmlRegistry struct {
	XMLName        xml.Name           `xml:"DINESAFE_DATA"`
	Establishments []xmlEstablishment `xml:"ESTABLISHMENT"`
}

type xmlEstablishment struct {
	ID          int             `xml:"ID"`
	Name        string          `xml:"NAME"`
	Latitude    string          `xml:"LATITUDE"`
	Longitude   string          `xml:"LONGITUDE"`
	Inspections []xmlInspection `xml:"INSPECTION"`
}

type xmlInspection struct {
	Status     string          `xml:"ESTABLISHMENT_STATUS"`
	Infraction []xmlInfraction `xml:"INFRACTION"`
}

type xmlInfraction struct {
	Severity string `xml:"SEVERITY"`
}

// writeInspections writes ISO-8859-1, like the published registry.
func writeInspections(w io.Writer, ds *Dataset) error {
	enc := transform.NewWriter(w, charmap.ISO8859_1.NewEncoder())
	if _, err := io.WriteString(enc, `<?xml version="1.0" encoding="ISO-8859-1"?>`+"\n"); err != nil {
		return err
	}

	reg := xmlRegistry{}
	for i, e := range ds.Establishments {
		est := xmlEstablishment{
			ID:        100000 + i,
			Name:      e.Name,
			Latitude:  formatFloat(e.Lat),
			Longitude: formatFloat(e.Lon),
		}
		insp := xmlInspection{Status: "Pass"}
		for _, s := range e.Severities {
			insp.Infraction = append(insp.Infraction, xmlInfraction{Severity: severityLabel(s.String())})
		}
		est.Inspections = append(est.Inspections, insp)
		reg.Establishments = append(reg.Establishments, est)
	}

	x := xml.NewEncoder(enc)
	x.Indent("", "  ")
	if err := x.Encode(reg); err != nil {
		return err
	}
	if err := x.Close(); err != nil {
		return err
	}
	return enc.Close()
}

func severityLabel(s string) string {
	switch s {
	case "minor":
		return "M - Minor"
	case "significant":
		return "S - Significant"
	case "crucial":
		return "C - Crucial"
	default:
		return fmt.Sprintf("NA - %s", s)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
