// Package csvload parses port and demand CSV files into a network submission.
package csvload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"linerd/internal/integrations"
	"linerd/internal/model"
)

// Loader reads a ports CSV and a demands CSV from disk. It implements
// integrations.NetworkSource.
type Loader struct {
	PortsPath   string
	DemandsPath string
}

func (l Loader) Name() string { return "csv" }

func (l Loader) FetchNetwork(cfg map[string]any) (integrations.NetworkBatch, error) {
	var batch integrations.NetworkBatch
	pf, err := os.Open(l.PortsPath)
	if err != nil {
		return batch, err
	}
	defer pf.Close()
	ports, err := ReadPorts(pf)
	if err != nil {
		return batch, err
	}
	df, err := os.Open(l.DemandsPath)
	if err != nil {
		return batch, err
	}
	defer df.Close()
	demands, err := ReadDemands(df, len(ports))
	if err != nil {
		return batch, err
	}
	for _, p := range ports {
		batch.Ports = append(batch.Ports, integrations.Port{Name: p.Name, Lat: p.Lat, Lng: p.Lng, FixedCost: p.FixedCost})
	}
	for _, d := range demands {
		batch.Demands = append(batch.Demands, integrations.Demand{
			Origin: d.Origin, Destination: d.Destination, Volume: d.Demand,
			Constant: d.Constant, Preference: d.Preference, Varepsilon: d.Varepsilon,
		})
	}
	return batch, nil
}

// ReadPorts parses rows of: name,lat,lng,fixedCost. A header row is skipped
// when the second column does not parse as a number.
func ReadPorts(r io.Reader) ([]model.PortIn, error) {
	rows, err := readRows(r, 4)
	if err != nil {
		return nil, err
	}
	out := []model.PortIn{}
	for i, rec := range rows {
		lat, err1 := strconv.ParseFloat(rec[1], 64)
		lng, err2 := strconv.ParseFloat(rec[2], 64)
		cost, err3 := strconv.ParseFloat(rec[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			if i == 0 { continue } // header
			return nil, fmt.Errorf("ports row %d: bad number", i+1)
		}
		out = append(out, model.PortIn{Name: rec[0], Lat: lat, Lng: lng, FixedCost: cost})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no ports parsed")
	}
	return out, nil
}

// ReadDemands parses rows of: origin,destination,demand[,constant,preference,varepsilon].
func ReadDemands(r io.Reader, numPorts int) ([]model.ODPairIn, error) {
	rows, err := readRows(r, 3)
	if err != nil {
		return nil, err
	}
	out := []model.ODPairIn{}
	for i, rec := range rows {
		o, err1 := strconv.Atoi(rec[0])
		d, err2 := strconv.Atoi(rec[1])
		vol, err3 := strconv.ParseFloat(rec[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			if i == 0 { continue } // header
			return nil, fmt.Errorf("demands row %d: bad number", i+1)
		}
		if o < 0 || o >= numPorts || d < 0 || d >= numPorts || o == d {
			return nil, fmt.Errorf("demands row %d: invalid pair (%d,%d)", i+1, o, d)
		}
		od := model.ODPairIn{Origin: o, Destination: d, Demand: vol}
		if len(rec) >= 6 {
			od.Constant, _ = strconv.ParseFloat(rec[3], 64)
			od.Preference, _ = strconv.ParseFloat(rec[4], 64)
			od.Varepsilon, _ = strconv.ParseFloat(rec[5], 64)
		}
		out = append(out, od)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no demands parsed")
	}
	return out, nil
}

// BuildNetworkIn assembles a network submission from parsed CSV data.
func BuildNetworkIn(name string, ports []model.PortIn, pairs []model.ODPairIn, numRoutes int) model.NetworkIn {
	return model.NetworkIn{Name: name, Ports: ports, ODPairs: pairs, NumRoutes: numRoutes}
}

func readRows(r io.Reader, minFields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	out := [][]string{}
	for _, rec := range rows {
		if len(rec) == 0 || strings.HasPrefix(rec[0], "#") { continue }
		if len(rec) < minFields {
			return nil, fmt.Errorf("row has %d fields, want at least %d", len(rec), minFields)
		}
		out = append(out, rec)
	}
	return out, nil
}
