package scenario

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadFile reads a catalog from a CSV file with a header row followed by
// `scenario,role` rows. Scenarios keep the order of their first row.
func LoadFile(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	catalog, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("load scenarios %s: %w", path, err)
	}
	return catalog, nil
}

func Read(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var scenarios []Scenario
	index := make(map[string]int)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		role := strings.TrimSpace(row[1])
		if name == "" || role == "" {
			continue
		}
		pos, ok := index[name]
		if !ok {
			pos = len(scenarios)
			index[name] = pos
			scenarios = append(scenarios, Scenario{Name: name})
		}
		scenarios[pos].Roles = append(scenarios[pos].Roles, role)
	}
	return NewCatalog(scenarios)
}
