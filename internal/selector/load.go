package selector

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions tune how structured files are read.
type LoadOptions struct {
	// Column names the CSV column or JSON object field holding the value.
	// Empty selects the first CSV column; JSON objects then need a "value" field.
	Column string
}

// Load reads every value from path. The format is chosen by extension:
// .csv, .json, .yaml/.yml, anything else is one value per line.
func Load(path string, opts LoadOptions) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, opts.Column)
	case ".json":
		return loadJSON(path, opts.Column)
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return loadLines(path)
	}
}

// loadLines skips blank lines and lines starting with '#'.
func loadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var values []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		values = append(values, strings.TrimRight(line, "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

func loadCSV(path, column string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least one header row and one data row")
	}

	col := 0
	if column != "" {
		col = -1
		for i, name := range rows[0] {
			if strings.TrimSpace(name) == column {
				col = i
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("CSV column %q not found", column)
		}
	}

	values := make([]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if col >= len(row) {
			return nil, fmt.Errorf("row %d has %d fields, expected at least %d", i+2, len(row), col+1)
		}
		values = append(values, row[col])
	}
	return values, nil
}

func loadJSON(path, field string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}

	var raw []interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if field == "" {
		field = "value"
	}

	values := make([]string, 0, len(raw))
	for i, item := range raw {
		switch v := item.(type) {
		case string:
			values = append(values, v)
		case map[string]interface{}:
			val, ok := v[field]
			if !ok {
				return nil, fmt.Errorf("record %d has no %q field", i, field)
			}
			values = append(values, fmt.Sprintf("%v", val))
		default:
			values = append(values, fmt.Sprintf("%v", v))
		}
	}
	return values, nil
}

func loadYAML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open YAML file: %w", err)
	}
	var values []string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}
	return values, nil
}
