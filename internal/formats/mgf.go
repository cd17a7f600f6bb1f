package formats

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mmproteo/internal/table"
)

// MGF peak list columns. Arrays are stored as JSON text.
const (
	MzArrayColumn        = "m/z array"
	IntensityArrayColumn = "intensity array"
)

// ReadMGF parses a Mascot Generic Format file. Every BEGIN IONS block
// becomes one row holding its lowercased parameters and its peak list.
func ReadMGF(ctx context.Context, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := table.New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		row         table.Row
		mz, inten   []float64
		lineNo      int
		inIonsBlock bool
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "!") {
			continue
		}
		switch {
		case strings.EqualFold(line, "BEGIN IONS"):
			if inIonsBlock {
				return nil, fmt.Errorf("line %d: nested BEGIN IONS", lineNo)
			}
			inIonsBlock = true
			row, mz, inten = table.Row{}, nil, nil
		case strings.EqualFold(line, "END IONS"):
			if !inIonsBlock {
				return nil, fmt.Errorf("line %d: END IONS without BEGIN IONS", lineNo)
			}
			inIonsBlock = false
			if err := setArray(row, MzArrayColumn, mz); err != nil {
				return nil, err
			}
			if err := setArray(row, IntensityArrayColumn, inten); err != nil {
				return nil, err
			}
			out.Append(row)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		case !inIonsBlock:
			// Global parameters outside any block do not describe a spectrum.
		case strings.Contains(line, "=") && !startsWithDigit(line):
			key, value, _ := strings.Cut(line, "=")
			setParam(row, strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value))
		default:
			fields := strings.Fields(line)
			peakMz, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid peak %q", lineNo, line)
			}
			var peakIntensity float64
			if len(fields) > 1 {
				if peakIntensity, err = strconv.ParseFloat(fields[1], 64); err != nil {
					return nil, fmt.Errorf("line %d: invalid peak %q", lineNo, line)
				}
			}
			mz = append(mz, peakMz)
			inten = append(inten, peakIntensity)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inIonsBlock {
		return nil, fmt.Errorf("unterminated BEGIN IONS block at end of %s", path)
	}
	return out, nil
}

func setParam(row table.Row, key, value string) {
	if _, exists := row[key]; exists {
		return
	}
	if key == "pepmass" {
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return
		}
		row[key] = table.ParseValue(fields[0])
		if len(fields) > 1 {
			row[key+"_intensity"] = table.ParseValue(fields[1])
		}
		return
	}
	// Charges like "2+" and titles stay text.
	row[key] = table.ParseValue(value)
}

func setArray(row table.Row, column string, values []float64) error {
	if values == nil {
		values = []float64{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return err
	}
	row[column] = string(encoded)
	return nil
}

func startsWithDigit(line string) bool {
	return line[0] >= '0' && line[0] <= '9'
}
