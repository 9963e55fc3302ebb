package atmos

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

const nameDirective = "name:"

// Parse reads a whitespace separated model table from r.
//
// Each data row is "logtau temperature ne". Lines starting with '#' are
// comments; a "# name: <name>" comment sets the model name. Malformed rows
// are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) (*Model, error) {
	scanner := bufio.NewScanner(r)
	m := &Model{}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if comment, ok := strings.CutPrefix(line, "#"); ok {
			comment = strings.TrimSpace(comment)
			if name, ok := strings.CutPrefix(comment, nameDirective); ok && m.Name == "" {
				m.Name = strings.TrimSpace(name)
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			logger.Warn("skipping model row with wrong column count", "line", lineNo, "columns", len(fields))
			continue
		}

		var vals [3]float64
		var err error
		for i, f := range fields {
			vals[i], err = strconv.ParseFloat(f, 64)
			if err != nil {
				break
			}
		}
		if err != nil {
			logger.Warn("skipping model row with invalid number", "line", lineNo, "error", err)
			continue
		}

		m.LogTau = append(m.LogTau, vals[0])
		m.Temperature = append(m.Temperature, vals[1])
		m.Ne = append(m.Ne, vals[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading model data: %w", err)
	}

	if len(m.LogTau) == 0 {
		return nil, ErrNoData
	}
	return m, nil
}

// Write serialises m in the format read by Parse. Values are written with the
// shortest representation that parses back to the same float64.
func Write(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	if m.Name != "" {
		fmt.Fprintf(bw, "# %s %s\n", nameDirective, m.Name)
	}
	fmt.Fprintf(bw, "# logtau T[K] ne[cm^-3]\n")
	for k := range m.LogTau {
		fmt.Fprintf(bw, "%s %s %s\n", formatValue(m.LogTau[k]), formatValue(m.Temperature[k]), formatValue(m.Ne[k]))
	}
	return bw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
