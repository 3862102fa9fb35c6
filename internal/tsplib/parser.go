// Package tsplib reads city coordinates from TSPLIB problem files.
package tsplib

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tsp-search/internal/models"
)

const (
	sectionStart = "NODE_COORD_SECTION"
	sectionEnd   = "EOF"
)

// Parse reads a TSPLIB document. Lines between NODE_COORD_SECTION and EOF
// with at least three fields ("id x y") become cities; every other line is
// ignored apart from the NAME and COMMENT headers. Only read errors are
// returned: a document without coordinates yields an empty instance.
func Parse(r io.Reader) (*models.Instance, error) {
	inst := &models.Instance{Cities: []models.City{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	reading := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case sectionStart:
			reading = true
			continue
		case sectionEnd:
			reading = false
			continue
		}

		if !reading {
			parseHeader(inst, line)
			continue
		}

		if c, ok := parseCity(line); ok {
			inst.Cities = append(inst.Cities, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tsplib data: %w", err)
	}

	return inst, nil
}

// ParseFile parses the file at path. An instance without a NAME header is
// named after the file.
func ParseFile(path string) (*models.Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	inst, err := Parse(f)
	if err != nil {
		return nil, err
	}
	if inst.Name == "" {
		inst.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return inst, nil
}

func parseHeader(inst *models.Instance, line string) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "NAME":
		inst.Name = value
	case "COMMENT":
		if inst.Comment != "" {
			inst.Comment += "\n"
		}
		inst.Comment += value
	}
}

func parseCity(line string) (models.City, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return models.City{}, false
	}

	id, ok := parseID(fields[0])
	if !ok {
		return models.City{}, false
	}
	x, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return models.City{}, false
	}
	y, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return models.City{}, false
	}

	return models.City{ID: id, X: x, Y: y}, true
}

// parseID accepts "7" and integral float forms such as "7.0"
func parseID(s string) (int, bool) {
	if id, err := strconv.Atoi(s); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
