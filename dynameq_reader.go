package dtanet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// sectionedFile holds records of a keyword-sectioned text file. Comment lines (starting with '*') and
// metadata lines (starting with '<') are not records
type sectionedFile struct {
	path     string
	sections map[string][]string
	order    []string
	metadata []string
}

// readSectionedFile streams file line by line and groups records by section keyword
func readSectionedFile(path string, keywords []string) (*sectionedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open file '%s'", path))
	}
	defer file.Close()
	sf, err := parseSectionedFile(file, keywords)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't parse file '%s'", path))
	}
	sf.path = path
	return sf, nil
}

func parseSectionedFile(r io.Reader, keywords []string) (*sectionedFile, error) {
	known := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		known[k] = struct{}{}
	}
	sf := &sectionedFile{
		sections: make(map[string][]string),
	}
	current := ""
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "<") {
			sf.metadata = append(sf.metadata, trimmed)
			continue
		}
		if strings.HasPrefix(trimmed, "*") {
			continue
		}
		if _, ok := known[trimmed]; ok {
			current = trimmed
			if _, seen := sf.sections[current]; !seen {
				sf.sections[current] = []string{}
				sf.order = append(sf.order, current)
			}
			continue
		}
		if current == "" {
			// Free text before the first section (e.g. file description)
			sf.metadata = append(sf.metadata, trimmed)
			continue
		}
		sf.sections[current] = append(sf.sections[current], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't scan lines")
	}
	return sf, nil
}

// records returns records of required section
func (sf *sectionedFile) records(section string) ([]string, error) {
	recs, ok := sf.sections[section]
	if !ok {
		return nil, dtaErrorf("section %s is missing in file '%s'", section, sf.path)
	}
	return recs, nil
}

// optionalRecords returns records of section or nil if the section is absent
func (sf *sectionedFile) optionalRecords(section string) []string {
	return sf.sections[section]
}

// splitFields splits record by whitespace keeping double quoted fields together (quotes are stripped)
func splitFields(line string) []string {
	fields := []string{}
	var sb strings.Builder
	inQuotes := false
	hasField := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasField = true
		case (r == ' ' || r == '\t') && !inQuotes:
			if hasField {
				fields = append(fields, sb.String())
				sb.Reset()
				hasField = false
			}
		default:
			sb.WriteRune(r)
			hasField = true
		}
	}
	if hasField {
		fields = append(fields, sb.String())
	}
	return fields
}

// fieldParser converts record fields keeping the first conversion error
type fieldParser struct {
	fields []string
	record string
	err    error
}

func newFieldParser(record string, minFields int) (*fieldParser, error) {
	fields := splitFields(record)
	if len(fields) < minFields {
		return nil, dtaErrorf("record '%s' has %d fields, expected at least %d", strings.TrimSpace(record), len(fields), minFields)
	}
	return &fieldParser{fields: fields, record: record}, nil
}

func (fp *fieldParser) str(idx int) string {
	if idx >= len(fp.fields) {
		return ""
	}
	return fp.fields[idx]
}

func (fp *fieldParser) asInt(idx int) int {
	if fp.err != nil {
		return 0
	}
	v, err := strconv.Atoi(fp.str(idx))
	if err != nil {
		fp.err = errors.Wrap(err, fmt.Sprintf("Can't parse integer field %d of record '%s'", idx, strings.TrimSpace(fp.record)))
	}
	return v
}

func (fp *fieldParser) asFloat(idx int) float64 {
	if fp.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(fp.str(idx), 64)
	if err != nil {
		fp.err = errors.Wrap(err, fmt.Sprintf("Can't parse float field %d of record '%s'", idx, strings.TrimSpace(fp.record)))
	}
	return v
}

func (fp *fieldParser) asTime(idx int) Time {
	if fp.err != nil {
		return 0
	}
	v, err := ParseTime(fp.str(idx))
	if err != nil {
		fp.err = err
	}
	return v
}

// quote wraps label in double quotes for writing
func quote(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "'") + "\""
}

// formatFloat prints float without trailing zeros
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
