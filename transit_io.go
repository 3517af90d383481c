package dtanet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	TRANSIT_LINE     = "LINE"
	TRANSIT_SEGMENTS = "SEGMENTS"
)

// ReadTransitFile reads transit lines. Segment links are looked up by (start node, end node)
func ReadTransitFile(net *Network, path string) ([]*TransitLine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open transit file '%s'", path))
	}
	defer file.Close()
	lines, err := readTransit(net, file, path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't parse transit file '%s'", path))
	}
	logger.Infof("Read %d transit lines from '%s'", len(lines), path)
	return lines, nil
}

func readTransit(net *Network, r io.Reader, path string) ([]*TransitLine, error) {
	const (
		stateHeader = iota
		stateHeadway
		stateSegments
	)
	lines := make([]*TransitLine, 0)
	var current *TransitLine
	var header *fieldParser
	state := -1
	lineNum := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "<") || strings.HasPrefix(text, "*") {
			continue
		}
		switch {
		case text == TRANSIT_LINE:
			if state == stateHeader || state == stateHeadway {
				return nil, dtaErrorf("line %d: %s started before previous line header was read", lineNum, TRANSIT_LINE)
			}
			state = stateHeader
		case text == TRANSIT_SEGMENTS:
			if state != stateSegments || current == nil {
				return nil, dtaErrorf("line %d: %s without line header", lineNum, TRANSIT_SEGMENTS)
			}
		case state == stateHeader:
			fp, err := newFieldParser(text, 7)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Line %d", lineNum))
			}
			header = fp
			state = stateHeadway
		case state == stateHeadway:
			fp, err := newFieldParser(text, 2)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Line %d", lineNum))
			}
			headway, departures := fp.asTime(0), fp.asInt(1)
			id, lineType, start, level, active := header.asInt(0), header.asInt(2), header.asTime(4), header.asInt(5), header.asInt(6)
			if fp.err != nil {
				return nil, errors.Wrap(fp.err, fmt.Sprintf("Line %d", lineNum))
			}
			if header.err != nil {
				return nil, errors.Wrap(header.err, fmt.Sprintf("Line %d", lineNum))
			}
			line, err := NewTransitLine(net, id, header.str(1), TransitLineType(lineType), header.str(3), start, float64(headway)/60.0, departures)
			if err != nil {
				return nil, err
			}
			line.Level = level
			line.Active = active != 0
			lines = append(lines, line)
			current = line
			state = stateSegments
		case state == stateSegments:
			fp, err := newFieldParser(text, 7)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Line %d", lineNum))
			}
			startID, endID, lane, dwell, side := NodeID(fp.asInt(1)), NodeID(fp.asInt(2)), fp.asInt(4), fp.asFloat(5), fp.asInt(6)
			if fp.err != nil {
				return nil, errors.Wrap(fp.err, fmt.Sprintf("Line %d", lineNum))
			}
			link, err := net.GetLinkForNodeIdPair(startID, endID)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Line %d", lineNum))
			}
			if _, err := current.AddSegment(link, fp.str(3), lane, dwell, StopSide(side)); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Line %d", lineNum))
			}
		default:
			return nil, dtaErrorf("line %d: unexpected record '%s' in file '%s'", lineNum, text, path)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't scan lines")
	}
	if state == stateHeader || state == stateHeadway {
		return nil, dtaErrorf("end of stream while reading %s in file '%s'", TRANSIT_LINE, path)
	}
	return lines, nil
}

// WriteTransitFile writes transit lines
func WriteTransitFile(path string, lines []*TransitLine) error {
	return writeFile(path, func(w io.Writer) error {
		return writeTransitLines(w, lines)
	})
}

func writeTransitLines(w io.Writer, lines []*TransitLine) error {
	fmt.Fprintf(w, "<DYNAMEQ>\n<VERSION_1.8>\n<PTN_FILE>\n* Created by dtanet\n")
	for _, line := range lines {
		active := 0
		if line.Active {
			active = 1
		}
		headway := Time(line.Headway*60 + 0.5)
		fmt.Fprintf(w, "%s\n*  id   name   type   vtype   stime   level   active\n", TRANSIT_LINE)
		fmt.Fprintf(w, "%d %s %d %s %s %d %d\n", line.ID, quote(line.Label), line.Type, line.VehicleType, line.StartTime.StringWithSeconds(), line.Level, active)
		fmt.Fprintf(w, "*  hway   dep\n%s %d\n", headway.StringWithSeconds(), line.NumDepartures)
		fmt.Fprintf(w, "%s\n*  id   start   end   label   lane   dwell   stopside\n", TRANSIT_SEGMENTS)
		for _, seg := range line.segments {
			fmt.Fprintf(w, "%d %d %d %s %d %s %d\n", seg.ID, seg.Link.startNode.ID, seg.Link.endNode.ID, quote(seg.Label), seg.Lane, formatFloat(seg.Dwell), seg.StopSide)
		}
	}
	return nil
}
