package dtanet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// parseMinutes accepts minutes after midnight or clock time HH:MM[:SS]
func parseMinutes(s string) (int, error) {
	if strings.Contains(s, ":") {
		t, err := ParseTime(s)
		if err != nil {
			return 0, err
		}
		return int(t) / 60, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("Can't parse minutes '%s'", s))
	}
	return v, nil
}

// forEachRecord streams whitespace separated records of results file skipping comments and metadata
func forEachRecord(path string, minFields int, fn func(fields []string) error) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("Can't open file '%s'", path))
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	lineNum, cnt := 0, 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "<") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < minFields {
			return cnt, dtaErrorf("line %d of file '%s' has %d fields, expected %d", lineNum, path, len(fields), minFields)
		}
		if err := fn(fields); err != nil {
			return cnt, errors.Wrap(err, fmt.Sprintf("Line %d of file '%s'", lineNum, path))
		}
		cnt++
	}
	if err := scanner.Err(); err != nil {
		return cnt, errors.Wrap(err, "Can't scan lines")
	}
	return cnt, nil
}

// parseFlowRecord parses 'start end flow tt' tail of record
func parseFlowRecord(fields []string) (int, int, float64, float64, error) {
	start, err := parseMinutes(fields[0])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	end, err := parseMinutes(fields[1])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	flow, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, 0, 0, errors.Wrap(err, "Can't parse flow")
	}
	tt, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, 0, 0, 0, errors.Wrap(err, "Can't parse travel time")
	}
	return start, end, flow, tt, nil
}

func (net *Network) movementForLinks(atNode NodeID, inID, outID LinkID) (*Movement, error) {
	in, err := net.GetLinkForID(inID)
	if err != nil {
		return nil, err
	}
	out, err := net.GetLinkForID(outID)
	if err != nil {
		return nil, err
	}
	mov := in.movementTo(out)
	if mov == nil || mov.node.ID != atNode {
		return nil, dtaErrorf("there is no movement from link %d to link %d at node %d", inID, outID, atNode)
	}
	return mov, nil
}

// ReadSimulatedLinkResults reads 'link start end flow tt' records. Returns number of records
func (net *Network) ReadSimulatedLinkResults(path string) (int, error) {
	cnt, err := forEachRecord(path, 5, func(fields []string) error {
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return errors.Wrap(err, "Can't parse link id")
		}
		link, err := net.GetLinkForID(LinkID(id))
		if err != nil {
			return err
		}
		start, end, flow, tt, err := parseFlowRecord(fields[1:])
		if err != nil {
			return err
		}
		if err := link.SetSimOutVolume(start, end, flow); err != nil {
			return err
		}
		return link.SetSimTT(start, end, tt)
	})
	if err != nil {
		return cnt, err
	}
	logger.Infof("Read %d link results from '%s'", cnt, path)
	return cnt, nil
}

// ReadSimulatedMovementResults reads 'atnode inlink outlink start end flow tt' records. Returns number of records
func (net *Network) ReadSimulatedMovementResults(path string) (int, error) {
	cnt, err := forEachRecord(path, 7, func(fields []string) error {
		ids := make([]int, 3)
		for i := range ids {
			v, err := strconv.Atoi(fields[i])
			if err != nil {
				return errors.Wrap(err, "Can't parse movement ids")
			}
			ids[i] = v
		}
		mov, err := net.movementForLinks(NodeID(ids[0]), LinkID(ids[1]), LinkID(ids[2]))
		if err != nil {
			return err
		}
		start, end, flow, tt, err := parseFlowRecord(fields[3:])
		if err != nil {
			return err
		}
		if err := mov.SetSimOutVolume(start, end, flow); err != nil {
			return err
		}
		if err := mov.SetSimInVolume(start, end, flow); err != nil {
			return err
		}
		return mov.SetSimTT(start, end, tt)
	})
	if err != nil {
		return cnt, err
	}
	logger.Infof("Read %d movement results from '%s'", cnt, path)
	return cnt, nil
}

// ReadObservedLinkCounts reads 'link start end count' records
func (net *Network) ReadObservedLinkCounts(path string) (int, error) {
	return forEachRecord(path, 4, func(fields []string) error {
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return errors.Wrap(err, "Can't parse link id")
		}
		link, err := net.GetLinkForID(LinkID(id))
		if err != nil {
			return err
		}
		start, err := parseMinutes(fields[1])
		if err != nil {
			return err
		}
		end, err := parseMinutes(fields[2])
		if err != nil {
			return err
		}
		count, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return errors.Wrap(err, "Can't parse count")
		}
		return link.SetObsCount(start, end, count)
	})
}

// ReadObservedMovementCounts reads 'atnode inlink outlink start end count' records
func (net *Network) ReadObservedMovementCounts(path string) (int, error) {
	return forEachRecord(path, 6, func(fields []string) error {
		ids := make([]int, 3)
		for i := range ids {
			v, err := strconv.Atoi(fields[i])
			if err != nil {
				return errors.Wrap(err, "Can't parse movement ids")
			}
			ids[i] = v
		}
		mov, err := net.movementForLinks(NodeID(ids[0]), LinkID(ids[1]), LinkID(ids[2]))
		if err != nil {
			return err
		}
		start, err := parseMinutes(fields[3])
		if err != nil {
			return err
		}
		end, err := parseMinutes(fields[4])
		if err != nil {
			return err
		}
		count, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return errors.Wrap(err, "Can't parse count")
		}
		return mov.SetObsCount(start, end, count)
	})
}

// WriteLinkResultsCSV writes simulated and observed values of road links and connectors for the interval
// into ';'-separated file with WKT geometry
func (net *Network) WriteLinkResultsCSV(fname string, startMin, endMin int) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "source_node", "target_node", "name", "facility_type", "lanes", "length", "sim_volume", "sim_tt", "sim_speed", "obs_count", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for _, link := range net.Links() {
		if link.IsVirtualLink() {
			continue
		}
		volume, err := link.GetSimOutVolume(startMin, endMin)
		if err != nil {
			return err
		}
		tt, err := link.GetSimTT(startMin, endMin)
		if err != nil {
			return err
		}
		speed, err := link.GetSimSpeed(startMin, endMin)
		if err != nil {
			return err
		}
		obs := ""
		if count, err := link.GetObsCount(startMin, endMin); err == nil {
			obs = fmt.Sprintf("%f", count)
		}
		err = writer.Write([]string{
			fmt.Sprintf("%d", link.ID),
			fmt.Sprintf("%d", link.startNode.ID),
			fmt.Sprintf("%d", link.endNode.ID),
			link.Label,
			fmt.Sprintf("%d", link.facilityType),
			fmt.Sprintf("%d", link.numLanes),
			fmt.Sprintf("%f", link.length),
			fmt.Sprintf("%f", volume),
			fmt.Sprintf("%f", tt),
			fmt.Sprintf("%f", speed),
			obs,
			wkt.MarshalString(link.Geometry()),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write link results")
		}
	}
	return nil
}
