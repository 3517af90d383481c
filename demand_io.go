package dtanet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	DEMAND_FORMAT_FULL = "FORMAT:full"
	DEMAND_VEH_CLASS   = "VEH_CLASS"
	DEMAND_DATA        = "DATA"
	DEMAND_SLICE       = "SLICE"
)

// ReadCubeODTable reads comma separated origin, destination, value records (a header row is allowed). Every value
// is turned into hourly rate of the slice length and added to every slice. Intrazonal values are split between
// the centroid and its nearest other centroid
func ReadCubeODTable(net *Network, path, vehicleClass string, startTime, endTime Time, timeStepMin int) (*Demand, error) {
	demand, err := NewDemand(net, vehicleClass, startTime, endTime, timeStepMin)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open OD table '%s'", path))
	}
	defer file.Close()
	if err := demand.readODTable(file); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't parse OD table '%s'", path))
	}
	logger.Infof("Read OD table '%s': %f trips", path, demand.GetTotalNumTrips())
	return demand, nil
}

func (d *Demand) readODTable(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '*'
	factor := 1.0 / d.stepHours()
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "Can't read record")
		}
		row++
		if len(record) < 3 {
			return dtaErrorf("row %d has %d fields, expected origin, destination and value", row, len(record))
		}
		origin, errO := strconv.Atoi(strings.TrimSpace(record[0]))
		destination, errD := strconv.Atoi(strings.TrimSpace(record[1]))
		value, errV := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if errO != nil || errD != nil || errV != nil {
			if row == 1 {
				// header
				continue
			}
			return dtaErrorf("row %d: can't parse '%s'", row, strings.Join(record, ","))
		}
		if value == 0 {
			continue
		}
		if !d.values.HasKey(1, origin) {
			return dtaErrorf("row %d: origin %d is not a centroid", row, origin)
		}
		if !d.values.HasKey(2, destination) {
			return dtaErrorf("row %d: destination %d is not a centroid", row, destination)
		}
		rate := value * factor
		if origin == destination {
			if err := d.addIntrazonal(NodeID(origin), rate); err != nil {
				return err
			}
			continue
		}
		if err := d.addToAllSlices(NodeID(origin), NodeID(destination), rate); err != nil {
			return err
		}
	}
	return nil
}

// ReadDynameqDemand reads demand file in full matrix format
func ReadDynameqDemand(net *Network, path string) (*Demand, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open demand file '%s'", path))
	}
	defer file.Close()
	demand, err := readDynameqDemand(net, file, path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't parse demand file '%s'", path))
	}
	logger.Infof("Read demand '%s': %s", path, demand)
	return demand, nil
}

// demandLines yields meaningful lines of demand file
type demandLines struct {
	scanner *bufio.Scanner
	path    string
	lineNum int
}

func (dl *demandLines) next(what string) (string, error) {
	for dl.scanner.Scan() {
		dl.lineNum++
		line := strings.TrimSpace(dl.scanner.Text())
		if line == "" || strings.HasPrefix(line, "<") || strings.HasPrefix(line, "*") {
			continue
		}
		return line, nil
	}
	if err := dl.scanner.Err(); err != nil {
		return "", errors.Wrap(err, "Can't scan lines")
	}
	return "", dtaErrorf("end of stream while reading %s in file '%s'", what, dl.path)
}

func (dl *demandLines) expect(keyword string) error {
	line, err := dl.next(keyword)
	if err != nil {
		return err
	}
	if line != keyword {
		return dtaErrorf("line %d: expected %s, got '%s'", dl.lineNum, keyword, line)
	}
	return nil
}

func (dl *demandLines) time(what string) (Time, error) {
	line, err := dl.next(what)
	if err != nil {
		return 0, err
	}
	return ParseTime(line)
}

func readDynameqDemand(net *Network, r io.Reader, path string) (*Demand, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	dl := &demandLines{scanner: scanner, path: path}
	if err := dl.expect(DEMAND_FORMAT_FULL); err != nil {
		return nil, err
	}
	if err := dl.expect(DEMAND_VEH_CLASS); err != nil {
		return nil, err
	}
	vehicleClass, err := dl.next(DEMAND_VEH_CLASS)
	if err != nil {
		return nil, err
	}
	if err := dl.expect(DEMAND_DATA); err != nil {
		return nil, err
	}
	start, err := dl.time("start time")
	if err != nil {
		return nil, err
	}
	end, err := dl.time("end time")
	if err != nil {
		return nil, err
	}

	type slice struct {
		label Time
		rows  map[int][]float64
		cols  []int
	}
	slices := make([]*slice, 0)
	var current *slice
	for {
		line, err := dl.next(DEMAND_SLICE)
		if err != nil {
			if IsDtaError(err) && len(slices) > 0 {
				break
			}
			return nil, err
		}
		if line == DEMAND_SLICE {
			label, err := dl.time("slice time")
			if err != nil {
				return nil, err
			}
			header, err := dl.next("centroid header")
			if err != nil {
				return nil, err
			}
			cols := make([]int, 0)
			for _, f := range strings.Fields(header) {
				id, err := strconv.Atoi(f)
				if err != nil {
					return nil, errors.Wrap(err, fmt.Sprintf("Can't parse centroid header at line %d", dl.lineNum))
				}
				cols = append(cols, id)
			}
			current = &slice{label: label, rows: make(map[int][]float64), cols: cols}
			slices = append(slices, current)
			continue
		}
		if current == nil {
			return nil, dtaErrorf("line %d: matrix row before %s", dl.lineNum, DEMAND_SLICE)
		}
		fields := strings.Fields(line)
		if len(fields) != len(current.cols)+1 {
			return nil, dtaErrorf("line %d: %d values, expected %d", dl.lineNum, len(fields)-1, len(current.cols))
		}
		origin, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't parse origin at line %d", dl.lineNum))
		}
		values := make([]float64, len(current.cols))
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Can't parse value at line %d", dl.lineNum))
			}
			values[i] = v
		}
		current.rows[origin] = values
	}
	demand, err := newDemand(net, vehicleClass, start, end, int(slices[0].label-start))
	if err != nil {
		return nil, err
	}
	if len(slices) != demand.GetNumSlices() {
		return nil, dtaErrorf("%d slices in file, expected %d", len(slices), demand.GetNumSlices())
	}
	for _, sl := range slices {
		for origin, values := range sl.rows {
			for i, v := range values {
				if v == 0 {
					continue
				}
				if err := demand.SetValue(sl.label, NodeID(origin), NodeID(sl.cols[i]), v); err != nil {
					return nil, err
				}
			}
		}
	}
	return demand, nil
}

// WriteDynameqDemand writes demand file in full matrix format
func (d *Demand) WriteDynameqDemand(path string) error {
	return writeFile(path, d.writeDynameqDemand)
}

func (d *Demand) writeDynameqDemand(w io.Writer) error {
	fmt.Fprintf(w, "<DYNAMEQ>\n<VERSION_1.8>\n<MATRIX_FILE>\n* Created by dtanet\n")
	fmt.Fprintf(w, "%s\n%s\n%s\n%s\n%s\n%s\n", DEMAND_FORMAT_FULL, DEMAND_VEH_CLASS, d.VehicleClass, DEMAND_DATA, demandTime(d.StartTime), demandTime(d.EndTime))
	header := make([]string, len(d.centroids))
	for i, id := range d.centroids {
		header[i] = strconv.Itoa(int(id))
	}
	for _, label := range d.timeLabels {
		fmt.Fprintf(w, "%s\n%s\n\t%s\n", DEMAND_SLICE, demandTime(label), strings.Join(header, "\t"))
		sl, err := d.Slice(label)
		if err != nil {
			return err
		}
		for _, o := range d.centroids {
			row, err := sl.Row(int(o))
			if err != nil {
				return err
			}
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatFloat(v)
			}
			fmt.Fprintf(w, "%d\t%s\n", o, strings.Join(cells, "\t"))
		}
	}
	return nil
}

// demandTime drops seconds when they are zero
func demandTime(t Time) string {
	if t.Second() != 0 {
		return t.StringWithSeconds()
	}
	return t.String()
}
