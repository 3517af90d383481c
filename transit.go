package dtanet

import (
	"fmt"
)

type TransitLineType uint16

const (
	TRANSIT_BUS = TransitLineType(iota)
	TRANSIT_TRAM
)

func (iotaIdx TransitLineType) String() string {
	return [...]string{"bus", "tram"}[iotaIdx]
}

type StopSide uint16

const (
	STOPSIDE_EXIT_LANE = StopSide(iota)
	STOPSIDE_OUTSIDE
	STOPSIDE_INSIDE
)

func (iotaIdx StopSide) String() string {
	return [...]string{"exit_lane", "outside", "inside"}[iotaIdx]
}

// TransitSegment is a part of transit line along one road link. Dwell (seconds) is spent at the end of link
type TransitSegment struct {
	ID       int
	Link     *Link
	Label    string
	Lane     int
	Dwell    float64
	StopSide StopSide
}

func (seg *TransitSegment) IsStop() bool {
	return seg.Dwell > 0
}

// TransitLine is a scheduled transit service over sequence of road links
type TransitLine struct {
	ID            int
	Label         string
	Type          TransitLineType
	VehicleType   string
	StartTime     Time
	Level         int
	Active        bool
	Headway       float64
	NumDepartures int

	net      *Network
	segments []*TransitSegment
}

// NewTransitLine creates empty transit line. Headway is in minutes
func NewTransitLine(net *Network, id int, label string, lineType TransitLineType, vehicleType string, startTime Time, headway float64, numDepartures int) (*TransitLine, error) {
	if headway <= 0 {
		return nil, dtaErrorf("transit line %d: headway %f must be positive", id, headway)
	}
	if numDepartures < 0 {
		return nil, dtaErrorf("transit line %d: number of departures %d is negative", id, numDepartures)
	}
	return &TransitLine{
		ID:            id,
		Label:         label,
		Type:          lineType,
		VehicleType:   vehicleType,
		StartTime:     startTime,
		Active:        true,
		Headway:       headway,
		NumDepartures: numDepartures,
		net:           net,
		segments:      make([]*TransitSegment, 0),
	}, nil
}

func (line *TransitLine) String() string {
	return fmt.Sprintf("transit line %d (%s): %d segments, %d stops", line.ID, line.Label, len(line.segments), line.GetNumStops())
}

// AddSegment appends segment along road link. Segment has to continue the previous one. U-turn with the previous
// segment is logged
func (line *TransitLine) AddSegment(link *Link, label string, lane int, dwell float64, stopSide StopSide) (*TransitSegment, error) {
	if !link.IsRoadLink() {
		return nil, dtaErrorf("transit line %d: segment link %d is %s, road link expected", line.ID, link.ID, link.kind)
	}
	if dwell < 0 {
		return nil, dtaErrorf("transit line %d: dwell %f on link %d is negative", line.ID, dwell, link.ID)
	}
	if n := len(line.segments); n > 0 {
		prev := line.segments[n-1].Link
		if prev.endNode != link.startNode {
			return nil, dtaErrorf("transit line %d: link %d does not continue link %d", line.ID, link.ID, prev.ID)
		}
		if prev.startNode == link.endNode {
			logger.Warnf("Transit line %d makes U-turn from link %d to link %d", line.ID, prev.ID, link.ID)
		}
	}
	seg := &TransitSegment{
		ID:       len(line.segments) + 1,
		Link:     link,
		Label:    label,
		Lane:     lane,
		Dwell:    dwell,
		StopSide: stopSide,
	}
	line.segments = append(line.segments, seg)
	return seg, nil
}

func (line *TransitLine) Segments() []*TransitSegment {
	out := make([]*TransitSegment, len(line.segments))
	copy(out, line.segments)
	return out
}

func (line *TransitLine) GetNumSegments() int {
	return len(line.segments)
}

// GetNumStops returns number of segments with positive dwell
func (line *TransitLine) GetNumStops() int {
	cnt := 0
	for _, seg := range line.segments {
		if seg.IsStop() {
			cnt++
		}
	}
	return cnt
}

// HasStop returns true if line stops at node
func (line *TransitLine) HasStop(nodeID NodeID) bool {
	for _, seg := range line.segments {
		if seg.IsStop() && seg.Link.endNode.ID == nodeID {
			return true
		}
	}
	return false
}

// Nodes returns ordered nodes visited by the line
func (line *TransitLine) Nodes() []*Node {
	if len(line.segments) == 0 {
		return []*Node{}
	}
	out := []*Node{line.segments[0].Link.startNode}
	for _, seg := range line.segments {
		out = append(out, seg.Link.endNode)
	}
	return out
}

// transitClass returns vehicle class of the line
func (line *TransitLine) transitClass() string {
	if vt, err := line.net.scenario.GetVehicleType(line.VehicleType); err == nil {
		return vt.ClassName
	}
	return VEHICLE_CLASS_TRANSIT
}

// CheckMovementsAreAllowed walks pairs of consecutive segments and reports movements which don't allow the
// line's vehicle class. When enable is set the class is added to permission of such movements. Missing movements
// are errors. Returns number of forbidding movements
func (line *TransitLine) CheckMovementsAreAllowed(enable bool) (int, error) {
	scn := line.net.scenario
	className := line.transitClass()
	classGroup := scn.groupForDefinition(className)
	forbidding := 0
	for i := 1; i < len(line.segments); i++ {
		in, out := line.segments[i-1].Link, line.segments[i].Link
		mov := in.movementTo(out)
		if mov == nil {
			return forbidding, dtaErrorf("transit line %d: there is no movement from link %d to link %d", line.ID, in.ID, out.ID)
		}
		if mov.AllowsClass(className) {
			continue
		}
		forbidding++
		logger.Warnf("Transit line %d uses movement %s which does not allow class %s", line.ID, mov.ID(), className)
		if enable {
			mov.SetPermission(scn.UnionGroups(mov.Permission(), classGroup))
			logger.Infof("Movement %s now allows class %s (%s)", mov.ID(), className, mov.Permission().Name)
		}
	}
	return forbidding, nil
}

// TransitRouteNode is a node of external route description. Dwell is used when the node is a stop
type TransitRouteNode struct {
	NodeID NodeID
	IsStop bool
	Dwell  float64
}

// TransitLineSpec describes line to build from route nodes
type TransitLineSpec struct {
	ID          int
	Label       string
	Type        TransitLineType
	VehicleType string
	// Service period. Number of departures is (End - Start) / Headway
	StartTime Time
	EndTime   Time
	Headway   float64
	Level     int
}

// TransitBuildOptions tunes BuildTransitLineFromStops
type TransitBuildOptions struct {
	// Gap repair paths having more nodes than this split the line. Zero means network default
	MaxPathNodes int
	// Road links excluded from gap repair paths
	Filter LinkPredicate

	Lane         int
	StopSide     StopSide
	DefaultDwell float64

	// Id of the next subline is line id plus this value
	SublineIDOffset int
}

// BuildTransitLineFromStops builds line over consecutive route nodes. Nodes not linked directly are joined by the
// shortest path over road links. When such path is longer than MaxPathNodes (or doesn't exist) the line is split
// and building continues with a new subline. Start time of every subline is jittered uniformly within one headway
func BuildTransitLineFromStops(net *Network, spec TransitLineSpec, route []TransitRouteNode, opts TransitBuildOptions) ([]*TransitLine, error) {
	if len(route) < 2 {
		return nil, dtaErrorf("transit line %d: route needs at least 2 nodes, got %d", spec.ID, len(route))
	}
	if spec.Headway <= 0 {
		return nil, dtaErrorf("transit line %d: headway %f must be positive", spec.ID, spec.Headway)
	}
	maxNodes := opts.MaxPathNodes
	if maxNodes <= 0 {
		maxNodes = net.cfg.MaxTransitPathNodes
	}
	offset := opts.SublineIDOffset
	if offset <= 0 {
		offset = 100000
	}
	departures := 0
	if spec.EndTime > spec.StartTime {
		departures = int(spec.EndTime.Sub(spec.StartTime) / spec.Headway)
	}
	filter := func(link *Link) bool {
		return !link.IsRoadLink() || (opts.Filter != nil && opts.Filter(link))
	}

	lines := make([]*TransitLine, 0, 1)
	newSubline := func() (*TransitLine, error) {
		id := spec.ID + offset*len(lines)
		label := spec.Label
		if len(lines) > 0 {
			label = fmt.Sprintf("%s_%d", spec.Label, len(lines)+1)
		}
		jitter := net.rnd.Intn(int(spec.Headway*60) + 1)
		line, err := NewTransitLine(net, id, label, spec.Type, spec.VehicleType, spec.StartTime.AddSeconds(jitter), spec.Headway, departures)
		if err != nil {
			return nil, err
		}
		line.Level = spec.Level
		lines = append(lines, line)
		return line, nil
	}
	line, err := newSubline()
	if err != nil {
		return nil, err
	}
	dwellAt := func(rn TransitRouteNode) float64 {
		if !rn.IsStop {
			return 0
		}
		if rn.Dwell > 0 {
			return rn.Dwell
		}
		return opts.DefaultDwell
	}

	for i := 1; i < len(route); i++ {
		from, err := net.GetNodeForID(route[i-1].NodeID)
		if err != nil {
			return nil, err
		}
		to, err := net.GetNodeForID(route[i].NodeID)
		if err != nil {
			return nil, err
		}
		if link, err := net.GetLinkForNodeIdPair(from.ID, to.ID); err == nil && link.IsRoadLink() {
			if _, err := line.AddSegment(link, "", opts.Lane, dwellAt(route[i]), opts.StopSide); err != nil {
				return nil, err
			}
			continue
		}
		tree := LabelSettingWithLabelsOnNodes(net, from, LabelSettingOptions{EndVertex: to, Filter: filter})
		path, err := GetShortestPathBetweenNodes(tree, from, to)
		if err != nil || len(path) > maxNodes {
			if err != nil {
				logger.Warnf("Transit line %d: can't repair gap between nodes %d and %d: %s", spec.ID, from.ID, to.ID, err)
			} else {
				logger.Warnf("Transit line %d: gap path between nodes %d and %d has %d nodes (max %d), line is split", spec.ID, from.ID, to.ID, len(path), maxNodes)
			}
			if line.GetNumSegments() > 0 {
				if line, err = newSubline(); err != nil {
					return nil, err
				}
			}
			continue
		}
		for j := 1; j < len(path); j++ {
			link, err := net.GetLinkForNodeIdPair(path[j-1].ID, path[j].ID)
			if err != nil {
				return nil, err
			}
			dwell := 0.0
			if j == len(path)-1 {
				dwell = dwellAt(route[i])
			}
			if _, err := line.AddSegment(link, "", opts.Lane, dwell, opts.StopSide); err != nil {
				return nil, err
			}
		}
	}
	out := make([]*TransitLine, 0, len(lines))
	for _, l := range lines {
		if l.GetNumSegments() > 0 {
			out = append(out, l)
		}
	}
	logger.Debugf("Transit line %d built: %d sublines", spec.ID, len(out))
	return out, nil
}
