package dtanet

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

// OSMScanner is implemented by both XML and PBF scanners of github.com/paulmach/osm
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

const (
	OSM_FORMAT_XML = "xml"
	OSM_FORMAT_PBF = "pbf"
)

// ImportOSMOptions controls conversion of OSM ways into road network
type ImportOSMOptions struct {
	// OSM_FORMAT_XML (default) or OSM_FORMAT_PBF
	Format string
	// Highway values to import. Empty means every supported highway type
	Highways []string
	// First ids of generated nodes and links. Zero means 1
	StartNodeID NodeID
	StartLinkID LinkID
}

type osmPoint struct {
	geom   orb.Point
	signal bool
	name   string
}

type osmWay struct {
	id         osm.WayID
	nodes      []osm.NodeID
	highway    HighwayType
	name       string
	oneway     bool
	reversed   bool
	lanes      int
	lanesFwd   int
	lanesBwd   int
	maxSpeed   float64
	roundabout bool
}

type osmRestriction struct {
	id   osm.RelationID
	kind string
	from osm.WayID
	via  osm.NodeID
	to   osm.WayID
}

var (
	mphRegExp    = regexp.MustCompile(`^(\d+\.?\d*)\s*mph$`)
	kmhRegExp    = regexp.MustCompile(`^(\d+\.?\d*)\s*(km/h|kmh|kph)?$`)
	lanesRegExp  = regexp.MustCompile(`^\d+`)
	mphToKmh     = 1.609344
	osmScanProcs = 4
)

// ImportOSMFile imports road network from '.osm'/'.xml' or '.pbf' file
func ImportOSMFile(scn *Scenario, filename string, importOpts ImportOSMOptions, options ...func(*Network)) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open file '%s'", filename))
	}
	defer file.Close()
	if importOpts.Format == "" {
		switch filepath.Ext(filename) {
		case ".osm", ".xml":
			importOpts.Format = OSM_FORMAT_XML
		case ".pbf":
			importOpts.Format = OSM_FORMAT_PBF
		default:
			return nil, dtaErrorf("file extension '%s' of file '%s' is not handled", filepath.Ext(filename), filename)
		}
	}
	return ImportOSM(scn, file, importOpts, options...)
}

// ImportOSM builds road network from OSM data: nodes shared by ways (and way ends) become road nodes, the rest
// become shape points. Every movement is allowed except U-turns (unless configured) and the ones forbidden by
// turn restriction relations. Coordinates are projected to EPSG:3857, speeds are km/h
func ImportOSM(scn *Scenario, r io.Reader, importOpts ImportOSMOptions, options ...func(*Network)) (*Network, error) {
	var scanner OSMScanner
	switch importOpts.Format {
	case "", OSM_FORMAT_XML:
		scanner = osmxml.New(context.Background(), r)
	case OSM_FORMAT_PBF:
		scanner = osmpbf.New(context.Background(), r, osmScanProcs)
	default:
		return nil, dtaErrorf("OSM format '%s' is not handled", importOpts.Format)
	}
	defer scanner.Close()

	allowed := make(map[HighwayType]struct{})
	for _, h := range importOpts.Highways {
		ht := getHighwayType(h)
		if ht == 0 {
			return nil, dtaErrorf("highway type '%s' is not supported", h)
		}
		allowed[ht] = struct{}{}
	}

	st := time.Now()
	points := make(map[osm.NodeID]osmPoint)
	ways := make([]*osmWay, 0)
	restrictions := make([]osmRestriction, 0)
	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Node:
			points[obj.ID] = osmPoint{
				geom:   pointToEuclidean(orb.Point{obj.Lon, obj.Lat}),
				signal: obj.Tags.Find("highway") == "traffic_signals",
				name:   obj.Tags.Find("name"),
			}
		case *osm.Way:
			way := parseOSMWay(obj)
			if way == nil {
				continue
			}
			if _, ok := allowed[way.highway]; len(allowed) > 0 && !ok {
				continue
			}
			ways = append(ways, way)
		case *osm.Relation:
			if rs, ok := parseOSMRestriction(obj); ok {
				restrictions = append(restrictions, rs)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't scan OSM data")
	}
	logger.Infof("Scanned OSM data in %v: %d nodes, %d ways, %d restrictions", time.Since(st), len(points), len(ways), len(restrictions))

	builder := &osmNetworkBuilder{
		net:        NewNetwork(scn, options...),
		points:     points,
		nodes:      make(map[osm.NodeID]*Node),
		wayOfLink:  make(map[*Link]osm.WayID),
		nextNodeID: importOpts.StartNodeID,
		nextLinkID: importOpts.StartLinkID,
	}
	if builder.nextNodeID <= 0 {
		builder.nextNodeID = 1
	}
	if builder.nextLinkID <= 0 {
		builder.nextLinkID = 1
	}
	if err := builder.build(ways); err != nil {
		return nil, errors.Wrap(err, "Can't build road network")
	}
	net := builder.net
	if err := net.AddAllMovements(scn.AllGroup(), net.cfg.UTurnsAllowed); err != nil {
		return nil, errors.Wrap(err, "Can't add movements")
	}
	applied := builder.applyRestrictions(restrictions)
	logger.Infof("Applied %d of %d turn restrictions", applied, len(restrictions))
	logger.Infof("Imported OSM network in %v: %s", time.Since(st), net)
	return net, nil
}

func parseOSMWay(way *osm.Way) *osmWay {
	if len(way.Nodes) < 2 || way.Tags.Find("area") == "yes" {
		return nil
	}
	highway := getHighwayType(way.Tags.Find("highway"))
	if highway == 0 {
		return nil
	}
	parsed := &osmWay{
		id:       way.ID,
		nodes:    make([]osm.NodeID, 0, len(way.Nodes)),
		highway:  highway,
		name:     way.Tags.Find("name"),
		lanes:    parseLanes(way.Tags.Find("lanes")),
		lanesFwd: parseLanes(way.Tags.Find("lanes:forward")),
		lanesBwd: parseLanes(way.Tags.Find("lanes:backward")),
		maxSpeed: parseMaxSpeed(way.Tags.Find("maxspeed")),
	}
	for _, wn := range way.Nodes {
		parsed.nodes = append(parsed.nodes, wn.ID)
	}
	junction := way.Tags.Find("junction")
	_, parsed.roundabout = onewayJunctions[junction]
	switch onewayText := way.Tags.Find("oneway"); onewayText {
	case "yes", "1", "true":
		parsed.oneway = true
	case "-1", "reverse":
		parsed.oneway = true
		parsed.reversed = true
	case "no", "0", "false":
		parsed.oneway = false
	case "":
		parsed.oneway = parsed.roundabout || highway == HIGHWAY_MOTORWAY
	default:
		if _, ok := onewayReversible[onewayText]; !ok {
			logger.Warnf("Unhandled 'oneway' tag value '%s' of way %d", onewayText, way.ID)
		}
	}
	return parsed
}

func parseLanes(s string) int {
	num := lanesRegExp.FindString(strings.TrimSpace(s))
	if num == "" {
		return -1
	}
	v, err := strconv.Atoi(num)
	if err != nil || v < 1 {
		return -1
	}
	return v
}

// parseMaxSpeed returns speed in km/h or -1
func parseMaxSpeed(s string) float64 {
	s = strings.TrimSpace(s)
	if m := mphRegExp.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * mphToKmh
		}
	}
	if m := kmhRegExp.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}
	return -1
}

func parseOSMRestriction(rel *osm.Relation) (osmRestriction, bool) {
	if rel.Tags.Find("type") != "restriction" {
		return osmRestriction{}, false
	}
	rs := osmRestriction{id: rel.ID, kind: rel.Tags.Find("restriction")}
	if rs.kind == "" {
		return rs, false
	}
	for _, member := range rel.Members {
		switch {
		case member.Role == "from" && member.Type == osm.TypeWay:
			rs.from = osm.WayID(member.Ref)
		case member.Role == "to" && member.Type == osm.TypeWay:
			rs.to = osm.WayID(member.Ref)
		case member.Role == "via" && member.Type == osm.TypeNode:
			rs.via = osm.NodeID(member.Ref)
		}
	}
	// Via-way restrictions are not supported
	if rs.from == 0 || rs.to == 0 || rs.via == 0 {
		return rs, false
	}
	return rs, true
}

type osmNetworkBuilder struct {
	net        *Network
	points     map[osm.NodeID]osmPoint
	nodes      map[osm.NodeID]*Node
	wayOfLink  map[*Link]osm.WayID
	nextNodeID NodeID
	nextLinkID LinkID
}

func (b *osmNetworkBuilder) build(ways []*osmWay) error {
	useCount := make(map[osm.NodeID]int)
	for _, way := range ways {
		for i, id := range way.nodes {
			useCount[id]++
			if i == 0 || i == len(way.nodes)-1 {
				// way ends always become road nodes
				useCount[id]++
			}
		}
	}
	for _, way := range ways {
		missing := false
		for _, id := range way.nodes {
			if _, ok := b.points[id]; !ok {
				missing = true
				break
			}
		}
		if missing {
			logger.Warnf("Way %d refers to node missing in OSM data. Skip it", way.id)
			continue
		}
		segmentStart := 0
		for i := 1; i < len(way.nodes); i++ {
			if useCount[way.nodes[i]] < 2 && i != len(way.nodes)-1 {
				continue
			}
			if err := b.addSegment(way, way.nodes[segmentStart:i+1], useCount); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Way %d", way.id))
			}
			segmentStart = i
		}
	}
	return nil
}

func (b *osmNetworkBuilder) roadNode(id osm.NodeID, useCount int) (*Node, error) {
	if node, ok := b.nodes[id]; ok {
		return node, nil
	}
	pt := b.points[id]
	geometryType := GEOMETRY_JUNCTION
	if useCount > 2 {
		geometryType = GEOMETRY_INTERSECTION
	}
	control, priority := CONTROL_UNSIGNALIZED, PRIORITY_NONE
	if pt.signal {
		control, priority = CONTROL_SIGNALIZED, PRIORITY_SIGNALIZED
	}
	node := NewRoadNode(b.nextNodeID, pt.geom.X(), pt.geom.Y(), geometryType, control, priority, pt.name, 0)
	if err := b.net.AddNode(node); err != nil {
		return nil, err
	}
	b.nextNodeID++
	b.nodes[id] = node
	return node, nil
}

func (b *osmNetworkBuilder) addSegment(way *osmWay, osmNodes []osm.NodeID, useCount map[osm.NodeID]int) error {
	first, last := osmNodes[0], osmNodes[len(osmNodes)-1]
	if first == last {
		logger.Debugf("Way %d has closed segment at node %d. Skip it", way.id, first)
		return nil
	}
	start, err := b.roadNode(first, useCount[first])
	if err != nil {
		return err
	}
	end, err := b.roadNode(last, useCount[last])
	if err != nil {
		return err
	}
	shape := make([]orb.Point, 0, len(osmNodes)-2)
	for _, id := range osmNodes[1 : len(osmNodes)-1] {
		shape = append(shape, b.points[id].geom)
	}
	defaults := defaultsByHighway[way.highway]
	speed := way.maxSpeed
	if speed <= 0 {
		speed = defaults.speed
	}
	forwardLanes, backwardLanes := way.lanesFwd, way.lanesBwd
	if way.lanes > 0 {
		if way.oneway {
			forwardLanes = way.lanes
		} else {
			half := way.lanes / 2
			if half < 1 {
				half = 1
			}
			if forwardLanes < 1 {
				forwardLanes = half
			}
			if backwardLanes < 1 {
				backwardLanes = half
			}
		}
	}
	if forwardLanes < 1 {
		forwardLanes = defaults.lanes
	}
	if backwardLanes < 1 {
		backwardLanes = defaults.lanes
	}
	attrs := LinkAttributes{
		Label:                 way.name,
		FacilityType:          defaults.facilityType,
		Length:                -1,
		FreeflowSpeed:         speed,
		EffectiveLengthFactor: 1,
		ResponseTimeFactor:    1,
		Roundabout:            way.roundabout,
	}
	if !way.oneway || !way.reversed {
		attrs.NumLanes = forwardLanes
		if err := b.addLink(way.id, start, end, shape, attrs); err != nil {
			return err
		}
	}
	if !way.oneway || way.reversed {
		attrs.NumLanes = backwardLanes
		if way.oneway {
			attrs.NumLanes = forwardLanes
		}
		reversedShape := make([]orb.Point, len(shape))
		for i := range shape {
			reversedShape[len(shape)-1-i] = shape[i]
		}
		if err := b.addLink(way.id, end, start, reversedShape, attrs); err != nil {
			return err
		}
	}
	return nil
}

func (b *osmNetworkBuilder) addLink(wayID osm.WayID, start, end *Node, shape []orb.Point, attrs LinkAttributes) error {
	if b.net.HasLinkForNodeIdPair(start.ID, end.ID) {
		logger.Debugf("Parallel link %d -> %d of way %d. Skip it", start.ID, end.ID, wayID)
		return nil
	}
	link, err := NewRoadLink(b.nextLinkID, start, end, attrs)
	if err != nil {
		return err
	}
	link.SetShapePoints(shape)
	if err := b.net.AddLink(link); err != nil {
		return err
	}
	b.nextLinkID++
	b.wayOfLink[link] = wayID
	return nil
}

// applyRestrictions prohibits movements forbidden by 'no_*' relations and every alternative of 'only_*' ones
func (b *osmNetworkBuilder) applyRestrictions(restrictions []osmRestriction) int {
	applied := 0
	for _, rs := range restrictions {
		via, ok := b.nodes[rs.via]
		if !ok {
			continue
		}
		matched := false
		for _, in := range via.incomingLinks {
			if b.wayOfLink[in] != rs.from {
				continue
			}
			for _, mov := range in.OutgoingMovements() {
				toWay := b.wayOfLink[mov.outgoingLink] == rs.to
				switch {
				case strings.HasPrefix(rs.kind, "no_") && toWay:
					b.net.ProhibitMovement(mov)
					matched = true
				case strings.HasPrefix(rs.kind, "only_") && !toWay:
					b.net.ProhibitMovement(mov)
					matched = true
				}
			}
		}
		if matched {
			applied++
		} else {
			logger.Debugf("Restriction %d (%s) does not match any movement", rs.id, rs.kind)
		}
	}
	return applied
}
