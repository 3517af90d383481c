package dtanet

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

func lineToCoordinates(line orb.LineString, spherical bool) [][]float64 {
	if spherical {
		line = lineToSpherical(line)
	}
	pts2d := make([][]float64, len(line))
	for i := range line {
		pts2d[i] = []float64{line[i].X(), line[i].Y()}
	}
	return pts2d
}

func pointToCoordinates(pt orb.Point, spherical bool) []float64 {
	if spherical {
		pt = pointToSpherical(pt)
	}
	return []float64{pt.X(), pt.Y()}
}

// LinksToGeoJSON returns collection of links. When spherical is set coordinates are treated as EPSG:3857 and
// converted to longitude/latitude
func (net *Network) LinksToGeoJSON(spherical bool) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, link := range net.Links() {
		f := geojson.NewLineStringFeature(lineToCoordinates(link.Geometry(), spherical))
		f.ID = int(link.ID)
		f.SetProperty("kind", link.kind.String())
		f.SetProperty("source_node", int(link.startNode.ID))
		f.SetProperty("target_node", int(link.endNode.ID))
		f.SetProperty("label", link.Label)
		f.SetProperty("facility_type", link.facilityType)
		f.SetProperty("lanes", link.numLanes)
		f.SetProperty("free_speed", link.freeflowSpeed)
		f.SetProperty("length", link.length)
		fc.AddFeature(f)
	}
	return fc
}

// NodesToGeoJSON returns collection of nodes. See LinksToGeoJSON for spherical flag
func (net *Network) NodesToGeoJSON(spherical bool) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, node := range net.Nodes() {
		f := geojson.NewPointFeature(pointToCoordinates(node.geom, spherical))
		f.ID = int(node.ID)
		f.SetProperty("kind", node.kind.String())
		f.SetProperty("geometry_type", node.geometryType.String())
		f.SetProperty("label", node.Label)
		f.SetProperty("level", node.Level)
		if node.IsRoadNode() {
			f.SetProperty("control", node.control.String())
			f.SetProperty("time_plans", len(node.timePlans))
		}
		fc.AddFeature(f)
	}
	return fc
}

// TransitLinesToGeoJSON returns one feature per transit segment
func TransitLinesToGeoJSON(lines []*TransitLine, spherical bool) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, line := range lines {
		for _, seg := range line.Segments() {
			f := geojson.NewLineStringFeature(lineToCoordinates(seg.Link.Geometry(), spherical))
			f.SetProperty("line_id", line.ID)
			f.SetProperty("line_label", line.Label)
			f.SetProperty("segment_id", seg.ID)
			f.SetProperty("link_id", int(seg.Link.ID))
			f.SetProperty("dwell", seg.Dwell)
			fc.AddFeature(f)
		}
	}
	return fc
}

// WriteGeoJSON marshals feature collection into file
func WriteGeoJSON(fname string, fc *geojson.FeatureCollection) error {
	b, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Can't marshal GeoJSON")
	}
	if err := os.WriteFile(fname, b, 0644); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't write file '%s'", fname))
	}
	return nil
}
