package dtanet

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// ExportToCSV writes nodes, links and movements into three ';'-separated files with WKT geometry. For file
// name 'net.csv' files 'net_nodes.csv', 'net_links.csv' and 'net_movements.csv' are produced
func (net *Network) ExportToCSV(fname string) error {

	base := strings.TrimSuffix(fname, ".csv")
	fnameNodes := base + "_nodes.csv"
	fnameLinks := base + "_links.csv"
	fnameMovements := base + "_movements.csv"

	err := net.exportNodesToCSV(fnameNodes)
	if err != nil {
		return errors.Wrap(err, "Can't export nodes")
	}

	err = net.exportLinksToCSV(fnameLinks)
	if err != nil {
		return errors.Wrap(err, "Can't export links")
	}

	err = net.exportMovementsToCSV(fnameMovements)
	if err != nil {
		return errors.Wrap(err, "Can't export movements")
	}

	return nil
}

func (net *Network) exportLinksToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "source_node", "target_node", "kind", "facility_type", "lanes", "free_speed", "length", "auto_length", "roundabout", "level", "group", "toll", "permissions", "name", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	for _, link := range net.Links() {
		permissions := make([]string, 0, len(link.lanePermissions))
		for _, lane := range link.LanesWithPermissions() {
			group, _ := link.GetLanePermission(lane)
			permissions = append(permissions, fmt.Sprintf("%d:%s", lane, group.Name))
		}
		err = writer.Write([]string{
			fmt.Sprintf("%d", link.ID),
			fmt.Sprintf("%d", link.startNode.ID),
			fmt.Sprintf("%d", link.endNode.ID),
			fmt.Sprintf("%s", link.kind),
			fmt.Sprintf("%d", link.facilityType),
			fmt.Sprintf("%d", link.numLanes),
			fmt.Sprintf("%f", link.freeflowSpeed),
			fmt.Sprintf("%f", link.length),
			fmt.Sprintf("%t", link.autoLength),
			fmt.Sprintf("%t", link.roundabout),
			fmt.Sprintf("%d", link.level),
			fmt.Sprintf("%d", link.group),
			fmt.Sprintf("%t", link.tollLink),
			strings.Join(permissions, ","),
			link.Label,
			wkt.MarshalString(link.Geometry()),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write link")
		}
	}
	return nil
}

func (net *Network) exportNodesToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "kind", "geometry_type", "control_type", "priority", "level", "boundary", "time_plans", "name", "x", "y", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	for _, node := range net.Nodes() {
		err = writer.Write([]string{
			fmt.Sprintf("%d", node.ID),
			fmt.Sprintf("%s", node.kind),
			fmt.Sprintf("%s", node.geometryType),
			fmt.Sprintf("%s", node.control),
			fmt.Sprintf("%s", node.priority),
			fmt.Sprintf("%d", node.Level),
			fmt.Sprintf("%t", node.boundary),
			fmt.Sprintf("%d", len(node.timePlans)),
			node.Label,
			fmt.Sprintf("%f", node.geom[0]),
			fmt.Sprintf("%f", node.geom[1]),
			wkt.MarshalString(node.geom),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write node")
		}
	}
	return nil
}

func (net *Network) exportMovementsToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "node_id", "in_link_id", "out_link_id", "direction", "turn_type", "lanes", "in_lane", "out_lane", "free_speed", "followup", "permission", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	laneWidth := net.cfg.LaneWidth
	for _, mov := range net.Movements() {
		err = writer.Write([]string{
			mov.ID(),
			fmt.Sprintf("%d", mov.node.ID),
			fmt.Sprintf("%d", mov.incomingLink.ID),
			fmt.Sprintf("%d", mov.outgoingLink.ID),
			mov.GetDirection(),
			fmt.Sprintf("%s", mov.GetTurnType()),
			fmt.Sprintf("%d", mov.numLanes),
			fmt.Sprintf("%d", mov.incomingLane),
			fmt.Sprintf("%d", mov.outgoingLane),
			fmt.Sprintf("%f", mov.freeflowSpeed),
			fmt.Sprintf("%f", mov.followupTime),
			mov.permission.Name,
			wkt.MarshalString(orb.LineString(mov.CenterLine(laneWidth))),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write movement")
		}
	}
	return nil
}
