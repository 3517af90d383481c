package dtanet

import (
	"github.com/LdDl/ch"
	"github.com/pkg/errors"
)

// ReachabilityIndex answers whether directed path between two nodes exists. It is backed by contraction
// hierarchies over links of the network. Centroids are never passed through: trips entering a centroid
// terminate there
type ReachabilityIndex struct {
	graph      ch.Graph
	sinkOffset int64
	nodes      map[NodeID]struct{}
}

// NewReachabilityIndex prepares contraction hierarchies for the current state of network. Index must be rebuilt
// after topology changes
func NewReachabilityIndex(net *Network) (*ReachabilityIndex, error) {
	idx := &ReachabilityIndex{
		graph:      ch.Graph{},
		sinkOffset: int64(net.maxNodeID) + 1,
		nodes:      make(map[NodeID]struct{}, len(net.nodes)),
	}
	for _, node := range net.Nodes() {
		idx.nodes[node.ID] = struct{}{}
		if err := idx.graph.CreateVertex(int64(node.ID)); err != nil {
			return nil, errors.Wrap(err, "Can't create vertex")
		}
		if node.IsCentroid() {
			if err := idx.graph.CreateVertex(idx.sink(node)); err != nil {
				return nil, errors.Wrap(err, "Can't create sink vertex")
			}
		}
	}
	edges := 0
	for _, link := range net.Links() {
		target := int64(link.endNode.ID)
		if link.endNode.IsCentroid() {
			target = idx.sink(link.endNode)
		}
		cost := link.length
		if cost <= 0 {
			cost = link.GetLengthFromCoordinates()
		}
		if err := idx.graph.AddEdge(int64(link.startNode.ID), target, cost); err != nil {
			return nil, errors.Wrap(err, "Can't wrap link as edge")
		}
		edges++
	}
	idx.graph.PrepareContractionHierarchies()
	logger.Debugf("Reachability index prepared: %d vertices, %d edges", len(idx.nodes), edges)
	return idx, nil
}

func (idx *ReachabilityIndex) sink(node *Node) int64 {
	return idx.sinkOffset + int64(node.ID)
}

// HasPath returns true if destination can be reached from origin
func (idx *ReachabilityIndex) HasPath(origin, destination *Node) bool {
	if _, ok := idx.nodes[origin.ID]; !ok {
		return false
	}
	if _, ok := idx.nodes[destination.ID]; !ok {
		return false
	}
	if origin == destination {
		return true
	}
	target := int64(destination.ID)
	if destination.IsCentroid() {
		target = idx.sink(destination)
	}
	cost, _ := idx.graph.ShortestPath(int64(origin.ID), target)
	return cost >= 0
}

// Distance returns cost of the shortest path between nodes or -1 when there is no path
func (idx *ReachabilityIndex) Distance(origin, destination *Node) float64 {
	if !idx.HasPath(origin, destination) {
		return -1
	}
	if origin == destination {
		return 0
	}
	target := int64(destination.ID)
	if destination.IsCentroid() {
		target = idx.sink(destination)
	}
	cost, _ := idx.graph.ShortestPath(int64(origin.ID), target)
	return cost
}
