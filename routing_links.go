package dtanet

import (
	"container/heap"
	"container/list"
	"math"
)

// MovementCost returns cost of passing movement. Cost of the incoming link is usually included
type MovementCost func(mov *Movement) float64

// incomingLengthCost is the length of incoming link of movement
func incomingLengthCost(mov *Movement) float64 {
	return mov.incomingLink.length
}

// LinkTree is a shortest path tree with labels on links. Label of a link is the cost of reaching its start node
type LinkTree struct {
	Source       *Link
	Labels       map[LinkID]float64
	Predecessors map[LinkID]*Link
}

func newLinkTree(source *Link) LinkTree {
	return LinkTree{
		Source:       source,
		Labels:       make(map[LinkID]float64),
		Predecessors: make(map[LinkID]*Link),
	}
}

// Label returns label of link. Unreached links have +Inf label
func (tree LinkTree) Label(id LinkID) float64 {
	label, ok := tree.Labels[id]
	if !ok {
		return math.Inf(1)
	}
	return label
}

func (tree LinkTree) Reached(id LinkID) bool {
	_, ok := tree.Labels[id]
	return ok
}

// LabelCorrectingWithLabelsOnLinks builds shortest path tree over links connected by movements, using Pape's
// deque method. Prohibited movements are never used. Nil cost means incoming link length
func LabelCorrectingWithLabelsOnLinks(net *Network, source *Link, cost MovementCost) LinkTree {
	if cost == nil {
		cost = incomingLengthCost
	}
	tree := newLinkTree(source)
	tree.Labels[source.ID] = 0
	deque := list.New()
	deque.PushBack(source)
	inQueue := map[LinkID]bool{source.ID: true}
	visited := map[LinkID]bool{}
	for deque.Len() > 0 {
		u := deque.Remove(deque.Front()).(*Link)
		inQueue[u.ID] = false
		visited[u.ID] = true
		labelU := tree.Labels[u.ID]
		for _, mov := range u.outgoingMovements {
			if mov.IsProhibited() {
				continue
			}
			v := mov.outgoingLink
			candidate := labelU + cost(mov)
			if candidate >= tree.Label(v.ID) {
				continue
			}
			tree.Labels[v.ID] = candidate
			tree.Predecessors[v.ID] = u
			if inQueue[v.ID] {
				continue
			}
			inQueue[v.ID] = true
			if visited[v.ID] {
				deque.PushFront(v)
			} else {
				deque.PushBack(v)
			}
		}
	}
	return tree
}

// LinkLabelSettingOptions controls label-setting search over links
type LinkLabelSettingOptions struct {
	EndLink     *Link
	MaxLabel    float64
	SourceLabel float64
	// Links for which Filter returns true are never entered
	Filter LinkPredicate
	Cost   MovementCost
}

// LabelSettingWithLabelsOnLinks builds shortest path tree over links finalizing links in label order.
// Only finalized links are present in the tree
func LabelSettingWithLabelsOnLinks(net *Network, source *Link, opts LinkLabelSettingOptions) LinkTree {
	cost := opts.Cost
	if cost == nil {
		cost = incomingLengthCost
	}
	maxLabel := opts.MaxLabel
	if maxLabel <= 0 {
		maxLabel = math.Inf(1)
	}
	tree := newLinkTree(source)
	tentative := map[LinkID]float64{source.ID: opts.SourceLabel}
	preds := map[LinkID]*Link{}
	pq := &labelQueue{}
	heap.Init(pq)
	heap.Push(pq, &labeledItem{id: int(source.ID), label: opts.SourceLabel})
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*labeledItem)
		id := LinkID(item.id)
		if _, done := tree.Labels[id]; done || item.label > tentative[id] {
			continue
		}
		if item.label > maxLabel {
			break
		}
		tree.Labels[id] = item.label
		if pred, ok := preds[id]; ok {
			tree.Predecessors[id] = pred
		}
		u := net.links[id]
		if opts.EndLink != nil && u == opts.EndLink {
			break
		}
		for _, mov := range u.outgoingMovements {
			if mov.IsProhibited() {
				continue
			}
			v := mov.outgoingLink
			if opts.Filter != nil && opts.Filter(v) {
				continue
			}
			if _, done := tree.Labels[v.ID]; done {
				continue
			}
			candidate := item.label + cost(mov)
			if current, ok := tentative[v.ID]; ok && candidate >= current {
				continue
			}
			tentative[v.ID] = candidate
			preds[v.ID] = u
			heap.Push(pq, &labeledItem{id: int(v.ID), label: candidate})
		}
	}
	return tree
}

// GetShortestPathBetweenLinks walks predecessors from destination back to source. Empty path is returned when
// source equals destination
func GetShortestPathBetweenLinks(tree LinkTree, source, destination *Link) ([]*Link, error) {
	if source == destination {
		return []*Link{}, nil
	}
	if tree.Source != source {
		return nil, dtaErrorf("shortest path tree is built from link %d, not from link %d", tree.Source.ID, source.ID)
	}
	if !tree.Reached(destination.ID) {
		return nil, dtaErrorf("link %d is not reachable from link %d", destination.ID, source.ID)
	}
	path := []*Link{destination}
	current := destination
	for current != source {
		pred, ok := tree.Predecessors[current.ID]
		if !ok {
			return nil, dtaErrorf("broken predecessor chain at link %d", current.ID)
		}
		path = append(path, pred)
		current = pred
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
