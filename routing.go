package dtanet

import (
	"container/heap"
	"container/list"
	"math"
)

// LinkCost returns cost of traversing link
type LinkCost func(link *Link) float64

// euclideanLinkCost is the length of link polyline in coordinate units
func euclideanLinkCost(link *Link) float64 {
	return link.GetLengthFromCoordinates()
}

// NodeTree is a shortest path tree with labels on nodes
type NodeTree struct {
	Source       *Node
	Labels       map[NodeID]float64
	Predecessors map[NodeID]*Node
}

func newNodeTree(source *Node) NodeTree {
	return NodeTree{
		Source:       source,
		Labels:       make(map[NodeID]float64),
		Predecessors: make(map[NodeID]*Node),
	}
}

// Label returns label of node. Unreached nodes have +Inf label
func (tree NodeTree) Label(id NodeID) float64 {
	label, ok := tree.Labels[id]
	if !ok {
		return math.Inf(1)
	}
	return label
}

func (tree NodeTree) Reached(id NodeID) bool {
	_, ok := tree.Labels[id]
	return ok
}

// LabelCorrectingWithLabelsOnNodes builds shortest path tree from source using Pape's deque method. Virtual links
// are never relaxed; virtual nodes are skipped when excludeVirtual is set. Cost is euclidean length of links
func LabelCorrectingWithLabelsOnNodes(net *Network, source *Node, excludeVirtual bool) NodeTree {
	tree := newNodeTree(source)
	tree.Labels[source.ID] = 0
	deque := list.New()
	deque.PushBack(source)
	inQueue := map[NodeID]bool{source.ID: true}
	visited := map[NodeID]bool{}
	for deque.Len() > 0 {
		u := deque.Remove(deque.Front()).(*Node)
		inQueue[u.ID] = false
		visited[u.ID] = true
		labelU := tree.Labels[u.ID]
		for _, link := range u.outgoingLinks {
			if link.IsVirtualLink() {
				continue
			}
			v := link.endNode
			if excludeVirtual && v.IsVirtualNode() {
				continue
			}
			candidate := labelU + euclideanLinkCost(link)
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

// LabelSettingOptions controls label-setting search
type LabelSettingOptions struct {
	// Search stops once EndVertex is finalized
	EndVertex *Node
	// Search stops once the smallest tentative label exceeds MaxLabel. Zero means no limit
	MaxLabel float64
	// Initial label of the source
	SourceLabel float64
	// Links for which Filter returns true are excluded
	Filter LinkPredicate
	// Cost of link. Defaults to euclidean length
	Cost LinkCost
}

type labeledItem struct {
	id    int
	label float64
	index int
}

// labelQueue is a binary min-heap over labels
type labelQueue []*labeledItem

func (pq labelQueue) Len() int {
	return len(pq)
}

func (pq labelQueue) Less(i, j int) bool {
	if pq[i].label == pq[j].label {
		return pq[i].id < pq[j].id
	}
	return pq[i].label < pq[j].label
}

func (pq labelQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *labelQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*labeledItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *labelQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

// LabelSettingWithLabelsOnNodes builds shortest path tree from source finalizing nodes in label order. Only
// finalized nodes are present in the tree
func LabelSettingWithLabelsOnNodes(net *Network, source *Node, opts LabelSettingOptions) NodeTree {
	cost := opts.Cost
	if cost == nil {
		cost = euclideanLinkCost
	}
	maxLabel := opts.MaxLabel
	if maxLabel <= 0 {
		maxLabel = math.Inf(1)
	}
	tree := newNodeTree(source)
	tentative := map[NodeID]float64{source.ID: opts.SourceLabel}
	preds := map[NodeID]*Node{}
	pq := &labelQueue{}
	heap.Init(pq)
	heap.Push(pq, &labeledItem{id: int(source.ID), label: opts.SourceLabel})
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*labeledItem)
		id := NodeID(item.id)
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
		u := net.nodes[id]
		if opts.EndVertex != nil && u == opts.EndVertex {
			break
		}
		for _, link := range u.outgoingLinks {
			if link.IsVirtualLink() || (opts.Filter != nil && opts.Filter(link)) {
				continue
			}
			v := link.endNode
			if _, done := tree.Labels[v.ID]; done {
				continue
			}
			candidate := item.label + cost(link)
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

// GetShortestPathBetweenNodes walks predecessors from destination back to source. Empty path is returned when
// source equals destination
func GetShortestPathBetweenNodes(tree NodeTree, source, destination *Node) ([]*Node, error) {
	if source == destination {
		return []*Node{}, nil
	}
	if tree.Source != source {
		return nil, dtaErrorf("shortest path tree is built from node %d, not from node %d", tree.Source.ID, source.ID)
	}
	if !tree.Reached(destination.ID) {
		return nil, dtaErrorf("node %d is not reachable from node %d", destination.ID, source.ID)
	}
	path := []*Node{destination}
	current := destination
	for current != source {
		pred, ok := tree.Predecessors[current.ID]
		if !ok {
			return nil, dtaErrorf("broken predecessor chain at node %d", current.ID)
		}
		path = append(path, pred)
		current = pred
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
