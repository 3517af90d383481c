package dtanet

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

type TurnType string

const (
	TURN_THRU   = TurnType("TH")
	TURN_LEFT   = TurnType("LT")
	TURN_RIGHT  = TurnType("RT")
	TURN_LEFT2  = TurnType("LT2")
	TURN_RIGHT2 = TurnType("RT2")
	TURN_UTURN  = TurnType("UT")
)

func parseTurnType(s string) (TurnType, error) {
	switch tt := TurnType(s); tt {
	case TURN_THRU, TURN_LEFT, TURN_RIGHT, TURN_LEFT2, TURN_RIGHT2, TURN_UTURN:
		return tt, nil
	}
	return "", dtaErrorf("unknown turn type '%s'", s)
}

// Turn type thresholds (degrees)
const (
	thruAngleMax  = 45.0
	sharpAngleMin = 135.0
)

// HigherPriorityMovement is a movement which the owner must yield to
type HigherPriorityMovement struct {
	Movement     *Movement
	CriticalGap  float64
	CriticalWait float64
}

// Movement is a passage from incoming link to outgoing link at node
type Movement struct {
	node         *Node
	incomingLink *Link
	outgoingLink *Link

	freeflowSpeed  float64
	permission     *VehicleClassGroup
	numLanes       int
	incomingLane   int
	outgoingLane   int
	followupTime   float64
	higherPriority []HigherPriorityMovement

	turnTypeOverride TurnType

	results *flowSeries
}

// NewMovement creates movement. Values of -1 mean "unspecified" for lanes, speed and follow-up time
func NewMovement(node *Node, incomingLink, outgoingLink *Link, freeflowSpeed float64, permission *VehicleClassGroup, numLanes, incomingLane, outgoingLane int, followupTime float64) (*Movement, error) {
	if node == nil || incomingLink == nil || outgoingLink == nil {
		return nil, dtaErrorf("movement requires node, incoming link and outgoing link")
	}
	if incomingLink.endNode != node {
		return nil, dtaErrorf("incoming link %d ends at node %d, not at node %d", incomingLink.ID, incomingLink.endNode.ID, node.ID)
	}
	if outgoingLink.startNode != node {
		return nil, dtaErrorf("outgoing link %d starts at node %d, not at node %d", outgoingLink.ID, outgoingLink.startNode.ID, node.ID)
	}
	if node.IsCentroid() {
		return nil, dtaErrorf("movement can't be defined at centroid %d", node.ID)
	}
	if !incomingLink.IsRoadOrConnector() || !outgoingLink.IsRoadOrConnector() {
		return nil, dtaErrorf("movement %d %d %d can't use virtual links", incomingLink.startNode.ID, node.ID, outgoingLink.endNode.ID)
	}
	if permission == nil {
		return nil, dtaErrorf("movement %d %d %d requires vehicle class group", incomingLink.startNode.ID, node.ID, outgoingLink.endNode.ID)
	}
	return &Movement{
		node:           node,
		incomingLink:   incomingLink,
		outgoingLink:   outgoingLink,
		freeflowSpeed:  freeflowSpeed,
		permission:     permission,
		numLanes:       numLanes,
		incomingLane:   incomingLane,
		outgoingLane:   outgoingLane,
		followupTime:   followupTime,
		higherPriority: make([]HigherPriorityMovement, 0),
		results:        newFlowSeries(),
	}, nil
}

// ID returns identifier "inStart atNode outEnd"
func (mov *Movement) ID() string {
	return fmt.Sprintf("%d %d %d", mov.incomingLink.startNode.ID, mov.node.ID, mov.outgoingLink.endNode.ID)
}

func (mov *Movement) String() string {
	return mov.ID()
}

func (mov *Movement) AtNode() *Node {
	return mov.node
}

func (mov *Movement) IncomingLink() *Link {
	return mov.incomingLink
}

func (mov *Movement) OutgoingLink() *Link {
	return mov.outgoingLink
}

// StartNode returns start node of the incoming link
func (mov *Movement) StartNode() *Node {
	return mov.incomingLink.startNode
}

// EndNode returns end node of the outgoing link
func (mov *Movement) EndNode() *Node {
	return mov.outgoingLink.endNode
}

func (mov *Movement) FreeflowSpeed() float64 {
	return mov.freeflowSpeed
}

func (mov *Movement) SetFreeflowSpeed(speed float64) {
	mov.freeflowSpeed = speed
}

func (mov *Movement) Permission() *VehicleClassGroup {
	return mov.permission
}

func (mov *Movement) SetPermission(group *VehicleClassGroup) {
	mov.permission = group
}

func (mov *Movement) NumLanes() int {
	return mov.numLanes
}

func (mov *Movement) SetNumLanes(numLanes int) {
	mov.numLanes = numLanes
}

func (mov *Movement) IncomingLane() int {
	return mov.incomingLane
}

func (mov *Movement) OutgoingLane() int {
	return mov.outgoingLane
}

func (mov *Movement) FollowupTime() float64 {
	return mov.followupTime
}

// IsProhibited returns true if permission group prohibits all classes
func (mov *Movement) IsProhibited() bool {
	return mov.permission.ProhibitsAll()
}

// AllowsClass returns true if vehicle class may use the movement
func (mov *Movement) AllowsClass(className string) bool {
	return mov.permission.AllowsClass(className)
}

// AddHigherPriorityMovement registers movement at the same node which this one yields to
func (mov *Movement) AddHigherPriorityMovement(other *Movement, criticalGap, criticalWait float64) error {
	if other.node != mov.node {
		return dtaErrorf("movement %s and movement %s are at different nodes", mov.ID(), other.ID())
	}
	if other == mov {
		return dtaErrorf("movement %s can't yield to itself", mov.ID())
	}
	for _, hp := range mov.higherPriority {
		if hp.Movement == other {
			return dtaErrorf("movement %s already yields to movement %s", mov.ID(), other.ID())
		}
	}
	mov.higherPriority = append(mov.higherPriority, HigherPriorityMovement{Movement: other, CriticalGap: criticalGap, CriticalWait: criticalWait})
	return nil
}

// HigherPriorityMovements returns ordered list of movements this one yields to
func (mov *Movement) HigherPriorityMovements() []HigherPriorityMovement {
	out := make([]HigherPriorityMovement, len(mov.higherPriority))
	copy(out, mov.higherPriority)
	return out
}

// replaceHigherPriorityMovement keeps position, critical gap and critical wait of the replaced entry
func (mov *Movement) replaceHigherPriorityMovement(old, replacement *Movement) {
	for i := range mov.higherPriority {
		if mov.higherPriority[i].Movement == old {
			mov.higherPriority[i].Movement = replacement
		}
	}
}

func (mov *Movement) removeHigherPriorityMovement(other *Movement) {
	for i, hp := range mov.higherPriority {
		if hp.Movement == other {
			mov.higherPriority = append(mov.higherPriority[:i], mov.higherPriority[i+1:]...)
			return
		}
	}
}

// IsUTurn returns true if outgoing link leads back to the start of incoming link
func (mov *Movement) IsUTurn() bool {
	return mov.outgoingLink.endNode == mov.incomingLink.startNode
}

// GetAngle returns angle (degrees) between incoming and outgoing links using the segments adjacent to the node
func (mov *Movement) GetAngle() float64 {
	return mov.incomingLink.GetAngle(mov.outgoingLink, true)
}

// GetTurnType returns overridden turn type if any, otherwise classifies the angle between links
func (mov *Movement) GetTurnType() TurnType {
	if mov.turnTypeOverride != "" {
		return mov.turnTypeOverride
	}
	if mov.IsUTurn() {
		return TURN_UTURN
	}
	angle := mov.GetAngle()
	switch {
	case math.Abs(angle) <= thruAngleMax:
		return TURN_THRU
	case angle > thruAngleMax && angle <= sharpAngleMin:
		return TURN_LEFT
	case angle > sharpAngleMin:
		return TURN_LEFT2
	case angle < -thruAngleMax && angle >= -sharpAngleMin:
		return TURN_RIGHT
	default:
		return TURN_RIGHT2
	}
}

// SetTurnTypeOverride forces turn type of the movement. Empty value removes override
func (mov *Movement) SetTurnTypeOverride(tt TurnType) {
	mov.turnTypeOverride = tt
}

func (mov *Movement) TurnTypeOverride() (TurnType, bool) {
	return mov.turnTypeOverride, mov.turnTypeOverride != ""
}

func (mov *Movement) IsThruTurn() bool {
	return mov.GetTurnType() == TURN_THRU
}

func (mov *Movement) IsLeftTurn() bool {
	tt := mov.GetTurnType()
	return tt == TURN_LEFT || tt == TURN_LEFT2
}

func (mov *Movement) IsRightTurn() bool {
	tt := mov.GetTurnType()
	return tt == TURN_RIGHT || tt == TURN_RIGHT2
}

// GetDirection returns heading of the incoming link at its end (NB/EB/SB/WB)
func (mov *Movement) GetDirection() string {
	return mov.incomingLink.GetDirection(true, true)
}

// GetDirectionTurnType returns label like "EBTH" or "NBLT"
func (mov *Movement) GetDirectionTurnType() string {
	return mov.GetDirection() + string(mov.GetTurnType())
}

// CenterLine returns path through the node: last segment of the incoming link's centerline and first segment
// of the outgoing one. When those segments cross the corner is replaced by their intersection point
func (mov *Movement) CenterLine(laneWidth float64) orb.LineString {
	in := mov.incomingLink.CenterLine(laneWidth)
	out := mov.outgoingLink.CenterLine(laneWidth)
	p1, p2 := in[len(in)-2], in[len(in)-1]
	q1, q2 := out[0], out[1]
	if SegmentsIntersect(p1, p2, q1, q2) {
		if corner, err := intersect(p1, p2, q1, q2); err == nil {
			return orb.LineString{p1, corner, q2}
		}
	}
	line := orb.LineString{p1}
	for _, pt := range []orb.Point{p2, q1, q2} {
		if pt != line[len(line)-1] {
			line = append(line, pt)
		}
	}
	return line
}

// IsInConflict returns true if centerlines of movements cross and they share neither incoming nor outgoing link
func (mov *Movement) IsInConflict(other *Movement, laneWidth float64) bool {
	if mov.incomingLink == other.incomingLink || mov.outgoingLink == other.outgoingLink {
		return false
	}
	l1 := mov.CenterLine(laneWidth)
	l2 := other.CenterLine(laneWidth)
	if PolylinesCross(l1, l2) {
		return true
	}
	// Crossing exactly at the final segments boundary
	n1, n2 := len(l1), len(l2)
	if n1 < 2 || n2 < 2 {
		return false
	}
	return SegmentsIntersectOrTouch(l1[n1-2], l1[n1-1], l2[n2-2], l2[n2-1]) && l1[n1-1] != l2[n2-1]
}
