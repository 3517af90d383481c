package dtanet

import (
	"sort"
)

/* Signal control stuff */

// PlanCollectionInfo is a named time interval grouping time plans of different nodes
type PlanCollectionInfo struct {
	Name        string
	Description string
	StartTime   Time
	EndTime     Time
}

// NewPlanCollectionInfo creates plan collection. Start must be before end
func NewPlanCollectionInfo(startTime, endTime Time, name, description string) (*PlanCollectionInfo, error) {
	if startTime >= endTime {
		return nil, dtaErrorf("plan collection %s: start time %s must be before end time %s", name, startTime, endTime)
	}
	return &PlanCollectionInfo{
		Name:        name,
		Description: description,
		StartTime:   startTime,
		EndTime:     endTime,
	}, nil
}

type PlanType uint16

const (
	PLAN_FIXED = PlanType(iota)
	PLAN_ACTUATED
)

func (iotaIdx PlanType) String() string {
	return [...]string{"fixed", "actuated"}[iotaIdx]
}

type PhaseType uint16

const (
	PHASE_STANDARD = PhaseType(iota)
	PHASE_CUSTOM
)

func (iotaIdx PhaseType) String() string {
	return [...]string{"standard", "custom"}[iotaIdx]
}

// PhaseCapacity tells whether movement has exclusive right-of-way during phase
type PhaseCapacity uint16

const (
	CAPACITY_PERMITTED = PhaseCapacity(iota)
	CAPACITY_PROTECTED
)

func (iotaIdx PhaseCapacity) String() string {
	return [...]string{"permitted", "protected"}[iotaIdx]
}

// PhaseMovement is a movement served by phase
type PhaseMovement struct {
	Movement *Movement
	Capacity PhaseCapacity
}

func (pm *PhaseMovement) IsProtected() bool {
	return pm.Capacity == CAPACITY_PROTECTED
}

// Phase is one interval of signal cycle
type Phase struct {
	plan      *TimePlan
	Green     float64
	Yellow    float64
	Red       float64
	Type      PhaseType
	movements []*PhaseMovement
}

// NewPhase creates phase of time plan. Durations are in seconds
func NewPhase(plan *TimePlan, green, yellow, red float64, phaseType PhaseType) (*Phase, error) {
	if green < 0 || yellow < 0 || red < 0 {
		return nil, dtaErrorf("phase durations must be non-negative: green %f, yellow %f, red %f", green, yellow, red)
	}
	return &Phase{
		plan:      plan,
		Green:     green,
		Yellow:    yellow,
		Red:       red,
		Type:      phaseType,
		movements: make([]*PhaseMovement, 0),
	}, nil
}

// Length returns green + yellow + red
func (phase *Phase) Length() float64 {
	return phase.Green + phase.Yellow + phase.Red
}

// AddPhaseMovement adds movement to the phase. Movement must exist at the node of time plan and must not be in
// the phase already
func (phase *Phase) AddPhaseMovement(pm *PhaseMovement) error {
	if pm == nil || pm.Movement == nil {
		return dtaErrorf("phase movement is empty")
	}
	node := phase.plan.node
	mov := pm.Movement
	if mov.node != node {
		return dtaErrorf("movement %s is not at node %d", mov.ID(), node.ID)
	}
	if mov.incomingLink.movementTo(mov.outgoingLink) != mov {
		return dtaErrorf("movement %s does not exist at node %d", mov.ID(), node.ID)
	}
	if phase.HasMovement(mov) {
		return dtaErrorf("movement %s is already in phase of node %d", mov.ID(), node.ID)
	}
	phase.movements = append(phase.movements, pm)
	return nil
}

// RemovePhaseMovement removes movement from the phase
func (phase *Phase) RemovePhaseMovement(mov *Movement) error {
	for i, pm := range phase.movements {
		if pm.Movement == mov {
			phase.movements = append(phase.movements[:i], phase.movements[i+1:]...)
			return nil
		}
	}
	return dtaErrorf("movement %s is not in phase of node %d", mov.ID(), phase.plan.node.ID)
}

func (phase *Phase) HasMovement(mov *Movement) bool {
	return phase.phaseMovement(mov) != nil
}

func (phase *Phase) phaseMovement(mov *Movement) *PhaseMovement {
	for _, pm := range phase.movements {
		if pm.Movement == mov {
			return pm
		}
	}
	return nil
}

// Movements returns phase movements in insertion order
func (phase *Phase) Movements() []*PhaseMovement {
	out := make([]*PhaseMovement, len(phase.movements))
	copy(out, phase.movements)
	return out
}

func (phase *Phase) GetNumMovements() int {
	return len(phase.movements)
}

// TimePlan is signal timing of road node for one plan collection
type TimePlan struct {
	node       *Node
	collection *PlanCollectionInfo
	laneWidth  float64

	Offset    float64
	SyncPhase int
	TurnOnRed bool
	Type      PlanType
	phases    []*Phase
}

// NewTimePlan creates time plan for road node of network. Plan is not attached to node until Node.AddTimePlan
func NewTimePlan(net *Network, node *Node, collection *PlanCollectionInfo, planType PlanType, offset float64, syncPhase int, turnOnRed bool) (*TimePlan, error) {
	if !net.HasNodeForID(node.ID) || net.nodes[node.ID] != node {
		return nil, dtaErrorf("node %d is not in network", node.ID)
	}
	if !node.IsRoadNode() {
		return nil, dtaErrorf("time plan requires road node, node %d is %s", node.ID, node.kind)
	}
	if collection == nil {
		return nil, dtaErrorf("time plan of node %d requires plan collection", node.ID)
	}
	return &TimePlan{
		node:       node,
		collection: collection,
		laneWidth:  net.cfg.LaneWidth,
		Offset:     offset,
		SyncPhase:  syncPhase,
		TurnOnRed:  turnOnRed,
		Type:       planType,
		phases:     make([]*Phase, 0),
	}, nil
}

func (plan *TimePlan) Node() *Node {
	return plan.node
}

func (plan *TimePlan) PlanCollection() *PlanCollectionInfo {
	return plan.collection
}

// AddPhase appends phase. Phase must be created for this plan
func (plan *TimePlan) AddPhase(phase *Phase) error {
	if phase.plan != plan {
		return dtaErrorf("phase belongs to another time plan than plan of node %d", plan.node.ID)
	}
	for _, p := range plan.phases {
		if p == phase {
			return dtaErrorf("phase is already in time plan of node %d", plan.node.ID)
		}
	}
	plan.phases = append(plan.phases, phase)
	return nil
}

func (plan *TimePlan) Phases() []*Phase {
	out := make([]*Phase, len(plan.phases))
	copy(out, plan.phases)
	return out
}

func (plan *TimePlan) GetNumPhases() int {
	return len(plan.phases)
}

// CycleLength returns sum of phase lengths in seconds
func (plan *TimePlan) CycleLength() float64 {
	total := 0.0
	for _, phase := range plan.phases {
		total += phase.Length()
	}
	return total
}

// MovementsInConflict returns true if movements cross inside of the node
func (plan *TimePlan) MovementsInConflict(m1, m2 *Movement) bool {
	return m1.IsInConflict(m2, plan.laneWidth)
}

// Validate checks the plan: non-negative offset, sync phase within phases, at least two phases, no all-red
// phases unless allRedPhaseOK, phases cover exactly the allowed movements of node (right turns may be omitted
// when turn on red is enabled) and no conflicting protected movements share a phase unless one is right turn
func (plan *TimePlan) Validate(allRedPhaseOK bool) error {
	node := plan.node
	if plan.Offset < 0 {
		return dtaErrorf("time plan of node %d: offset %f is negative", node.ID, plan.Offset)
	}
	if len(plan.phases) < 2 {
		return dtaErrorf("time plan of node %d: %d phases, at least 2 required", node.ID, len(plan.phases))
	}
	if plan.SyncPhase < 1 || plan.SyncPhase > len(plan.phases) {
		return dtaErrorf("time plan of node %d: sync phase %d is not in [1, %d]", node.ID, plan.SyncPhase, len(plan.phases))
	}
	served := make(map[string]*Movement)
	for i, phase := range plan.phases {
		if len(phase.movements) == 0 && !allRedPhaseOK {
			return dtaErrorf("time plan of node %d: phase %d has no movements", node.ID, i+1)
		}
		for _, pm := range phase.movements {
			served[pm.Movement.ID()] = pm.Movement
		}
	}
	allowed := make(map[string]*Movement)
	for _, mov := range node.Movements() {
		if mov.IsProhibited() {
			continue
		}
		allowed[mov.ID()] = mov
		if plan.TurnOnRed && mov.IsRightTurn() {
			served[mov.ID()] = mov
		}
	}
	for _, id := range sortedMovementIDs(allowed) {
		if _, ok := served[id]; !ok {
			return dtaErrorf("time plan of node %d: movement %s is not served by any phase", node.ID, id)
		}
	}
	for _, id := range sortedMovementIDs(served) {
		if _, ok := allowed[id]; !ok {
			return dtaErrorf("time plan of node %d: movement %s is served by phase but it is not allowed at node", node.ID, id)
		}
	}
	for i, phase := range plan.phases {
		for a := 0; a < len(phase.movements); a++ {
			for b := a + 1; b < len(phase.movements); b++ {
				pa, pb := phase.movements[a], phase.movements[b]
				if !pa.IsProtected() || !pb.IsProtected() {
					continue
				}
				if pa.Movement.IsRightTurn() || pb.Movement.IsRightTurn() {
					continue
				}
				if plan.MovementsInConflict(pa.Movement, pb.Movement) {
					return dtaErrorf("time plan of node %d: protected movements %s and %s of phase %d are in conflict", node.ID, pa.Movement.ID(), pb.Movement.ID(), i+1)
				}
			}
		}
	}
	return nil
}

func sortedMovementIDs(movs map[string]*Movement) []string {
	ids := make([]string, 0, len(movs))
	for id := range movs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetPermittedMovements resolves conflicts between protected movements of each phase: left turn conflicting with
// through or right movement is demoted to permitted, of two conflicting left turns the second one is demoted.
// Two conflicting protected through movements are an error
func (plan *TimePlan) SetPermittedMovements() error {
	for i, phase := range plan.phases {
		for a := 0; a < len(phase.movements); a++ {
			for b := a + 1; b < len(phase.movements); b++ {
				pa, pb := phase.movements[a], phase.movements[b]
				if !pa.IsProtected() || !pb.IsProtected() {
					continue
				}
				if !plan.MovementsInConflict(pa.Movement, pb.Movement) {
					continue
				}
				ma, mb := pa.Movement, pb.Movement
				switch {
				case ma.IsThruTurn() && mb.IsThruTurn():
					return dtaErrorf("time plan of node %d: through movements %s and %s of phase %d are in conflict", plan.node.ID, ma.ID(), mb.ID(), i+1)
				case ma.IsLeftTurn() && mb.IsLeftTurn():
					pb.Capacity = CAPACITY_PERMITTED
				case ma.IsLeftTurn() && (mb.IsThruTurn() || mb.IsRightTurn()):
					pa.Capacity = CAPACITY_PERMITTED
				case mb.IsLeftTurn() && (ma.IsThruTurn() || ma.IsRightTurn()):
					pb.Capacity = CAPACITY_PERMITTED
				}
			}
		}
	}
	return nil
}

// removeMovement drops movement from every phase
func (plan *TimePlan) removeMovement(mov *Movement) {
	for _, phase := range plan.phases {
		for i, pm := range phase.movements {
			if pm.Movement == mov {
				phase.movements = append(phase.movements[:i], phase.movements[i+1:]...)
				break
			}
		}
	}
}

// replaceMovement puts new movement in place of the old one keeping its capacity
func (plan *TimePlan) replaceMovement(old, mov *Movement) {
	for _, phase := range plan.phases {
		for _, pm := range phase.movements {
			if pm.Movement == old {
				pm.Movement = mov
			}
		}
	}
}

// HasTimePlans returns true if any node of network is signalized by time plan
func (net *Network) HasTimePlans() bool {
	for _, node := range net.nodes {
		if node.HasTimePlan() {
			return true
		}
	}
	return false
}

// GetNumTimePlans returns number of time plans over all nodes
func (net *Network) GetNumTimePlans() int {
	cnt := 0
	for _, node := range net.nodes {
		cnt += len(node.timePlans)
	}
	return cnt
}
