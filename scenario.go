package dtanet

import (
	"github.com/samber/lo"
)

// ScenarioEvent is a timed event of the scenario
type ScenarioEvent struct {
	Time        Time
	Description string
}

// Scenario holds study period and vehicle taxonomy shared by network, demand and transit
type Scenario struct {
	StartTime Time
	EndTime   Time

	vehicleClasses     []string
	vehicleTypes       []*VehicleType
	vehicleClassGroups map[string]*VehicleClassGroup
	groupsOrder        []string
	events             []ScenarioEvent
	generalizedCosts   []string
}

// NewScenario creates scenario for given study period. Groups "All", "Prohibited" and "Transit" are
// always registered
func NewScenario(startTime, endTime Time) (*Scenario, error) {
	if startTime >= endTime {
		return nil, dtaErrorf("study period start %s must be before end %s", startTime, endTime)
	}
	scn := &Scenario{
		StartTime:          startTime,
		EndTime:            endTime,
		vehicleClassGroups: make(map[string]*VehicleClassGroup),
	}
	_ = scn.AddVehicleClassGroup(NewVehicleClassGroup(GROUP_ALL, CLASSDEFINITION_ALL, "#bebebe"))
	_ = scn.AddVehicleClassGroup(NewVehicleClassGroup(GROUP_PROHIBITED, CLASSDEFINITION_PROHIBITED, "#ffff00"))
	_ = scn.AddVehicleClassGroup(NewVehicleClassGroup(GROUP_TRANSIT, VEHICLE_CLASS_TRANSIT, "#55ff00"))
	return scn, nil
}

// AddVehicleClass registers vehicle class name
func (scn *Scenario) AddVehicleClass(className string) error {
	if lo.Contains(scn.vehicleClasses, className) {
		return dtaErrorf("vehicle class %s already exists", className)
	}
	scn.vehicleClasses = append(scn.vehicleClasses, className)
	return nil
}

func (scn *Scenario) VehicleClasses() []string {
	out := make([]string, len(scn.vehicleClasses))
	copy(out, scn.vehicleClasses)
	return out
}

// AddVehicleType registers vehicle type. Its class must be known
func (scn *Scenario) AddVehicleType(vt *VehicleType) error {
	if !lo.Contains(scn.vehicleClasses, vt.ClassName) {
		return dtaErrorf("vehicle type %s refers to unknown class %s", vt.Name, vt.ClassName)
	}
	if _, err := scn.GetVehicleType(vt.Name); err == nil {
		return dtaErrorf("vehicle type %s already exists", vt.Name)
	}
	scn.vehicleTypes = append(scn.vehicleTypes, vt)
	return nil
}

func (scn *Scenario) GetVehicleType(name string) (*VehicleType, error) {
	for _, vt := range scn.vehicleTypes {
		if vt.Name == name {
			return vt, nil
		}
	}
	return nil, dtaErrorf("vehicle type %s not found", name)
}

func (scn *Scenario) VehicleTypes() []*VehicleType {
	out := make([]*VehicleType, len(scn.vehicleTypes))
	copy(out, scn.vehicleTypes)
	return out
}

// AddVehicleClassGroup registers group. Names are unique
func (scn *Scenario) AddVehicleClassGroup(group *VehicleClassGroup) error {
	if _, ok := scn.vehicleClassGroups[group.Name]; ok {
		return dtaErrorf("vehicle class group %s already exists", group.Name)
	}
	scn.vehicleClassGroups[group.Name] = group
	scn.groupsOrder = append(scn.groupsOrder, group.Name)
	return nil
}

func (scn *Scenario) GetVehicleClassGroup(name string) (*VehicleClassGroup, error) {
	group, ok := scn.vehicleClassGroups[name]
	if !ok {
		return nil, dtaErrorf("vehicle class group %s not found", name)
	}
	return group, nil
}

// VehicleClassGroups returns groups in registration order
func (scn *Scenario) VehicleClassGroups() []*VehicleClassGroup {
	return lo.Map(scn.groupsOrder, func(name string, _ int) *VehicleClassGroup {
		return scn.vehicleClassGroups[name]
	})
}

// AllGroup returns group allowing every vehicle class
func (scn *Scenario) AllGroup() *VehicleClassGroup {
	return scn.vehicleClassGroups[GROUP_ALL]
}

// ProhibitedGroup returns group prohibiting every vehicle class
func (scn *Scenario) ProhibitedGroup() *VehicleClassGroup {
	return scn.vehicleClassGroups[GROUP_PROHIBITED]
}

// groupForDefinition returns registered group with the same class set or registers a new one named after the definition
func (scn *Scenario) groupForDefinition(def string) *VehicleClassGroup {
	for _, name := range scn.groupsOrder {
		group := scn.vehicleClassGroups[name]
		if sameClassSet(group.ClassDefinition, def) {
			return group
		}
	}
	group := NewVehicleClassGroup(def, def, "#000000")
	_ = scn.AddVehicleClassGroup(group)
	return group
}

// IntersectGroups returns group allowing only classes allowed by both a and b
func (scn *Scenario) IntersectGroups(a, b *VehicleClassGroup) *VehicleClassGroup {
	if a == b {
		return a
	}
	return scn.groupForDefinition(intersectClassDefinitions(a, b))
}

// UnionGroups returns group allowing classes allowed by a or b
func (scn *Scenario) UnionGroups(a, b *VehicleClassGroup) *VehicleClassGroup {
	if a == b {
		return a
	}
	return scn.groupForDefinition(unionClassDefinitions(a, b))
}

// AddEvent registers timed event
func (scn *Scenario) AddEvent(t Time, description string) {
	scn.events = append(scn.events, ScenarioEvent{Time: t, Description: description})
}

func (scn *Scenario) Events() []ScenarioEvent {
	out := make([]ScenarioEvent, len(scn.events))
	copy(out, scn.events)
	return out
}

// AddGeneralizedCost registers generalized cost expression
func (scn *Scenario) AddGeneralizedCost(expression string) {
	scn.generalizedCosts = append(scn.generalizedCosts, expression)
}

func (scn *Scenario) GeneralizedCosts() []string {
	out := make([]string, len(scn.generalizedCosts))
	copy(out, scn.generalizedCosts)
	return out
}
