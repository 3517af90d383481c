package dtanet

import (
	"sort"
	"strings"
)

const (
	CLASSDEFINITION_ALL        = "*"
	CLASSDEFINITION_PROHIBITED = "-"

	GROUP_ALL        = "All"
	GROUP_PROHIBITED = "Prohibited"
	GROUP_TRANSIT    = "Transit"

	VEHICLE_CLASS_TRANSIT = "Transit"
)

// VehicleType describes vehicle of some class
type VehicleType struct {
	Name         string
	ClassName    string
	Length       float64
	ResponseTime float64
	MaxSpeed     float64
	SpeedRatio   float64
}

// VehicleClassGroup is a named set of vehicle classes (permission set)
type VehicleClassGroup struct {
	Name            string
	ClassDefinition string
	Color           string
}

// NewVehicleClassGroup creates group. Definition is "*", "-" or classes separated by "|"
func NewVehicleClassGroup(name, classDefinition, color string) *VehicleClassGroup {
	return &VehicleClassGroup{
		Name:            name,
		ClassDefinition: classDefinition,
		Color:           color,
	}
}

func (group *VehicleClassGroup) AllowsAll() bool {
	return group.ClassDefinition == CLASSDEFINITION_ALL
}

func (group *VehicleClassGroup) ProhibitsAll() bool {
	return group.ClassDefinition == CLASSDEFINITION_PROHIBITED
}

// Classes returns explicit classes of the group (sorted). Nil for "*" and "-"
func (group *VehicleClassGroup) Classes() []string {
	if group.AllowsAll() || group.ProhibitsAll() {
		return nil
	}
	classes := strings.Split(group.ClassDefinition, "|")
	sort.Strings(classes)
	return classes
}

// AllowsClass returns true if vehicle class is allowed by the group
func (group *VehicleClassGroup) AllowsClass(className string) bool {
	if group.AllowsAll() {
		return true
	}
	if group.ProhibitsAll() {
		return false
	}
	for _, c := range group.Classes() {
		if c == className {
			return true
		}
	}
	return false
}

// IsMoreRestrictiveThan returns true if group allows strictly fewer classes than other
func (group *VehicleClassGroup) IsMoreRestrictiveThan(other *VehicleClassGroup) bool {
	if group.ProhibitsAll() {
		return !other.ProhibitsAll()
	}
	if group.AllowsAll() {
		return false
	}
	if other.AllowsAll() {
		return true
	}
	if other.ProhibitsAll() {
		return false
	}
	return len(group.Classes()) < len(other.Classes())
}

func (group *VehicleClassGroup) String() string {
	return group.Name
}

// intersectClassDefinitions returns class definition allowing only classes allowed by both a and b
func intersectClassDefinitions(a, b *VehicleClassGroup) string {
	if a.ProhibitsAll() || b.ProhibitsAll() {
		return CLASSDEFINITION_PROHIBITED
	}
	if a.AllowsAll() {
		return b.ClassDefinition
	}
	if b.AllowsAll() {
		return a.ClassDefinition
	}
	common := []string{}
	for _, c := range a.Classes() {
		if b.AllowsClass(c) {
			common = append(common, c)
		}
	}
	if len(common) == 0 {
		return CLASSDEFINITION_PROHIBITED
	}
	return strings.Join(common, "|")
}

// unionClassDefinitions returns class definition allowing classes allowed by either a or b
func unionClassDefinitions(a, b *VehicleClassGroup) string {
	if a.AllowsAll() || b.AllowsAll() {
		return CLASSDEFINITION_ALL
	}
	if a.ProhibitsAll() {
		return b.ClassDefinition
	}
	if b.ProhibitsAll() {
		return a.ClassDefinition
	}
	seen := make(map[string]struct{})
	all := []string{}
	for _, c := range append(a.Classes(), b.Classes()...) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		all = append(all, c)
	}
	sort.Strings(all)
	return strings.Join(all, "|")
}

// sameClassSet returns true if both definitions describe the same set of classes
func sameClassSet(defA, defB string) bool {
	ga := VehicleClassGroup{ClassDefinition: defA}
	gb := VehicleClassGroup{ClassDefinition: defB}
	if ga.AllowsAll() || gb.AllowsAll() || ga.ProhibitsAll() || gb.ProhibitsAll() {
		return defA == defB
	}
	return strings.Join(ga.Classes(), "|") == strings.Join(gb.Classes(), "|")
}
