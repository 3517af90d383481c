package dtanet

import (
	"fmt"
	"io"
	"strings"
)

const (
	SECTION_STUDY_PERIOD      = "STUDY_PERIOD"
	SECTION_EVENTS            = "EVENTS"
	SECTION_VEH_CLASSES       = "VEH_CLASSES"
	SECTION_VEH_TYPES         = "VEH_TYPES"
	SECTION_VEH_CLASS_GROUPS  = "VEH_CLASS_GROUPS"
	SECTION_GENERALIZED_COSTS = "GENERALIZED_COSTS"
)

var scenarioSections = []string{
	SECTION_STUDY_PERIOD,
	SECTION_EVENTS,
	SECTION_VEH_CLASSES,
	SECTION_VEH_TYPES,
	SECTION_VEH_CLASS_GROUPS,
	SECTION_GENERALIZED_COSTS,
}

// ReadScenario reads scenario file
func ReadScenario(path string) (*Scenario, error) {
	sf, err := readSectionedFile(path, scenarioSections)
	if err != nil {
		return nil, err
	}
	periodRecords, err := sf.records(SECTION_STUDY_PERIOD)
	if err != nil {
		return nil, err
	}
	if len(periodRecords) == 0 {
		return nil, dtaErrorf("end of stream while reading %s in file '%s'", SECTION_STUDY_PERIOD, path)
	}
	fp, err := newFieldParser(periodRecords[0], 2)
	if err != nil {
		return nil, err
	}
	start, end := fp.asTime(0), fp.asTime(1)
	if fp.err != nil {
		return nil, fp.err
	}
	scn, err := NewScenario(start, end)
	if err != nil {
		return nil, err
	}

	for _, rec := range sf.optionalRecords(SECTION_EVENTS) {
		fields := splitFields(rec)
		if len(fields) == 0 {
			continue
		}
		t, err := ParseTime(fields[0])
		if err != nil {
			return nil, err
		}
		scn.AddEvent(t, strings.Join(fields[1:], " "))
	}

	classRecords, err := sf.records(SECTION_VEH_CLASSES)
	if err != nil {
		return nil, err
	}
	for _, rec := range classRecords {
		if err := scn.AddVehicleClass(strings.TrimSpace(rec)); err != nil {
			return nil, err
		}
	}

	typeRecords, err := sf.records(SECTION_VEH_TYPES)
	if err != nil {
		return nil, err
	}
	for _, rec := range typeRecords {
		fp, err := newFieldParser(rec, 6)
		if err != nil {
			return nil, err
		}
		vt := &VehicleType{
			ClassName:    fp.str(0),
			Name:         fp.str(1),
			Length:       fp.asFloat(2),
			ResponseTime: fp.asFloat(3),
			MaxSpeed:     fp.asFloat(4),
			SpeedRatio:   fp.asFloat(5),
		}
		if fp.err != nil {
			return nil, fp.err
		}
		if err := scn.AddVehicleType(vt); err != nil {
			return nil, err
		}
	}

	groupRecords, err := sf.records(SECTION_VEH_CLASS_GROUPS)
	if err != nil {
		return nil, err
	}
	for _, rec := range groupRecords {
		fp, err := newFieldParser(rec, 2)
		if err != nil {
			return nil, err
		}
		group := NewVehicleClassGroup(fp.str(0), fp.str(1), fp.str(2))
		if existing, err := scn.GetVehicleClassGroup(group.Name); err == nil {
			existing.ClassDefinition = group.ClassDefinition
			existing.Color = group.Color
			continue
		}
		if err := scn.AddVehicleClassGroup(group); err != nil {
			return nil, err
		}
	}

	for _, rec := range sf.optionalRecords(SECTION_GENERALIZED_COSTS) {
		scn.AddGeneralizedCost(strings.Join(splitFields(rec), " "))
	}
	logger.Infof("Read scenario from '%s': %d classes, %d types, %d groups", path, len(scn.vehicleClasses), len(scn.vehicleTypes), len(scn.groupsOrder))
	return scn, nil
}

// WriteScenario writes scenario file
func (scn *Scenario) WriteScenario(path string) error {
	return writeFile(path, scn.writeScenario)
}

func (scn *Scenario) writeScenario(w io.Writer) error {
	fmt.Fprintf(w, "<DYNAMEQ>\n<VERSION_1.8>\n<SCENARIO_FILE>\n* Created by dtanet\n")
	fmt.Fprintf(w, "%s\n*   start    end\n    %s  %s\n", SECTION_STUDY_PERIOD, scn.StartTime, scn.EndTime)
	fmt.Fprintf(w, "%s\n*    time    desc\n", SECTION_EVENTS)
	for _, ev := range scn.events {
		fmt.Fprintf(w, "%s %s\n", ev.Time, ev.Description)
	}
	fmt.Fprintf(w, "%s\n*      class_name\n", SECTION_VEH_CLASSES)
	for _, c := range scn.vehicleClasses {
		fmt.Fprintf(w, "%s\n", c)
	}
	fmt.Fprintf(w, "%s\n*class_name type_name length res_time max_speed speed_ratio\n", SECTION_VEH_TYPES)
	for _, vt := range scn.vehicleTypes {
		fmt.Fprintf(w, "%s %s %s %s %s %s\n", vt.ClassName, vt.Name, formatFloat(vt.Length), formatFloat(vt.ResponseTime), formatFloat(vt.MaxSpeed), formatFloat(vt.SpeedRatio))
	}
	fmt.Fprintf(w, "%s\n*      name  class   color\n", SECTION_VEH_CLASS_GROUPS)
	for _, g := range scn.VehicleClassGroups() {
		fmt.Fprintf(w, "%s %s %s\n", g.Name, g.ClassDefinition, g.Color)
	}
	fmt.Fprintf(w, "%s\n*  name  expression\n", SECTION_GENERALIZED_COSTS)
	for _, gc := range scn.generalizedCosts {
		fmt.Fprintf(w, "%s\n", gc)
	}
	return nil
}
