package dtanet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleClassGroups(t *testing.T) {
	scn := testScenario(t)
	all, prohibited := scn.AllGroup(), scn.ProhibitedGroup()
	transit, err := scn.GetVehicleClassGroup(GROUP_TRANSIT)
	require.NoError(t, err)

	assert.True(t, all.AllowsClass("Car"))
	assert.False(t, prohibited.AllowsClass("Car"))
	assert.True(t, transit.AllowsClass(VEHICLE_CLASS_TRANSIT))
	assert.False(t, transit.AllowsClass("Car"))
	assert.Nil(t, all.Classes())

	assert.True(t, prohibited.IsMoreRestrictiveThan(transit))
	assert.True(t, transit.IsMoreRestrictiveThan(all))
	assert.False(t, all.IsMoreRestrictiveThan(transit))
	assert.False(t, prohibited.IsMoreRestrictiveThan(prohibited))

	assert.Same(t, transit, scn.IntersectGroups(all, transit))
	assert.Same(t, prohibited, scn.IntersectGroups(prohibited, transit))
	assert.Same(t, all, scn.UnionGroups(all, transit))
	assert.Same(t, transit, scn.UnionGroups(prohibited, transit))

	heavy := NewVehicleClassGroup("Heavy", "Truck|Transit", "#ff0000")
	require.NoError(t, scn.AddVehicleClassGroup(heavy))
	assert.Error(t, scn.AddVehicleClassGroup(heavy))
	assert.Equal(t, []string{"Transit", "Truck"}, heavy.Classes())
	assert.Same(t, transit, scn.IntersectGroups(heavy, transit))

	cars := NewVehicleClassGroup("Cars", "Car", "#0000ff")
	union := scn.UnionGroups(cars, heavy)
	assert.Equal(t, "Car|Transit|Truck", union.ClassDefinition)
	assert.Same(t, union, scn.UnionGroups(heavy, cars), "groups with the same classes are reused")
	assert.Same(t, prohibited, scn.IntersectGroups(cars, heavy))
}

func TestScenarioTaxonomy(t *testing.T) {
	_, err := NewScenario(NewTime(9, 0, 0), NewTime(7, 0, 0))
	assert.Error(t, err)

	scn := testScenario(t)
	require.NoError(t, scn.AddVehicleClass("Car"))
	assert.Error(t, scn.AddVehicleClass("Car"))
	require.NoError(t, scn.AddVehicleType(&VehicleType{Name: "Sedan", ClassName: "Car", Length: 16, ResponseTime: 1, MaxSpeed: 120, SpeedRatio: 1}))
	assert.Error(t, scn.AddVehicleType(&VehicleType{Name: "Sedan", ClassName: "Car"}))
	assert.Error(t, scn.AddVehicleType(&VehicleType{Name: "Semi", ClassName: "Truck"}), "class is not registered")
	vt, err := scn.GetVehicleType("Sedan")
	require.NoError(t, err)
	assert.Equal(t, 16.0, vt.Length)
	_, err = scn.GetVehicleType("Semi")
	assert.Error(t, err)
}

func TestScenarioRoundTrip(t *testing.T) {
	scn, err := NewScenario(NewTime(6, 30, 0), NewTime(9, 30, 0))
	require.NoError(t, err)
	for _, c := range []string{"Car", "Truck", VEHICLE_CLASS_TRANSIT} {
		require.NoError(t, scn.AddVehicleClass(c))
	}
	require.NoError(t, scn.AddVehicleType(&VehicleType{Name: "Car", ClassName: "Car", Length: 17.5, ResponseTime: 1, MaxSpeed: 100, SpeedRatio: 1}))
	require.NoError(t, scn.AddVehicleType(&VehicleType{Name: "Semi", ClassName: "Truck", Length: 60, ResponseTime: 1.6, MaxSpeed: 70, SpeedRatio: 0.9}))
	require.NoError(t, scn.AddVehicleType(&VehicleType{Name: "Bus", ClassName: VEHICLE_CLASS_TRANSIT, Length: 40, ResponseTime: 1.4, MaxSpeed: 80, SpeedRatio: 1}))
	require.NoError(t, scn.AddVehicleClassGroup(NewVehicleClassGroup("Heavy", "Truck|Transit", "#ff0000")))
	scn.AddEvent(NewTime(7, 45, 0), "Incident on Main St")
	scn.AddGeneralizedCost("toll_cost ptime+0.5*ptoll")

	fname := filepath.Join(t.TempDir(), "scenario.dqt")
	require.NoError(t, scn.WriteScenario(fname))
	read, err := ReadScenario(fname)
	require.NoError(t, err)

	assert.Equal(t, scn.StartTime, read.StartTime)
	assert.Equal(t, scn.EndTime, read.EndTime)
	assert.Equal(t, scn.VehicleClasses(), read.VehicleClasses())
	assert.Equal(t, scn.VehicleTypes(), read.VehicleTypes())
	require.Len(t, read.VehicleClassGroups(), 4)
	for i, group := range scn.VehicleClassGroups() {
		assert.Equal(t, *group, *read.VehicleClassGroups()[i])
	}
	assert.Equal(t, scn.Events(), read.Events())
	assert.Equal(t, scn.GeneralizedCosts(), read.GeneralizedCosts())

	_, err = ReadScenario(writeTempFile(t, "no_period.dqt", "VEH_CLASSES\nCar\n"))
	assert.Error(t, err)
	_, err = ReadScenario(writeTempFile(t, "no_classes.dqt", "STUDY_PERIOD\n07:00 09:00\n"))
	assert.Error(t, err)
	_, err = ReadScenario(writeTempFile(t, "bad_type.dqt", "STUDY_PERIOD\n07:00 09:00\nVEH_CLASSES\nCar\nVEH_TYPES\nTruck Semi 60 1 70 1\nVEH_CLASS_GROUPS\n"))
	assert.Error(t, err, "type refers to unknown class")
}
