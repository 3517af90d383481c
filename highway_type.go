package dtanet

// HighwayType is value of OSM 'highway' tag supported by importer
type HighwayType uint16

const (
	HIGHWAY_MOTORWAY = HighwayType(iota + 1)
	HIGHWAY_MOTORWAY_LINK
	HIGHWAY_TRUNK
	HIGHWAY_TRUNK_LINK
	HIGHWAY_PRIMARY
	HIGHWAY_PRIMARY_LINK
	HIGHWAY_SECONDARY
	HIGHWAY_SECONDARY_LINK
	HIGHWAY_TERTIARY
	HIGHWAY_TERTIARY_LINK
	HIGHWAY_RESIDENTIAL
	HIGHWAY_LIVING_STREET
	HIGHWAY_SERVICE
	HIGHWAY_UNCLASSIFIED
)

func (iotaIdx HighwayType) String() string {
	return [...]string{"motorway", "motorway_link", "trunk", "trunk_link", "primary", "primary_link", "secondary", "secondary_link", "tertiary", "tertiary_link", "residential", "living_street", "service", "unclassified"}[iotaIdx-1]
}

// IsRamp returns true for '*_link' highways
func (iotaIdx HighwayType) IsRamp() bool {
	switch iotaIdx {
	case HIGHWAY_MOTORWAY_LINK, HIGHWAY_TRUNK_LINK, HIGHWAY_PRIMARY_LINK, HIGHWAY_SECONDARY_LINK, HIGHWAY_TERTIARY_LINK:
		return true
	}
	return false
}

func getHighwayType(str string) HighwayType {
	if found, ok := highwaysTypes[str]; ok {
		return found
	}
	return 0
}

// Facility type codes assigned to imported road links
const (
	FACILITY_FREEWAY     = 1
	FACILITY_EXPRESSWAY  = 2
	FACILITY_RAMP        = 3
	FACILITY_ARTERIAL    = 4
	FACILITY_COLLECTOR   = 5
	FACILITY_LOCAL       = 6
	FACILITY_SERVICE     = 7
	FACILITY_CONNECTOR   = 9
	FACILITY_UNCLASSIFED = 8
)

// highwayDefaults is used when OSM way does not carry explicit 'lanes' or 'maxspeed' tags
type highwayDefaults struct {
	facilityType int
	lanes        int
	// km/h
	speed float64
}

var (
	highwaysTypes = map[string]HighwayType{
		"motorway":       HIGHWAY_MOTORWAY,
		"motorway_link":  HIGHWAY_MOTORWAY_LINK,
		"trunk":          HIGHWAY_TRUNK,
		"trunk_link":     HIGHWAY_TRUNK_LINK,
		"primary":        HIGHWAY_PRIMARY,
		"primary_link":   HIGHWAY_PRIMARY_LINK,
		"secondary":      HIGHWAY_SECONDARY,
		"secondary_link": HIGHWAY_SECONDARY_LINK,
		"tertiary":       HIGHWAY_TERTIARY,
		"tertiary_link":  HIGHWAY_TERTIARY_LINK,
		"residential":    HIGHWAY_RESIDENTIAL,
		"living_street":  HIGHWAY_LIVING_STREET,
		"service":        HIGHWAY_SERVICE,
		"unclassified":   HIGHWAY_UNCLASSIFIED,
	}

	defaultsByHighway = map[HighwayType]highwayDefaults{
		HIGHWAY_MOTORWAY:       {FACILITY_FREEWAY, 4, 120},
		HIGHWAY_MOTORWAY_LINK:  {FACILITY_RAMP, 1, 60},
		HIGHWAY_TRUNK:          {FACILITY_EXPRESSWAY, 3, 100},
		HIGHWAY_TRUNK_LINK:     {FACILITY_RAMP, 1, 50},
		HIGHWAY_PRIMARY:        {FACILITY_ARTERIAL, 3, 80},
		HIGHWAY_PRIMARY_LINK:   {FACILITY_RAMP, 1, 40},
		HIGHWAY_SECONDARY:      {FACILITY_COLLECTOR, 2, 60},
		HIGHWAY_SECONDARY_LINK: {FACILITY_RAMP, 1, 40},
		HIGHWAY_TERTIARY:       {FACILITY_COLLECTOR, 2, 40},
		HIGHWAY_TERTIARY_LINK:  {FACILITY_RAMP, 1, 30},
		HIGHWAY_RESIDENTIAL:    {FACILITY_LOCAL, 1, 30},
		HIGHWAY_LIVING_STREET:  {FACILITY_LOCAL, 1, 20},
		HIGHWAY_SERVICE:        {FACILITY_SERVICE, 1, 30},
		HIGHWAY_UNCLASSIFIED:   {FACILITY_UNCLASSIFED, 1, 30},
	}

	// Ways with these 'junction' values are one way even without 'oneway' tag
	onewayJunctions = map[string]struct{}{
		"roundabout": {},
		"circular":   {},
	}

	// Time dependent 'oneway' values. Imported as two way
	onewayReversible = map[string]struct{}{
		"reversible":  {},
		"alternating": {},
	}
)
