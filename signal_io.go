package dtanet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	CONTROL_PLAN_INFO = "PLAN_INFO"
	CONTROL_NODE      = "NODE"
	CONTROL_PLAN      = "PLAN"
	CONTROL_PHASE     = "PHASE"
)

// controlReader keeps state of control file parsing
type controlReader struct {
	net        *Network
	path       string
	lineNum    int
	collection *PlanCollectionInfo
	node       *Node
	plan       *TimePlan
	phase      *Phase
	plans      []*TimePlan
	// description lines of the current plan collection until the first NODE
	describing bool
	infoFields int
}

// ReadControlFile reads plan collections and time plans. Every plan is validated and attached to its node which
// becomes signalized. Returns number of read time plans
func (net *Network) ReadControlFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("Can't open control file '%s'", path))
	}
	defer file.Close()
	cnt, err := net.readControl(file, path)
	if err != nil {
		return cnt, errors.Wrap(err, fmt.Sprintf("Can't parse control file '%s'", path))
	}
	logger.Infof("Read %d time plans from '%s'", cnt, path)
	return cnt, nil
}

func (net *Network) readControl(r io.Reader, path string) (int, error) {
	cr := &controlReader{net: net, path: path}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cr.lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "<") || strings.HasPrefix(line, "*") {
			continue
		}
		if err := cr.consume(line); err != nil {
			return len(cr.plans), errors.Wrap(err, fmt.Sprintf("Line %d", cr.lineNum))
		}
	}
	if err := scanner.Err(); err != nil {
		return len(cr.plans), errors.Wrap(err, "Can't scan lines")
	}
	if cr.describing {
		if cr.infoFields < 2 {
			return len(cr.plans), dtaErrorf("end of stream while reading %s in file '%s'", CONTROL_PLAN_INFO, path)
		}
		if err := cr.registerCollection(); err != nil {
			return len(cr.plans), err
		}
	}
	if err := cr.finishPlan(); err != nil {
		return len(cr.plans), err
	}
	return len(cr.plans), nil
}

func (cr *controlReader) consume(line string) error {
	fields := splitFields(line)
	keyword := fields[0]
	switch {
	case keyword == CONTROL_PLAN_INFO:
		if err := cr.finishPlan(); err != nil {
			return err
		}
		if cr.describing {
			if cr.infoFields < 2 {
				return dtaErrorf("%s record is incomplete", CONTROL_PLAN_INFO)
			}
			if err := cr.registerCollection(); err != nil {
				return err
			}
		}
		cr.collection = &PlanCollectionInfo{}
		cr.describing = true
		cr.infoFields = 0
		return nil
	case cr.describing && cr.infoFields == 0:
		fp, err := newFieldParser(line, 2)
		if err != nil {
			return err
		}
		cr.collection.StartTime, cr.collection.EndTime = fp.asTime(0), fp.asTime(1)
		if fp.err != nil {
			return fp.err
		}
		cr.infoFields++
		return nil
	case cr.describing && cr.infoFields == 1:
		cr.collection.Name = line
		cr.infoFields++
		return nil
	case keyword == CONTROL_NODE:
		if cr.collection == nil {
			return dtaErrorf("%s record before %s", CONTROL_NODE, CONTROL_PLAN_INFO)
		}
		if cr.describing {
			if err := cr.registerCollection(); err != nil {
				return err
			}
		}
		if err := cr.finishPlan(); err != nil {
			return err
		}
		fp, err := newFieldParser(line, 2)
		if err != nil {
			return err
		}
		id := NodeID(fp.asInt(1))
		if fp.err != nil {
			return fp.err
		}
		node, err := cr.net.GetNodeForID(id)
		if err != nil {
			return err
		}
		cr.node = node
		return nil
	case cr.describing:
		if cr.collection.Description != "" {
			cr.collection.Description += "\n"
		}
		cr.collection.Description += line
		return nil
	case keyword == CONTROL_PLAN:
		if cr.node == nil {
			return dtaErrorf("%s record before %s", CONTROL_PLAN, CONTROL_NODE)
		}
		fp, err := newFieldParser(line, 5)
		if err != nil {
			return err
		}
		planType, offset, sync, tor := fp.asInt(1), fp.asFloat(2), fp.asInt(3), fp.asInt(4)
		if fp.err != nil {
			return fp.err
		}
		plan, err := NewTimePlan(cr.net, cr.node, cr.collection, PlanType(planType), offset, sync, tor != 0)
		if err != nil {
			return err
		}
		cr.plan = plan
		return nil
	case keyword == CONTROL_PHASE:
		if cr.plan == nil {
			return dtaErrorf("%s record before %s", CONTROL_PHASE, CONTROL_PLAN)
		}
		fp, err := newFieldParser(line, 5)
		if err != nil {
			return err
		}
		green, yellow, red, phaseType := fp.asFloat(1), fp.asFloat(2), fp.asFloat(3), fp.asInt(4)
		if fp.err != nil {
			return fp.err
		}
		phase, err := NewPhase(cr.plan, green, yellow, red, PhaseType(phaseType))
		if err != nil {
			return err
		}
		if err := cr.plan.AddPhase(phase); err != nil {
			return err
		}
		cr.phase = phase
		return nil
	}
	// Phase movement: in-link out-link capacity
	if cr.phase == nil {
		return dtaErrorf("unexpected record '%s'", line)
	}
	fp, err := newFieldParser(line, 3)
	if err != nil {
		return err
	}
	inID, outID := LinkID(fp.asInt(0)), LinkID(fp.asInt(1))
	capacity, err := parsePhaseCapacity(fp.str(2))
	if fp.err != nil {
		return fp.err
	}
	if err != nil {
		return err
	}
	in, err := cr.net.GetLinkForID(inID)
	if err != nil {
		return err
	}
	out, err := cr.net.GetLinkForID(outID)
	if err != nil {
		return err
	}
	mov := in.movementTo(out)
	if mov == nil {
		return dtaErrorf("there is no movement from link %d to link %d", inID, outID)
	}
	return cr.phase.AddPhaseMovement(&PhaseMovement{Movement: mov, Capacity: capacity})
}

func (cr *controlReader) registerCollection() error {
	cr.describing = false
	if cr.collection.StartTime >= cr.collection.EndTime {
		return dtaErrorf("plan collection %s: start time %s must be before end time %s", cr.collection.Name, cr.collection.StartTime, cr.collection.EndTime)
	}
	if existing, err := cr.net.GetPlanCollectionInfo(cr.collection.Name); err == nil {
		cr.collection = existing
		return nil
	}
	return cr.net.AddPlanCollectionInfo(cr.collection)
}

// finishPlan validates current time plan and attaches it to node
func (cr *controlReader) finishPlan() error {
	plan := cr.plan
	cr.plan, cr.phase = nil, nil
	if plan == nil {
		return nil
	}
	if err := plan.Validate(true); err != nil {
		return err
	}
	if err := plan.node.AddTimePlan(plan); err != nil {
		return err
	}
	plan.node.SetControl(CONTROL_SIGNALIZED)
	cr.plans = append(cr.plans, plan)
	return nil
}

func parsePhaseCapacity(s string) (PhaseCapacity, error) {
	switch strings.ToLower(s) {
	case "0", "perm", "permitted":
		return CAPACITY_PERMITTED, nil
	case "1", "prot", "protected":
		return CAPACITY_PROTECTED, nil
	}
	return CAPACITY_PERMITTED, dtaErrorf("unknown phase movement capacity '%s'", s)
}

// WriteControlFile writes every plan collection followed by time plans of nodes (ascending node id)
func (net *Network) WriteControlFile(path string) error {
	return writeFile(path, net.writeControl)
}

func (net *Network) writeControl(w io.Writer) error {
	fmt.Fprintf(w, "<DYNAMEQ>\n<VERSION_1.8>\n<CONTROL_PLANS_FILE>\n* Created by dtanet\n")
	nodes := net.RoadNodes()
	for _, collection := range net.PlanCollections() {
		fmt.Fprintf(w, "%s\n* start end\n%s %s\n* name\n%s\n* description\n", CONTROL_PLAN_INFO, collection.StartTime, collection.EndTime, collection.Name)
		if collection.Description != "" {
			fmt.Fprintf(w, "%s\n", collection.Description)
		}
		for _, node := range nodes {
			plan, ok := node.GetTimePlan(collection)
			if !ok {
				continue
			}
			tor := 0
			if plan.TurnOnRed {
				tor = 1
			}
			fmt.Fprintf(w, "%s %d\n* type offset sync_phase turn_on_red\n%s %d %s %d %d\n", CONTROL_NODE, node.ID, CONTROL_PLAN, plan.Type, formatFloat(plan.Offset), plan.SyncPhase, tor)
			for _, phase := range plan.phases {
				fmt.Fprintf(w, "* green yellow red type\n%s %s %s %s %d\n* inlink outlink capacity\n", CONTROL_PHASE, formatFloat(phase.Green), formatFloat(phase.Yellow), formatFloat(phase.Red), phase.Type)
				for _, pm := range phase.movements {
					if _, err := fmt.Fprintf(w, "%d %d %d\n", pm.Movement.incomingLink.ID, pm.Movement.outgoingLink.ID, pm.Capacity); err != nil {
						return errors.Wrap(err, "Can't write phase movement")
					}
				}
			}
		}
	}
	return nil
}
