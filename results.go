package dtanet

import (
	"fmt"
)

// simWindow is the simulation time window shared by every accumulator of the network
type simWindow struct {
	startMin int
	endMin   int
	stepMin  int
}

type interval struct {
	startMin int
	endMin   int
}

// flowSeries accumulates simulated flows and travel times per simulation step (keyed by step start minute)
// and observed values per arbitrary interval
type flowSeries struct {
	window   *simWindow
	inFlow   map[int]float64
	outFlow  map[int]float64
	tt       map[int]float64
	obsCount map[interval]float64
	obsTT    map[interval]float64
}

func newFlowSeries() *flowSeries {
	return &flowSeries{
		inFlow:   make(map[int]float64),
		outFlow:  make(map[int]float64),
		tt:       make(map[int]float64),
		obsCount: make(map[interval]float64),
		obsTT:    make(map[interval]float64),
	}
}

// SetSimulationWindow configures window which every simulated result must fall into
func (net *Network) SetSimulationWindow(startMin, endMin, stepMin int) error {
	if stepMin <= 0 {
		return dtaErrorf("simulation step must be positive, got %d", stepMin)
	}
	if endMin <= startMin {
		return dtaErrorf("simulation end %d must be after start %d", endMin, startMin)
	}
	if (endMin-startMin)%stepMin != 0 {
		return dtaErrorf("simulation window [%d, %d) is not divisible by step %d", startMin, endMin, stepMin)
	}
	net.window.startMin, net.window.endMin, net.window.stepMin = startMin, endMin, stepMin
	return nil
}

// SimulationWindow returns start, end and step in minutes
func (net *Network) SimulationWindow() (int, int, int) {
	return net.window.startMin, net.window.endMin, net.window.stepMin
}

func (fs *flowSeries) checkInWindow(owner string, startMin, endMin int) error {
	if fs.window == nil || fs.window.stepMin <= 0 || fs.window.endMin <= fs.window.startMin {
		return dtaErrorf("simulation window is not set for %s", owner)
	}
	if startMin >= endMin {
		return dtaErrorf("interval [%d, %d) of %s is empty", startMin, endMin, owner)
	}
	if startMin < fs.window.startMin || endMin > fs.window.endMin {
		return dtaErrorf("interval [%d, %d) of %s is outside of simulation window [%d, %d)", startMin, endMin, owner, fs.window.startMin, fs.window.endMin)
	}
	return nil
}

// steps returns start minutes of simulation steps covering the interval
func (fs *flowSeries) steps(owner string, startMin, endMin int) ([]int, error) {
	if err := fs.checkInWindow(owner, startMin, endMin); err != nil {
		return nil, err
	}
	step := fs.window.stepMin
	if (startMin-fs.window.startMin)%step != 0 || (endMin-startMin)%step != 0 {
		return nil, dtaErrorf("interval [%d, %d) of %s is not a multiple of simulation step %d", startMin, endMin, owner, step)
	}
	out := make([]int, 0, (endMin-startMin)/step)
	for t := startMin; t < endMin; t += step {
		out = append(out, t)
	}
	return out, nil
}

func (fs *flowSeries) setFlow(acc map[int]float64, owner string, startMin, endMin int, flow float64) error {
	if flow < 0 {
		return dtaErrorf("negative flow %f for %s", flow, owner)
	}
	steps, err := fs.steps(owner, startMin, endMin)
	if err != nil {
		return err
	}
	perStep := flow / float64(len(steps))
	for _, t := range steps {
		acc[t] = perStep
	}
	return nil
}

func (fs *flowSeries) sumFlow(acc map[int]float64, owner string, startMin, endMin int) (float64, error) {
	steps, err := fs.steps(owner, startMin, endMin)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, t := range steps {
		total += acc[t]
	}
	return total, nil
}

func (fs *flowSeries) setTT(owner string, startMin, endMin int, tt float64) error {
	if tt < 0 {
		return dtaErrorf("negative travel time %f for %s", tt, owner)
	}
	steps, err := fs.steps(owner, startMin, endMin)
	if err != nil {
		return err
	}
	for _, t := range steps {
		flow := fs.outFlow[t]
		if flow == 0 && tt > 0 {
			return dtaErrorf("travel time %f set for %s in [%d, %d) without flow", tt, owner, t, t+fs.window.stepMin)
		}
		if flow > 0 && tt == 0 {
			return dtaErrorf("zero travel time set for %s in [%d, %d) with positive flow %f", owner, t, t+fs.window.stepMin, flow)
		}
	}
	for _, t := range steps {
		fs.tt[t] = tt
	}
	return nil
}

// weightedTT returns flow-weighted travel time over the interval and total flow
func (fs *flowSeries) weightedTT(owner string, startMin, endMin int) (float64, float64, error) {
	steps, err := fs.steps(owner, startMin, endMin)
	if err != nil {
		return 0, 0, err
	}
	totalFlow, weighted := 0.0, 0.0
	for _, t := range steps {
		totalFlow += fs.outFlow[t]
		weighted += fs.outFlow[t] * fs.tt[t]
	}
	if totalFlow == 0 {
		return 0, 0, nil
	}
	return weighted / totalFlow, totalFlow, nil
}

func (fs *flowSeries) setObserved(acc map[interval]float64, owner string, startMin, endMin int, value float64) error {
	if value < 0 {
		return dtaErrorf("negative observed value %f for %s", value, owner)
	}
	if _, err := fs.steps(owner, startMin, endMin); err != nil {
		return err
	}
	acc[interval{startMin, endMin}] = value
	return nil
}

func (fs *flowSeries) getObserved(acc map[interval]float64, owner string, startMin, endMin int) (float64, error) {
	v, ok := acc[interval{startMin, endMin}]
	if !ok {
		return 0, dtaErrorf("no observed value for %s in [%d, %d)", owner, startMin, endMin)
	}
	return v, nil
}

/* links */

func (link *Link) resultsOwner() string {
	return fmt.Sprintf("link %d", link.ID)
}

func (link *Link) SetSimInVolume(startMin, endMin int, flow float64) error {
	return link.results.setFlow(link.results.inFlow, link.resultsOwner(), startMin, endMin, flow)
}

func (link *Link) SetSimOutVolume(startMin, endMin int, flow float64) error {
	return link.results.setFlow(link.results.outFlow, link.resultsOwner(), startMin, endMin, flow)
}

// SetSimTT sets travel time (minutes). Out volume of the same interval must be set beforehand
func (link *Link) SetSimTT(startMin, endMin int, tt float64) error {
	return link.results.setTT(link.resultsOwner(), startMin, endMin, tt)
}

func (link *Link) SetObsCount(startMin, endMin int, count float64) error {
	return link.results.setObserved(link.results.obsCount, link.resultsOwner(), startMin, endMin, count)
}

func (link *Link) SetObsTT(startMin, endMin int, tt float64) error {
	return link.results.setObserved(link.results.obsTT, link.resultsOwner(), startMin, endMin, tt)
}

func (link *Link) GetSimInVolume(startMin, endMin int) (float64, error) {
	return link.results.sumFlow(link.results.inFlow, link.resultsOwner(), startMin, endMin)
}

// GetSimOutVolume sums outgoing movements when the link has any, otherwise reads own accumulator
func (link *Link) GetSimOutVolume(startMin, endMin int) (float64, error) {
	if len(link.outgoingMovements) == 0 {
		return link.results.sumFlow(link.results.outFlow, link.resultsOwner(), startMin, endMin)
	}
	total := 0.0
	for _, mov := range link.outgoingMovements {
		v, err := mov.GetSimOutVolume(startMin, endMin)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// GetSimTT returns flow-weighted travel time (minutes). Zero when there is no flow
func (link *Link) GetSimTT(startMin, endMin int) (float64, error) {
	if len(link.outgoingMovements) == 0 {
		tt, _, err := link.results.weightedTT(link.resultsOwner(), startMin, endMin)
		return tt, err
	}
	totalFlow, weighted := 0.0, 0.0
	for _, mov := range link.outgoingMovements {
		tt, flow, err := mov.results.weightedTT(mov.resultsOwner(), startMin, endMin)
		if err != nil {
			return 0, err
		}
		totalFlow += flow
		weighted += tt * flow
	}
	if totalFlow == 0 {
		return 0, nil
	}
	return weighted / totalFlow, nil
}

// GetSimSpeed returns length / travel time (per hour). Free flow speed when there is no flow
func (link *Link) GetSimSpeed(startMin, endMin int) (float64, error) {
	tt, err := link.GetSimTT(startMin, endMin)
	if err != nil {
		return 0, err
	}
	if tt == 0 {
		return link.freeflowSpeed, nil
	}
	return link.length / (tt / 60.0), nil
}

func (link *Link) GetObsCount(startMin, endMin int) (float64, error) {
	return link.results.getObserved(link.results.obsCount, link.resultsOwner(), startMin, endMin)
}

func (link *Link) HasObsCount(startMin, endMin int) bool {
	_, ok := link.results.obsCount[interval{startMin, endMin}]
	return ok
}

func (link *Link) GetObsTT(startMin, endMin int) (float64, error) {
	return link.results.getObserved(link.results.obsTT, link.resultsOwner(), startMin, endMin)
}

func (link *Link) HasObsTT(startMin, endMin int) bool {
	_, ok := link.results.obsTT[interval{startMin, endMin}]
	return ok
}

/* movements */

func (mov *Movement) resultsOwner() string {
	return "movement " + mov.ID()
}

func (mov *Movement) SetSimInVolume(startMin, endMin int, flow float64) error {
	return mov.results.setFlow(mov.results.inFlow, mov.resultsOwner(), startMin, endMin, flow)
}

func (mov *Movement) SetSimOutVolume(startMin, endMin int, flow float64) error {
	return mov.results.setFlow(mov.results.outFlow, mov.resultsOwner(), startMin, endMin, flow)
}

func (mov *Movement) SetSimTT(startMin, endMin int, tt float64) error {
	return mov.results.setTT(mov.resultsOwner(), startMin, endMin, tt)
}

func (mov *Movement) SetObsCount(startMin, endMin int, count float64) error {
	return mov.results.setObserved(mov.results.obsCount, mov.resultsOwner(), startMin, endMin, count)
}

func (mov *Movement) SetObsTT(startMin, endMin int, tt float64) error {
	return mov.results.setObserved(mov.results.obsTT, mov.resultsOwner(), startMin, endMin, tt)
}

func (mov *Movement) GetSimInVolume(startMin, endMin int) (float64, error) {
	return mov.results.sumFlow(mov.results.inFlow, mov.resultsOwner(), startMin, endMin)
}

func (mov *Movement) GetSimOutVolume(startMin, endMin int) (float64, error) {
	return mov.results.sumFlow(mov.results.outFlow, mov.resultsOwner(), startMin, endMin)
}

func (mov *Movement) GetSimTT(startMin, endMin int) (float64, error) {
	tt, _, err := mov.results.weightedTT(mov.resultsOwner(), startMin, endMin)
	return tt, err
}

func (mov *Movement) GetObsCount(startMin, endMin int) (float64, error) {
	return mov.results.getObserved(mov.results.obsCount, mov.resultsOwner(), startMin, endMin)
}

func (mov *Movement) HasObsCount(startMin, endMin int) bool {
	_, ok := mov.results.obsCount[interval{startMin, endMin}]
	return ok
}

func (mov *Movement) GetObsTT(startMin, endMin int) (float64, error) {
	return mov.results.getObserved(mov.results.obsTT, mov.resultsOwner(), startMin, endMin)
}
