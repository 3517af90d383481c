package dtanet

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// numericLabelCutoff is used for labels starting with digit: "3RD" and "5TH" are too close otherwise
const numericLabelCutoff = 0.9

var ordinalWords = []struct {
	word    string
	numeric string
}{
	{"FIRST", "1ST"}, {"SECOND", "2ND"}, {"THIRD", "3RD"}, {"FOURTH", "4TH"},
	{"FIFTH", "5TH"}, {"SIXTH", "6TH"}, {"SEVENTH", "7TH"}, {"EIGHTH", "8TH"},
	{"NINTH", "9TH"}, {"TENTH", "10TH"}, {"ELEVENTH", "11TH"}, {"TWELFTH", "12TH"},
	{"THIRTEENTH", "13TH"}, {"FOURTEENTH", "14TH"}, {"FIFTEENTH", "15TH"},
	{"SIXTEENTH", "16TH"}, {"SEVENTEENTH", "17TH"}, {"EIGHTEENTH", "18TH"},
	{"NINETEENTH", "19TH"}, {"TWENTIETH", "20TH"},
}

var streetSuffixes = []string{
	" STREET", " ST", " AVENUE", " AVE", " AV", " BOULEVARD", " BLVD", " ROAD", " RD",
	" DRIVE", " DR", " LANE", " LN", " PLACE", " PL", " COURT", " CT", " TERRACE", " TER",
	" HIGHWAY", " HWY", " EXPRESSWAY", " EXPY", " PARKWAY", " PKWY", " WAY",
}

var streetPrefixes = []string{"NORTH ", "SOUTH ", "EAST ", "WEST ", "N ", "S ", "E ", "W "}

// NormalizeRoadLabel upper-cases label, replaces ordinal words by numbers and strips street type suffix
// and directional prefix
func NormalizeRoadLabel(label string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(label), " "))
	s = strings.ReplaceAll(s, ".", "")
	words := strings.Split(s, " ")
	for i, w := range words {
		for _, ow := range ordinalWords {
			if w == ow.word {
				words[i] = ow.numeric
				break
			}
		}
	}
	s = strings.Join(words, " ")
	for _, prefix := range streetPrefixes {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			s = s[len(prefix):]
			break
		}
	}
	for _, suffix := range streetSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			s = s[:len(s)-len(suffix)]
			break
		}
	}
	return s
}

// LabelRatio returns similarity of two labels in [0, 1] based on Levenshtein distance
func LabelRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

// labelsMatch compares normalized labels using cutoff (stricter for numeric labels)
func labelsMatch(required, candidate string, cutoff float64) bool {
	if required == candidate {
		return true
	}
	if startsWithDigit(required) && cutoff < numericLabelCutoff {
		cutoff = numericLabelCutoff
	}
	return LabelRatio(required, candidate) >= cutoff
}

func (net *Network) labelCutoff(cutoff float64) float64 {
	if cutoff <= 0 || cutoff > 1 {
		return net.cfg.LabelCutoff
	}
	return cutoff
}

// adjacentRoadLabels returns unique normalized labels of road links adjacent to node
func adjacentRoadLabels(node *Node) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, link := range node.AdjacentLinks() {
		if !link.IsRoadLink() || strings.TrimSpace(link.Label) == "" {
			continue
		}
		label := NormalizeRoadLabel(link.Label)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// FindNodeForRoadLabels returns the first road node (ascending id) whose adjacent road links match every label.
// Zero cutoff means network default
func (net *Network) FindNodeForRoadLabels(labels []string, cutoff float64) (*Node, error) {
	cutoff = net.labelCutoff(cutoff)
	required := make([]string, 0, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) != "" {
			required = append(required, NormalizeRoadLabel(l))
		}
	}
	if len(required) == 0 {
		return nil, dtaErrorf("no labels given to find node")
	}
	for _, node := range net.RoadNodes() {
		adjacent := adjacentRoadLabels(node)
		if len(adjacent) == 0 {
			continue
		}
		matched := true
		for _, req := range required {
			found := false
			for _, candidate := range adjacent {
				if labelsMatch(req, candidate, cutoff) {
					found = true
					break
				}
			}
			if !found {
				matched = false
				break
			}
		}
		if matched {
			return node, nil
		}
	}
	return nil, dtaErrorf("there is no node for labels %s", strings.Join(labels, ", "))
}

// FindLinksForRoadLabels returns links along street onLabel heading onDir (NB/EB/SB/WB) from its intersection
// with fromLabel to its intersection with toLabel. Intersections are matched with cutoff, the walk itself only
// follows links whose normalized label equals normalized onLabel
func (net *Network) FindLinksForRoadLabels(onLabel, onDir, fromLabel, toLabel string, cutoff float64) ([]*Link, error) {
	cutoff = net.labelCutoff(cutoff)
	start, err := net.FindNodeForRoadLabels([]string{onLabel, fromLabel}, cutoff)
	if err != nil {
		return nil, err
	}
	end, err := net.FindNodeForRoadLabels([]string{onLabel, toLabel}, cutoff)
	if err != nil {
		return nil, err
	}
	if start == end {
		return nil, dtaErrorf("intersections of %s with %s and %s are the same node %d", onLabel, fromLabel, toLabel, start.ID)
	}
	on := NormalizeRoadLabel(onLabel)
	visited := map[NodeID]struct{}{start.ID: {}}
	out := make([]*Link, 0)
	current := start
	for current != end {
		var next *Link
		for _, link := range current.outgoingLinks {
			if !link.IsRoadLink() || link.GetDirection(false, false) != onDir {
				continue
			}
			if NormalizeRoadLabel(link.Label) == on {
				next = link
				break
			}
		}
		if next == nil {
			return nil, dtaErrorf("dead end at node %d while walking %s %s from %s to %s", current.ID, onDir, onLabel, fromLabel, toLabel)
		}
		if _, ok := visited[next.endNode.ID]; ok {
			return nil, dtaErrorf("cycle at node %d while walking %s %s from %s to %s", next.endNode.ID, onDir, onLabel, fromLabel, toLabel)
		}
		visited[next.endNode.ID] = struct{}{}
		out = append(out, next)
		current = next.endNode
	}
	return out, nil
}

// FindMovementForRoadLabels returns movement from street incomingOn heading incomingDir to street outgoingOn
// heading outgoingDir. intersectingLabel (optional) helps to locate the node for through movements
func (net *Network) FindMovementForRoadLabels(incomingOn, incomingDir, outgoingOn, outgoingDir, intersectingLabel string, cutoff float64) (*Movement, error) {
	cutoff = net.labelCutoff(cutoff)
	labels := []string{incomingOn, outgoingOn}
	if strings.TrimSpace(intersectingLabel) != "" {
		labels = append(labels, intersectingLabel)
	}
	node, err := net.FindNodeForRoadLabels(labels, cutoff)
	if err != nil {
		return nil, err
	}
	in := NormalizeRoadLabel(incomingOn)
	out := NormalizeRoadLabel(outgoingOn)
	for _, inLink := range node.incomingLinks {
		if !inLink.IsRoadLink() || inLink.GetDirection(true, true) != incomingDir || !labelsMatch(in, NormalizeRoadLabel(inLink.Label), cutoff) {
			continue
		}
		for _, outLink := range node.outgoingLinks {
			if !outLink.IsRoadLink() || outLink.GetDirection(true, false) != outgoingDir || !labelsMatch(out, NormalizeRoadLabel(outLink.Label), cutoff) {
				continue
			}
			if mov := inLink.movementTo(outLink); mov != nil {
				return mov, nil
			}
		}
	}
	return nil, dtaErrorf("there is no movement %s %s -> %s %s at node %d", incomingDir, incomingOn, outgoingDir, outgoingOn, node.ID)
}
