package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node types
const (
	NodeSendMessage = "send_message"
	NodeWait        = "wait"
	NodeCondition   = "condition"
	NodeTag         = "tag"
	NodeMoveStage   = "move_stage"
	NodeRoundRobin  = "round_robin"
	NodeListMessage = "list_message"
	NodeReact       = "react"
	NodeComment     = "comment"
	NodeAction      = "action"
)

// Branch labels on the outgoing edges of a condition node
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

// Node is one step of a bot flow. Config is the node-type-specific blob as
// the editor saved it.
type Node struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// Edge connects two nodes. BranchLabel distinguishes the two outgoing edges
// of a condition node; every other node type has at most one outgoing edge.
type Edge struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	BranchLabel string `json:"branch_label,omitempty"`
}

var knownNodeTypes = map[string]bool{
	NodeSendMessage: true,
	NodeWait:        true,
	NodeCondition:   true,
	NodeTag:         true,
	NodeMoveStage:   true,
	NodeRoundRobin:  true,
	NodeListMessage: true,
	NodeReact:       true,
	NodeComment:     true,
	NodeAction:      true,
}

// ParseDefinition decodes the JSONB node/edge snapshot stored on a bot.
func ParseDefinition(nodesJSON, edgesJSON []byte) ([]Node, []Edge, error) {
	var nodes []Node
	if len(nodesJSON) > 0 {
		if err := json.Unmarshal(nodesJSON, &nodes); err != nil {
			return nil, nil, fmt.Errorf("failed to parse flow nodes: %w", err)
		}
	}

	var edges []Edge
	if len(edgesJSON) > 0 {
		if err := json.Unmarshal(edgesJSON, &edges); err != nil {
			return nil, nil, fmt.Errorf("failed to parse flow edges: %w", err)
		}
	}

	return nodes, edges, nil
}

// FindStartNode returns the first declared node with no incoming edge, or
// nil when the graph is empty or fully cyclic. Callers must treat nil as
// "abort with a logged skip".
func FindStartNode(nodes []Node, edges []Edge) *Node {
	hasIncoming := make(map[string]bool, len(edges))
	for _, e := range edges {
		hasIncoming[e.Target] = true
	}

	for i := range nodes {
		if !hasIncoming[nodes[i].ID] {
			return &nodes[i]
		}
	}
	return nil
}

// NextNode advances the walk from currentID. When branchLabel is given, the
// first outgoing edge whose label matches case-insensitively wins; otherwise
// the first outgoing edge in declared order is taken. nil terminates the
// walk.
func NextNode(currentID string, nodes []Node, edges []Edge, branchLabel string) *Node {
	var first *Edge
	for i := range edges {
		e := &edges[i]
		if e.Source != currentID {
			continue
		}
		if branchLabel != "" && strings.EqualFold(e.BranchLabel, branchLabel) {
			return findNode(nodes, e.Target)
		}
		if first == nil {
			first = e
		}
	}

	if first != nil {
		return findNode(nodes, first.Target)
	}
	return nil
}

func findNode(nodes []Node, id string) *Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
	}
	return nil
}

// ValidateDefinition checks a flow at save time so broken graphs never reach
// the executor: exactly one entry point, no dangling edges, no unknown node
// types. Cycles are allowed but reported as warnings; the runtime step cap
// still bounds them.
func ValidateDefinition(nodes []Node, edges []Edge) ([]string, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("flow has no nodes")
	}

	byID := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("flow node is missing an id")
		}
		if byID[n.ID] {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		if !knownNodeTypes[n.Type] {
			return nil, fmt.Errorf("unknown node type %q on node %s", n.Type, n.ID)
		}
		byID[n.ID] = true
	}

	hasIncoming := make(map[string]bool, len(edges))
	for _, e := range edges {
		if !byID[e.Source] || !byID[e.Target] {
			return nil, fmt.Errorf("edge %s references a missing node", e.ID)
		}
		hasIncoming[e.Target] = true
	}

	entryPoints := 0
	for _, n := range nodes {
		if !hasIncoming[n.ID] {
			entryPoints++
		}
	}
	if entryPoints == 0 {
		return nil, fmt.Errorf("flow has no entry point (fully cyclic)")
	}
	if entryPoints > 1 {
		return nil, fmt.Errorf("flow has %d entry points, expected exactly 1", entryPoints)
	}

	var warnings []string
	for _, id := range detectCycles(nodes, edges) {
		warnings = append(warnings, fmt.Sprintf("node %s is part of a cycle; execution is bounded by the step cap", id))
	}
	return warnings, nil
}

// detectCycles returns one representative node id per back edge found.
func detectCycles(nodes []Node, edges []Edge) []string {
	outgoing := make(map[string][]string, len(nodes))
	for _, e := range edges {
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))

	var cyclic []string
	var visit func(id string)
	visit = func(id string) {
		state[id] = inStack
		for _, next := range outgoing[id] {
			switch state[next] {
			case unvisited:
				visit(next)
			case inStack:
				cyclic = append(cyclic, next)
			}
		}
		state[id] = done
	}

	for _, n := range nodes {
		if state[n.ID] == unvisited {
			visit(n.ID)
		}
	}
	return cyclic
}
