// Package blueprint defines the structured design artifact produced by
// the Architect stage: the workflow persona, the agent definitions with
// their IO contracts, and the dependency graph between them.
package blueprint

import (
	"encoding/json"
	"fmt"
)

// Blueprint is the Architect's output. It is replaceable while a run is
// paused awaiting approval and treated as immutable once approved.
type Blueprint struct {
	// EndToEndContext describes the complete workflow and how the
	// generated agents collaborate
	EndToEndContext string     `json:"end_to_end_context"`
	Agents          []AgentDef `json:"agents"`
}

// AgentDef describes one agent the Engineer must implement
type AgentDef struct {
	Name           string   `json:"agent_name"`
	Role           string   `json:"role"`
	SuggestedModel string   `json:"suggested_model,omitempty"`
	Goal           string   `json:"goal"`
	Inputs         []IODef  `json:"inputs,omitempty"`
	Outputs        []IODef  `json:"outputs,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	Instructions   string   `json:"instructions"`
}

// IODef declares one named input or output of an agent
type IODef struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Parse decodes and validates a blueprint from raw model output
func Parse(data []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Validate checks the structural invariants of the blueprint
func (b *Blueprint) Validate() error {
	if len(b.Agents) == 0 {
		return fmt.Errorf("blueprint has no agents")
	}

	names := make(map[string]bool, len(b.Agents))
	for i, a := range b.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent %d has no name", i)
		}
		if a.Instructions == "" {
			return fmt.Errorf("agent %s has no instructions", a.Name)
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate agent name: %s", a.Name)
		}
		names[a.Name] = true
	}

	// Dependencies must resolve to declared agents (no dangling edges)
	for _, a := range b.Agents {
		for _, dep := range a.Dependencies {
			if !names[dep] {
				return fmt.Errorf("agent %s depends on unknown agent %s", a.Name, dep)
			}
			if dep == a.Name {
				return fmt.Errorf("agent %s depends on itself", a.Name)
			}
		}
	}

	return nil
}

// Marshal encodes the blueprint as indented JSON for the artifact bundle
func (b *Blueprint) Marshal() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// Graph returns the workflow dependency graph as node/edge lists,
// suitable for flowchart rendering
func (b *Blueprint) Graph() ([]Node, []Edge) {
	nodes := make([]Node, 0, len(b.Agents))
	var edges []Edge
	for _, a := range b.Agents {
		nodes = append(nodes, Node{
			Name:  a.Name,
			Model: a.SuggestedModel,
			Goal:  a.Goal,
		})
		for _, dep := range a.Dependencies {
			edges = append(edges, Edge{From: dep, To: a.Name})
		}
	}
	return nodes, edges
}

// Node is a flowchart node for one agent
type Node struct {
	Name  string
	Model string
	Goal  string
}

// Edge is a directed data-flow edge between two agents
type Edge struct {
	From string
	To   string
}
