// Package flowchart renders a blueprint's dependency graph as Graphviz
// DOT, with optional PNG conversion when the dot binary is installed.
package flowchart

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
)

const renderTimeout = 10 * time.Second

// Renderer implements the orchestrator's FlowchartRenderer contract
type Renderer struct {
	DotBin string // Graphviz binary; "dot" when empty
}

// NewRenderer creates a renderer using the system graphviz binary
func NewRenderer() *Renderer {
	return &Renderer{DotBin: "dot"}
}

// RenderDOT produces the DOT source for the blueprint's workflow graph
func (r *Renderer) RenderDOT(bp *blueprint.Blueprint) []byte {
	nodes, edges := bp.Graph()

	var sb strings.Builder
	sb.WriteString("digraph workflow {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\"];\n\n")

	for _, n := range nodes {
		label := n.Name
		if n.Model != "" {
			label += "\\n(" + n.Model + ")"
		}
		fmt.Fprintf(&sb, "  %s [label=%q, tooltip=%q];\n", quoteID(n.Name), label, n.Goal)
	}
	if len(edges) > 0 {
		sb.WriteString("\n")
	}
	for _, e := range edges {
		fmt.Fprintf(&sb, "  %s -> %s;\n", quoteID(e.From), quoteID(e.To))
	}
	sb.WriteString("}\n")

	return []byte(sb.String())
}

// RenderPNG converts a DOT file to PNG via graphviz. Callers treat a
// failure here as "graphviz not available" and move on.
func (r *Renderer) RenderPNG(ctx context.Context, dotPath string) ([]byte, error) {
	bin := r.DotBin
	if bin == "" {
		bin = "dot"
	}

	cctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, bin, "-Tpng", dotPath)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return out, nil
}

// quoteID makes an agent name safe as a DOT node identifier
func quoteID(name string) string {
	return fmt.Sprintf("%q", name)
}
