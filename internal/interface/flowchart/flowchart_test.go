package flowchart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
)

func TestRenderDOT(t *testing.T) {
	bp := &blueprint.Blueprint{
		EndToEndContext: "fetch then summarize",
		Agents: []blueprint.AgentDef{
			{Name: "fetcher", Role: "retrieval", SuggestedModel: "gemini-2.5-flash",
				Goal: "fetch the page", Instructions: "Fetch."},
			{Name: "summarizer", Role: "writing", Goal: "summarize the page",
				Instructions: "Summarize.", Dependencies: []string{"fetcher"}},
		},
	}

	dot := string(NewRenderer().RenderDOT(bp))

	assert.True(t, strings.HasPrefix(dot, "digraph workflow {"))
	assert.Contains(t, dot, "rankdir=LR")
	assert.Contains(t, dot, `"fetcher"`)
	assert.Contains(t, dot, `"summarizer"`)
	assert.Contains(t, dot, `(gemini-2.5-flash)`)
	assert.Contains(t, dot, `"fetcher" -> "summarizer";`)
	assert.Contains(t, dot, `tooltip="fetch the page"`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))
}

func TestRenderDOT_NoEdges(t *testing.T) {
	bp := &blueprint.Blueprint{
		EndToEndContext: "one worker",
		Agents: []blueprint.AgentDef{
			{Name: "worker", Role: "doer", Goal: "do it", Instructions: "Do."},
		},
	}

	dot := string(NewRenderer().RenderDOT(bp))
	assert.Contains(t, dot, `"worker"`)
	assert.NotContains(t, dot, "->")
}
