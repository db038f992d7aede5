// ABOUTME: Pipeline graph generation: leads feed opportunities, opportunities carry quotes
// ABOUTME: Opportunities are clustered by stage and rendered as DOT source
package viz

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/harperreed/ufficio/models"
)

// Pipeline is the snapshot a graph is drawn from. Quotes are keyed by
// opportunity id.
type Pipeline struct {
	Leads         []models.Lead
	Opportunities []models.Opportunity
	Quotes        map[string][]models.Quote
}

type GraphGenerator struct {
	format graphviz.Format
}

func NewGraphGenerator() *GraphGenerator {
	return &GraphGenerator{format: graphviz.XDOT}
}

var stageColors = map[models.Stage]string{
	models.StageDiscovery:   "lightyellow",
	models.StageProposal:    "khaki",
	models.StageNegotiation: "orange",
	models.StageClosedWon:   "palegreen",
	models.StageClosedLost:  "lightgray",
}

// GeneratePipelineGraph draws converted and open leads, their opportunities grouped
// by stage, and each opportunity's linked quotes.
func (g *GraphGenerator) GeneratePipelineGraph(ctx context.Context, p Pipeline) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer func() { _ = gv.Close() }()

	graph, err := gv.Graph()
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}
	defer func() { _ = graph.Close() }()

	graph.SetLabel("Pipeline")
	graph.SetRankDir(cgraph.LRRank)

	leadNodes := make(map[string]*cgraph.Node, len(p.Leads))
	for _, l := range p.Leads {
		node, err := graph.CreateNodeByName("lead_" + l.ID.String())
		if err != nil {
			return "", fmt.Errorf("failed to create lead node: %w", err)
		}
		node.SetLabel(fmt.Sprintf("%s\n(lead, %s)", l.Title(), l.Status))
		node.SetShape("ellipse")
		if l.Status == models.LeadLost {
			node.SetStyle("dashed")
		}
		leadNodes[l.ID.String()] = node
	}

	clusters := make(map[models.Stage]*cgraph.Graph, len(models.Stages))
	for _, st := range models.Stages {
		sub, err := graph.CreateSubGraphByName("cluster_" + string(st))
		if err != nil {
			return "", fmt.Errorf("failed to create stage cluster: %w", err)
		}
		sub.SetLabel(string(st))
		clusters[st] = sub
	}

	for _, o := range p.Opportunities {
		sub, ok := clusters[o.Stage]
		if !ok {
			sub = graph
		}
		node, err := sub.CreateNodeByName("opp_" + o.ID.String())
		if err != nil {
			return "", fmt.Errorf("failed to create opportunity node: %w", err)
		}
		label := o.Name
		if o.ExpectedRevenue.Valid {
			label += "\n€" + o.ExpectedRevenue.Decimal.StringFixed(0)
		}
		node.SetLabel(label)
		node.SetShape("box")
		node.SetStyle("filled")
		node.SetFillColor(stageColors[o.Stage])

		if o.LeadID != nil {
			if leadNode, ok := leadNodes[o.LeadID.String()]; ok {
				edge, err := graph.CreateEdgeByName("converted", leadNode, node)
				if err != nil {
					return "", fmt.Errorf("failed to create edge: %w", err)
				}
				edge.SetLabel("converted")
			}
		}

		for i, q := range p.Quotes[o.ID.String()] {
			qn, err := graph.CreateNodeByName("quote_" + q.ID.String())
			if err != nil {
				return "", fmt.Errorf("failed to create quote node: %w", err)
			}
			qn.SetLabel(fmt.Sprintf("%s\n€%s (%s)", q.Title, q.Total.StringFixed(2), q.Status))
			qn.SetShape("note")
			edge, err := graph.CreateEdgeByName(fmt.Sprintf("quote_%d", i), node, qn)
			if err != nil {
				return "", fmt.Errorf("failed to create edge: %w", err)
			}
			edge.SetStyle("dotted")
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, g.format, &buf); err != nil {
		return "", fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.String(), nil
}
