// ABOUTME: Visualization CLI commands
// ABOUTME: Handles the pipeline dashboard and graph generation commands
package cli

import (
	"flag"
	"os"
	"time"

	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/harperreed/ufficio/viz"
)

func (e *Env) pipeline() (viz.Pipeline, error) {
	ctx := e.ctx()
	leads, err := e.Svc.ListLeads(ctx, db.LeadFilter{})
	if err != nil {
		return viz.Pipeline{}, err
	}
	opps, err := e.Svc.ListOpportunities(ctx, db.OpportunityFilter{})
	if err != nil {
		return viz.Pipeline{}, err
	}
	quotes := make(map[string][]models.Quote, len(opps))
	for _, o := range opps {
		linked, err := e.Svc.LinkedQuotes(ctx, o.ID)
		if err != nil {
			return viz.Pipeline{}, err
		}
		quotes[o.ID.String()] = linked.Quotes
	}
	return viz.Pipeline{Leads: leads, Opportunities: opps, Quotes: quotes}, nil
}

// VizGraphPipelineCommand renders leads, opportunities and quotes as DOT.
func VizGraphPipelineCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("viz graph pipeline", flag.ExitOnError)
	output := fs.String("output", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := env.pipeline()
	if err != nil {
		return env.report("render pipeline", err, "")
	}
	dot, err := viz.NewGraphGenerator().GeneratePipelineGraph(env.ctx(), p)
	if err != nil {
		return err
	}

	if *output != "" {
		return os.WriteFile(*output, []byte(dot), 0644)
	}
	env.printf("%s\n", dot)
	return nil
}

// VizDashboardCommand prints the pipeline summary.
func VizDashboardCommand(env *Env, args []string) error {
	p, err := env.pipeline()
	if err != nil {
		return env.report("render pipeline", err, "")
	}
	env.printf("%s", viz.RenderDashboard(viz.GenerateDashboardStats(p.Leads, p.Opportunities, time.Now())))
	return nil
}
