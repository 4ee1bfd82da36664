package chart

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Render writes a static go-echarts HTML page of the current network to w.
func (n *Network) Render(w io.Writer, title string) error {
	g := n.Snapshot()

	nodes := make([]opts.GraphNode, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		gn := opts.GraphNode{
			Name:       node.Key,
			SymbolSize: node.Attributes.Size,
		}
		if node.Attributes.Color != "" {
			gn.ItemStyle = &opts.ItemStyle{Color: node.Attributes.Color}
		}
		nodes = append(nodes, gn)
	}

	links := make([]opts.GraphLink, 0, len(g.Edges))
	for _, edge := range g.Edges {
		// echarts draws self loops as a blob on the node, the root's seed link included.
		if edge.Source == edge.Target {
			continue
		}
		gl := opts.GraphLink{Source: edge.Source, Target: edge.Target}
		if edge.Attributes.Color != "" {
			gl.LineStyle = &opts.LineStyle{Color: edge.Attributes.Color}
		}
		links = append(links, gl)
	}

	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(graphBase(title, nodes, links))
	return page.Render(w)
}

func graphBase(title string, nodes []opts.GraphNode, links []opts.GraphLink) *charts.Graph {
	graph := charts.NewGraph()
	graph.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Height:    "100vh",
			Width:     "100vw",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(false),
		}),
	)
	graph.AddSeries(
		title,
		nodes,
		links,
		charts.WithGraphChartOpts(
			opts.GraphChart{
				Layout:    "force",
				Draggable: opts.Bool(true),
				Roam:      opts.Bool(true),
				Force:     &opts.GraphForce{Repulsion: 400},
			},
		),
		charts.WithLabelOpts(opts.Label{
			Show:     opts.Bool(true),
			Color:    "black",
			Position: "top",
		}),
	)
	return graph
}
