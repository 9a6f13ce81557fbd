package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/bookimport/pkg/pipeline/measure"
	"github.com/askiada/bookimport/pkg/pipeline/model"
)

var statusRGB = map[model.Status][3]uint8{
	model.StatusNotStarted: {255, 255, 255},
	model.StatusRunning:    {240, 170, 40},
	model.StatusCompleted:  {120, 200, 120},
	model.StatusSkipped:    {200, 200, 200},
	model.StatusFailed:     {230, 80, 80},
}

// DOTDrawer renders the task graph in the Graphviz DOT language.
type DOTDrawer struct {
	graph      graph.Graph[string, string]
	attributes map[string]string
	fileName   string
}

// NewDOTDrawer creates a drawer writing to fileName on Draw.
func NewDOTDrawer(fileName string) *DOTDrawer {
	d := &DOTDrawer{fileName: fileName}
	d.Reset()

	return d
}

func (d *DOTDrawer) Reset() {
	d.graph = graph.New(graph.StringHash, graph.Directed())
	d.attributes = map[string]string{"rankdir": "LR"}
}

// AddTask adds a task, not started, to the graph.
func (d *DOTDrawer) AddTask(name string) error {
	err := d.graph.AddVertex(name, graph.VertexAttribute("shape", "box"), graph.VertexAttribute("style", "filled"))
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}

	return d.SetStatus(name, model.StatusNotStarted)
}

// AddLink adds a link between a task and a task waiting for it.
func (d *DOTDrawer) AddLink(parentName, childName string, prereq bool) error {
	style := "solid"
	if prereq {
		style = "dashed"
	}

	err := d.graph.AddEdge(parentName, childName, graph.EdgeAttribute("style", style))
	if err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentName, childName)
	}

	return nil
}

func (d *DOTDrawer) SetStatus(name string, status model.Status) error {
	_, properties, err := d.graph.VertexWithProperties(name)
	if err != nil {
		return errors.Wrap(err, "unable to get vertex properties")
	}

	rgb, ok := statusRGB[status]
	if !ok {
		rgb = statusRGB[model.StatusNotStarted]
	}

	colour, err := colors.RGB(rgb[0], rgb[1], rgb[2])
	if err != nil {
		return errors.Wrap(err, "unable to get colour")
	}

	properties.Attributes["fillcolor"] = colour.ToHEX().String()
	properties.Attributes["tooltip"] = string(status)

	return nil
}

// SetTotalTime labels the graph with the run duration.
func (d *DOTDrawer) SetTotalTime(startTime time.Time) {
	d.attributes["label"] = "total: " + time.Since(startTime).Round(time.Millisecond).String()
}

const maxRGB = 240

// AddMeasure colours every measured task by status and outlines it on a blue to red scale of
// its duration, slowest in red.
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	metrics := msr.AllMetrics()

	var minValue, maxValue time.Duration

	first := true

	for _, mt := range metrics {
		total := mt.GetTotalDuration()
		if total == 0 {
			continue
		}

		if first || total < minValue {
			minValue = total
		}

		if first || total > maxValue {
			maxValue = total
		}

		first = false
	}

	for name, mt := range metrics {
		err := d.SetStatus(name, mt.Status())
		if err != nil {
			return err
		}

		total := mt.GetTotalDuration()
		if total == 0 {
			continue
		}

		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(total-minValue) / float64(maxValue-minValue)
		}

		red := maxRGB * fraction
		blue := maxRGB - red

		colour, err := colors.RGB(uint8(red), 0, uint8(blue)) //nolint
		if err != nil {
			return errors.Wrap(err, "unable to get colour")
		}

		_, properties, err := d.graph.VertexWithProperties(name)
		if err != nil {
			return errors.Wrap(err, "unable to get vertex properties")
		}

		properties.Attributes["color"] = colour.ToHEX().String()
		properties.Attributes["xlabel"] = total.String()
	}

	return nil
}

// Draw writes the graph to the file given at creation.
func (d *DOTDrawer) Draw() error {
	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	err = d.WriteTo(file)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", d.fileName)
	}

	return errors.Wrapf(file.Close(), "unable to close %s", d.fileName)
}

// WriteTo renders the graph to wrt.
func (d *DOTDrawer) WriteTo(wrt io.Writer) error {
	desc, err := generateDOT(d.graph, d.attributes)
	if err != nil {
		return fmt.Errorf("failed to generate DOT description: %w", err)
	}

	return renderDOT(wrt, desc)
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
{{- range $k, $v := .Attributes}}
	{{$k}}="{{$v}}";
{{- end}}
{{- range $s := .Statements}}
	"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}}weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}}{{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}}weight={{.SourceWeight}} ]{{end}};
{{- end}}
}
`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           string
	Target           string
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func generateDOT(gra graph.Graph[string, string], attributes map[string]string) (description, error) {
	desc := description{
		GraphType:    "digraph",
		Attributes:   attributes,
		EdgeOperator: "->",
		Statements:   make([]statement, 0),
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	vertices := make([]string, 0, len(adjacencyMap))
	for vertex := range adjacencyMap {
		vertices = append(vertices, vertex)
	}

	sort.Strings(vertices)

	for _, vertex := range vertices {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		htmlAttributes := make(map[string]string)
		sourceAttributes := make(map[string]string, len(sourceProperties.Attributes))

		for k, v := range sourceProperties.Attributes {
			sourceAttributes[k] = v
		}

		if xlabel, ok := sourceAttributes["xlabel"]; ok {
			htmlAttributes["label"] = fmt.Sprintf(`<%s <BR /> <FONT POINT-SIZE="10">%s</FONT>>`, vertex, xlabel)

			delete(sourceAttributes, "xlabel")
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: sourceAttributes,
			HTMLAttributes:   htmlAttributes,
		})

		targets := make([]string, 0, len(adjacencyMap[vertex]))
		for target := range adjacencyMap[vertex] {
			targets = append(targets, target)
		}

		sort.Strings(targets)

		for _, target := range targets {
			edge := adjacencyMap[vertex][target]
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         target,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
