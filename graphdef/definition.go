package graphdef

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/warriorguo/graphflow/types"
	"github.com/warriorguo/graphflow/validator"
)

/**
 * Definition is the document form of a graph:
 *
 *	id: research-agent
 *	name: research agent
 *	nodes:
 *	  - id: start
 *	    kind: start
 *	  - id: search
 *	    kind: tool_call
 *	    config:
 *	      tool: web_search
 *	edges:
 *	  - source: start
 *	    target: search
 *	  - source: search
 *	    target: end
 *	    kind: conditional
 *	    condition: result.hits > 0
 */
type Definition struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string           `json:"version,omitempty" yaml:"version,omitempty"`
	Nodes       []NodeDefinition `json:"nodes" yaml:"nodes"`
	Edges       []EdgeDefinition `json:"edges" yaml:"edges"`
}

type NodeDefinition struct {
	ID          string         `json:"id" yaml:"id"`
	Kind        string         `json:"kind" yaml:"kind"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// EdgeDefinition without an ID gets "<source>-><target>", suffixed with a
// counter when that is taken.
type EdgeDefinition struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Source    string `json:"source" yaml:"source"`
	Target    string `json:"target" yaml:"target"`
	Kind      string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

func FromYAML(b []byte) (*Definition, error) {
	def := &Definition{}
	if err := yaml.Unmarshal(b, def); err != nil {
		return nil, errors.NewNotValid(err, "graph definition is not valid yaml")
	}
	return def, nil
}

func FromJSON(b []byte) (*Definition, error) {
	def := &Definition{}
	if err := json.Unmarshal(b, def); err != nil {
		return nil, errors.NewNotValid(err, "graph definition is not valid json")
	}
	return def, nil
}

// LoadFile reads a definition, .json files are parsed as JSON and anything
// else as YAML.
func LoadFile(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FromJSON(b)
	}
	return FromYAML(b)
}

func (d *Definition) ToYAML() ([]byte, error) {
	b, err := yaml.Marshal(d)
	return b, errors.Trace(err)
}

func (d *Definition) ToJSON() ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	return b, errors.Trace(err)
}

// Build turns the definition into a graph without validating its structure.
func (d *Definition) Build() (*types.Graph, error) {
	g := types.NewGraph()
	if d.ID != "" {
		g.ID = d.ID
	}
	g.Metadata.Name = d.Name
	g.Metadata.Description = d.Description
	if d.Version != "" {
		g.Metadata.Version = d.Version
	}

	for i, n := range d.Nodes {
		if n.Kind == "" {
			return nil, errors.NotValidf("node %d (%s) without kind", i, n.ID)
		}
		config := types.Data{}
		config.Merge(n.Config)
		node := &types.Node{
			ID:          n.ID,
			Kind:        types.NodeKind(n.Kind),
			Config:      config,
			Name:        n.Name,
			Description: n.Description,
			Tags:        n.Tags,
		}
		if err := g.AddNode(node); err != nil {
			return nil, errors.Annotatef(err, "node %d", i)
		}
	}

	taken := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		if e.ID != "" {
			taken[e.ID] = true
		}
	}
	for i, e := range d.Edges {
		id := e.ID
		if id == "" {
			id = edgeID(e.Source, e.Target, taken)
		}
		edge := &types.Edge{
			ID:        id,
			Source:    e.Source,
			Target:    e.Target,
			Kind:      types.EdgeKind(e.Kind),
			Condition: e.Condition,
		}
		if err := g.AddEdge(edge); err != nil {
			return nil, errors.Annotatef(err, "edge %d", i)
		}
	}
	return g, nil
}

// Compile is Build followed by structural validation.
func (d *Definition) Compile() (*types.Graph, error) {
	g, err := d.Build()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := validator.Validate(g).Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return g, nil
}

func edgeID(source, target string, taken map[string]bool) string {
	base := source + "->" + target
	id := base
	for n := 2; taken[id]; n++ {
		id = fmt.Sprintf("%s#%d", base, n)
	}
	taken[id] = true
	return id
}

// FromGraph exports g, nodes sorted by id and edges in graph order.
func FromGraph(g *types.Graph) *Definition {
	d := &Definition{
		ID:          g.ID,
		Name:        g.Metadata.Name,
		Description: g.Metadata.Description,
		Version:     g.Metadata.Version,
		Nodes:       make([]NodeDefinition, 0, len(g.Nodes)),
		Edges:       make([]EdgeDefinition, 0, len(g.Edges)),
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := g.Nodes[id]
		var config map[string]any
		if len(n.Config) > 0 {
			config = n.Config.Clone()
		}
		d.Nodes = append(d.Nodes, NodeDefinition{
			ID:          n.ID,
			Kind:        string(n.Kind),
			Name:        n.Name,
			Description: n.Description,
			Tags:        n.Tags,
			Config:      config,
		})
	}
	for _, e := range g.Edges {
		d.Edges = append(d.Edges, EdgeDefinition{
			ID:        e.ID,
			Source:    e.Source,
			Target:    e.Target,
			Kind:      string(e.Kind),
			Condition: e.Condition,
		})
	}
	return d
}
