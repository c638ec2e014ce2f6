package http

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrUnknownView is returned for a view that has no template.
var ErrUnknownView = errors.New("unknown view")

// Views renders the HTML fragments of the web application.
type Views struct {
	templates *template.Template
}

// NewViews parses the embedded templates.
func NewViews() (*Views, error) {
	t, err := template.New("views").Funcs(template.FuncMap{
		"short": shortID,
		"url":   urlFor,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse view templates: %w", err)
	}
	return &Views{templates: t}, nil
}

// Has reports whether a view exists.
func (v *Views) Has(name string) bool {
	return v.templates.Lookup(name+".html") != nil
}

// Render writes the named view. Rendering happens in a buffer so a failing template writes nothing.
func (v *Views) Render(w io.Writer, name string, data any) error {
	t := v.templates.Lookup(name + ".html")
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownView, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("render view %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var defaultTable = router.Default()

func urlFor(name string) (string, error) {
	return defaultTable.URLFor(name)
}

// viewLoader fetches the data a view renders.
type viewLoader func(ctx context.Context) (any, error)

// topologySize is the width and height of the topology drawing.
const topologySize = 600.0

type topologyView struct {
	Size  float64
	Nodes []topologyNode
	Edges []topologyEdge
	Peers []domain.Peer
}

type topologyNode struct {
	PeerID string
	X, Y   float64
	R      float64
	Self   bool
}

type topologyEdge struct {
	X1, Y1, X2, Y2 float64
}

// layoutTopology places the own node in the center and the other peers on a circle around it.
func layoutTopology(t domain.NetworkTopology) topologyView {
	view := topologyView{Size: topologySize, Peers: t.Peers}
	center := topologySize / 2
	radius := topologySize * 0.4

	positions := map[string]topologyNode{}
	others := 0
	for _, p := range t.Peers {
		if p.PeerID != t.PeerID {
			others++
		}
	}

	i := 0
	for _, p := range t.Peers {
		node := topologyNode{PeerID: p.PeerID, X: center, Y: center, R: 10}
		if p.PeerID == t.PeerID {
			node.Self = true
			node.R = 14
		} else {
			angle := 2 * math.Pi * float64(i) / float64(others)
			node.X = math.Round(center + radius*math.Cos(angle))
			node.Y = math.Round(center + radius*math.Sin(angle))
			i++
		}
		positions[p.PeerID] = node
		view.Nodes = append(view.Nodes, node)
	}

	for _, e := range t.Edges {
		a, okA := positions[e[0]]
		b, okB := positions[e[1]]
		if !okA || !okB {
			continue
		}
		view.Edges = append(view.Edges, topologyEdge{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y})
	}
	return view
}
