package export

import (
	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// Node types of the graph payload.
const (
	NodeIndividual = "individual"
	NodeUnion      = "union"
)

// GraphNode is a vertex of the pedigree graph.
type GraphNode struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// GraphEdge joins a union to one of its members. Role is the member role,
// refined to the partner qualifier when one is known.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Role string `json:"role"`
}

// GraphPayload is the pedigree viewer document.
type GraphPayload struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Graph builds the nodes and edges payload. Individuals come first, then
// unions; edges follow union order and member order. Members that do not
// resolve are left out.
func Graph(b *bundle.Bundle) GraphPayload {
	out := GraphPayload{
		Nodes: make([]GraphNode, 0, len(b.Entities.Individuals)+len(b.Entities.Unions)),
		Edges: []GraphEdge{},
	}
	for i := range b.Entities.Individuals {
		ind := &b.Entities.Individuals[i]
		out.Nodes = append(out.Nodes, GraphNode{ID: ind.ID, Type: NodeIndividual, Label: DisplayName(ind)})
	}
	for _, u := range b.Entities.Unions {
		out.Nodes = append(out.Nodes, GraphNode{ID: u.ID, Type: NodeUnion, Label: unionLabel(b, &u)})
		for _, m := range u.Members {
			if _, ok := b.Individual(m.IndividualID); !ok {
				continue
			}
			role := m.Role
			if m.Qualifier != "" {
				role = m.Qualifier
			}
			out.Edges = append(out.Edges, GraphEdge{From: u.ID, To: m.IndividualID, Role: role})
		}
	}
	return out
}

// unionLabel joins the partner names, or falls back to the union id.
func unionLabel(b *bundle.Bundle, u *bundle.Union) string {
	label := ""
	for _, id := range u.Partners() {
		ind, ok := b.Individual(id)
		if !ok {
			continue
		}
		if label != "" {
			label += " & "
		}
		label += DisplayName(ind)
	}
	if label == "" {
		return u.ID
	}
	return label
}
