package parser

import (
	"github.com/FocuswithJustin/Lineage/core/lexer"
)

// Node is a token with its ordered children.
type Node struct {
	lexer.Token
	Children []*Node
}

// Child returns the first child with the given tag.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildValue returns the value of the first child with the given tag.
func (n *Node) ChildValue(tag string) string {
	if c := n.Child(tag); c != nil {
		return c.Value
	}
	return ""
}

// Walk visits n and its descendants in document order, passing each node's
// depth below n. Returning false from fn skips that node's children. Walk
// uses an explicit stack, so depth is bounded only by memory.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	type frame struct {
		node  *Node
		depth int
	}
	stack := []frame{{n, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.node, f.depth) {
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

// Forest is the result of a full parse.
type Forest struct {
	Roots []*Node
	Index *XRefIndex
}

// Category is the kind of record a cross-reference names.
type Category string

// Record categories.
const (
	CategoryIndividual Category = "individual"
	CategoryUnion      Category = "union"
	CategorySource     Category = "source"
	CategoryMedia      Category = "media"
	CategoryNote       Category = "note"
	CategoryRepository Category = "repository"
	CategorySubmitter  Category = "submitter"
	CategoryOther      Category = "other"
)

// CategoryOf maps a record tag to its category.
func CategoryOf(tag string) Category {
	switch tag {
	case "INDI":
		return CategoryIndividual
	case "FAM":
		return CategoryUnion
	case "SOUR":
		return CategorySource
	case "OBJE":
		return CategoryMedia
	case "NOTE":
		return CategoryNote
	case "REPO":
		return CategoryRepository
	case "SUBM", "SUBN":
		return CategorySubmitter
	default:
		return CategoryOther
	}
}

type indexEntry struct {
	node     *Node
	category Category
}

// XRefIndex maps record ids (the cross-reference without its @ delimiters)
// to their defining nodes. It has no exported mutators.
type XRefIndex struct {
	byID  map[string]indexEntry
	order map[Category][]string
}

func newXRefIndex() *XRefIndex {
	return &XRefIndex{
		byID:  make(map[string]indexEntry),
		order: make(map[Category][]string),
	}
}

func (x *XRefIndex) add(id string, n *Node) {
	cat := CategoryOf(n.Tag)
	x.byID[id] = indexEntry{node: n, category: cat}
	x.order[cat] = append(x.order[cat], id)
}

// Lookup returns the node defining id and its category.
func (x *XRefIndex) Lookup(id string) (*Node, Category, bool) {
	e, ok := x.byID[id]
	return e.node, e.category, ok
}

// LookupIn returns the node defining id if it belongs to cat.
func (x *XRefIndex) LookupIn(cat Category, id string) (*Node, bool) {
	e, ok := x.byID[id]
	if !ok || e.category != cat {
		return nil, false
	}
	return e.node, true
}

// IDs returns the ids of a category in definition order.
func (x *XRefIndex) IDs(cat Category) []string {
	return append([]string(nil), x.order[cat]...)
}

// Len returns the number of indexed records.
func (x *XRefIndex) Len() int {
	return len(x.byID)
}
