package transform

import (
	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/parser"
)

// toRaw copies a subtree into an opaque RawNode. It builds children
// bottom-up with an explicit stack, so depth is bounded only by memory.
func toRaw(root *parser.Node) bundle.RawNode {
	type frame struct {
		node     *parser.Node
		next     int
		children []bundle.RawNode
	}

	stack := []*frame{{node: root}}
	for {
		top := stack[len(stack)-1]
		if top.next < len(top.node.Children) {
			child := top.node.Children[top.next]
			top.next++
			stack = append(stack, &frame{node: child})
			continue
		}

		raw := bundle.RawNode{
			Tag:      top.node.Tag,
			XRef:     top.node.XRef,
			Value:    top.node.Value,
			Children: top.children,
		}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return raw
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, raw)
	}
}

// extend appends the raw form of n to exts.
func extend(exts *[]bundle.RawNode, n *parser.Node) {
	*exts = append(*exts, toRaw(n))
}
