package mdl

import "fmt"

// NoParent marks the root in FlatNode.Parent.
const NoParent = -1

// FlatNode is a tree node with its preorder index resolved. Parent and
// Children hold indices into the flattened slice.
type FlatNode struct {
	*Node
	Index    int
	Parent   int
	Children []int
}

// IsRoot reports whether f is the parentless root.
func (f *FlatNode) IsRoot() bool {
	return f.Parent == NoParent
}

// Flatten walks the tree rooted at root in preorder (parent before its
// children, children in list order) and assigns each node its index.
// Visiting a node twice means the input is not a tree and is reported as
// ErrMalformedTree.
func Flatten(root *Node) ([]FlatNode, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrMalformedTree)
	}

	var nodes []FlatNode
	seen := make(map[*Node]int)

	var walk func(n *Node, parent int) (int, error)
	walk = func(n *Node, parent int) (int, error) {
		if n == nil {
			return 0, fmt.Errorf("%w: nil child under node %d", ErrMalformedTree, parent)
		}
		if prev, ok := seen[n]; ok {
			return 0, nodeErr(prev, n.Name, ErrMalformedTree, "node reached twice")
		}
		idx := len(nodes)
		seen[n] = idx
		nodes = append(nodes, FlatNode{Node: n, Index: idx, Parent: parent})

		children := make([]int, 0, len(n.Children))
		for _, child := range n.Children {
			ci, err := walk(child, idx)
			if err != nil {
				return 0, err
			}
			children = append(children, ci)
		}
		nodes[idx].Children = children
		return idx, nil
	}

	if _, err := walk(root, NoParent); err != nil {
		return nil, err
	}
	return nodes, nil
}
