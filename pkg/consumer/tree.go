package consumer

import (
	"sync"

	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
)

// TreeNode is one object of the plugin's UI tree.
type TreeNode struct {
	Ptr       uintptr
	ClassName string
	X, Y      int16
	W, H      int16
	Hidden    bool
	DebugID   uintptr
	Children  []*TreeNode
}

// Contains reports whether the point lies inside the node's bounds.
func (n *TreeNode) Contains(x, y int) bool {
	return x >= int(n.X) && y >= int(n.Y) && x < int(n.X)+int(n.W) && y < int(n.Y)+int(n.H)
}

// Walk visits n and its descendants depth first.
func (n *TreeNode) Walk(fn func(node *TreeNode, depth int)) {
	n.walk(fn, 0)
}

func (n *TreeNode) walk(fn func(*TreeNode, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// BuildTree assembles the flat pre-order export into a tree rooted at the
// first node without a parent. Nodes unreachable from that root are dropped.
func BuildTree(flat []uiplugin.FlatNode) *TreeNode {
	byPtr := make(map[uintptr]uiplugin.FlatNode, len(flat))
	kids := make(map[uintptr][]uintptr, len(flat))
	var roots []uintptr
	for _, n := range flat {
		if _, dup := byPtr[n.Ptr]; dup {
			continue
		}
		byPtr[n.Ptr] = n
		if n.ParentPtr == 0 {
			roots = append(roots, n.Ptr)
			continue
		}
		kids[n.ParentPtr] = append(kids[n.ParentPtr], n.Ptr)
	}
	if len(roots) == 0 {
		return nil
	}

	seen := make(map[uintptr]bool, len(byPtr))
	var build func(ptr uintptr) *TreeNode
	build = func(ptr uintptr) *TreeNode {
		seen[ptr] = true
		n := byPtr[ptr]
		node := &TreeNode{
			Ptr:       n.Ptr,
			ClassName: n.ClassName,
			X:         n.X,
			Y:         n.Y,
			W:         n.W,
			H:         n.H,
			Hidden:    n.Hidden,
			DebugID:   n.DebugID,
		}
		for _, c := range kids[ptr] {
			if seen[c] {
				continue
			}
			node.Children = append(node.Children, build(c))
		}
		return node
	}
	return build(roots[0])
}

// TreeCollector keeps the latest object tree exported by the plugin.
type TreeCollector struct {
	reg registration

	mu          sync.Mutex
	root        *TreeNode
	selected    uintptr
	hasSelected bool
}

// NewTreeCollector returns an empty collector.
func NewTreeCollector() *TreeCollector {
	return &TreeCollector{}
}

// Name implements rebind.Consumer.
func (c *TreeCollector) Name() string { return "tree" }

// Bind implements rebind.Consumer. The previous tree described objects of
// the old plugin and is discarded.
func (c *TreeCollector) Bind(p *uiplugin.Plugin, cbs *rebind.Callbacks) error {
	c.mu.Lock()
	c.root = nil
	c.selected, c.hasSelected = 0, false
	c.mu.Unlock()

	if !p.Has(uiplugin.SymRegisterTreeCallback) {
		return nil
	}
	return p.RegisterTreeCallback(cbs.Tree, c.reg.handle(cbs, c))
}

// ReceiveTree implements rebind.TreeSink.
func (c *TreeCollector) ReceiveTree(nodes []uiplugin.FlatNode) {
	root := BuildTree(nodes)
	c.mu.Lock()
	c.root = root
	c.mu.Unlock()
}

// Refresh asks the plugin to export its tree and returns the result.
func (c *TreeCollector) Refresh(p *uiplugin.Plugin) (*TreeNode, error) {
	if err := p.ExportTree(); err != nil {
		return nil, err
	}
	return c.Root(), nil
}

// Root returns the last exported tree, or nil.
func (c *TreeCollector) Root() *TreeNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// ObjectAt selects the topmost object at display coordinates.
func (c *TreeCollector) ObjectAt(p *uiplugin.Plugin, x, y int32) (uintptr, bool, error) {
	ptr, err := p.ObjAtPoint(x, y)
	if err != nil {
		return 0, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected, c.hasSelected = ptr, ptr != 0
	return c.selected, c.hasSelected, nil
}

// Selected returns the object chosen by the last ObjectAt.
func (c *TreeCollector) Selected() (uintptr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.hasSelected
}

// Find returns the node for ptr in the last exported tree.
func (c *TreeCollector) Find(ptr uintptr) *TreeNode {
	root := c.Root()
	if root == nil {
		return nil
	}
	var found *TreeNode
	root.Walk(func(n *TreeNode, _ int) {
		if found == nil && n.Ptr == ptr {
			found = n
		}
	})
	return found
}

// Close stops accepting trees from any plugin.
func (c *TreeCollector) Close() {
	c.reg.release()
}
