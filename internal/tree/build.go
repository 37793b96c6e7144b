package tree

import (
	"slices"

	"github.com/roach88/threadkeep/internal/model"
)

// Node is one message with its replies, earliest reply first.
type Node struct {
	Message model.Message
	Replies []*Node
}

// ID returns the message id.
func (n *Node) ID() string {
	return n.Message.ID
}

// Build reconstructs the reply forest of msgs.
//
// Roots are the messages without a parent, in input order. They are followed
// by messages whose parent is not in msgs, then by one promoted message per
// reply cycle (its earliest member in input order, with the edge to its
// parent cut). Replies are ordered by Created ascending, ties by input order.
// Runs in O(n log n); msgs is not modified.
func Build(msgs []model.Message) []*Node {
	n := len(msgs)
	if n == 0 {
		return nil
	}

	index := make(map[string]int, n)
	for i, m := range msgs {
		if _, dup := index[m.ID]; !dup {
			index[m.ID] = i
		}
	}

	const (
		noParent = -1
		dangling = -2
	)
	parent := make([]int, n)
	children := make([][]int, n)
	var roots, orphans []int
	for i, m := range msgs {
		pid, ok := m.Parent()
		if !ok {
			parent[i] = noParent
			roots = append(roots, i)
			continue
		}
		p, known := index[pid]
		if !known {
			parent[i] = dangling
			orphans = append(orphans, i)
			continue
		}
		parent[i] = p
		if p != i {
			children[p] = append(children[p], i)
		}
	}
	for _, c := range children {
		slices.SortStableFunc(c, func(a, b int) int {
			return msgs[a].Created.Compare(msgs[b].Created)
		})
	}

	visited := make([]bool, n)
	var attach func(i int) *Node
	attach = func(i int) *Node {
		visited[i] = true
		node := &Node{Message: msgs[i]}
		for _, c := range children[i] {
			if visited[c] {
				// Back edge of a cycle.
				continue
			}
			node.Replies = append(node.Replies, attach(c))
		}
		return node
	}

	forest := make([]*Node, 0, len(roots)+len(orphans))
	for _, i := range append(roots, orphans...) {
		forest = append(forest, attach(i))
	}

	// Whatever is left is a cycle or hangs off one; its parent chain is
	// entirely unvisited and must loop.
	for i := range msgs {
		if visited[i] {
			continue
		}
		forest = append(forest, attach(slices.Min(cycleFrom(i, parent))))
	}
	return forest
}

// cycleFrom follows parent links from i and returns the members of the cycle
// it ends in.
func cycleFrom(i int, parent []int) []int {
	seen := make(map[int]int)
	var path []int
	for {
		if at, ok := seen[i]; ok {
			return path[at:]
		}
		seen[i] = len(path)
		path = append(path, i)
		i = parent[i]
	}
}

// Find returns the node with the given message id.
func Find(roots []*Node, id string) (*Node, bool) {
	var found *Node
	walkAll(roots, func(n *Node, _ []*Node) bool {
		if n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Siblings returns the reply group that contains id: the replies of its
// parent, or the roots when id is a root.
func Siblings(roots []*Node, id string) ([]*Node, bool) {
	var group []*Node
	walkAll(roots, func(n *Node, siblings []*Node) bool {
		if n.ID() == id {
			group = siblings
			return false
		}
		return true
	})
	return group, group != nil
}

// Len returns the number of nodes in the forest.
func Len(roots []*Node) int {
	count := 0
	walkAll(roots, func(*Node, []*Node) bool {
		count++
		return true
	})
	return count
}

// walkAll visits every node depth first with its sibling group until visit
// returns false.
func walkAll(roots []*Node, visit func(n *Node, siblings []*Node) bool) bool {
	for _, n := range roots {
		if !visit(n, roots) {
			return false
		}
		if !walkAll(n.Replies, visit) {
			return false
		}
	}
	return true
}
