package tree

// Step is one message on the displayed path of a thread.
type Step struct {
	Node  *Node
	Depth int
	// Alternatives is the size of the sibling group Node was resolved
	// from; 1 when there was no choice. Roots always report 1.
	Alternatives int
	// Pending lists the reply choices when the path stops at an unresolved
	// branch point below Node.
	Pending []*Node
}

// Walk returns the displayed path through each root in order. From every
// node it follows the resolved reply and stops at a leaf or at a branch
// point the viewer has not resolved.
func Walk(roots []*Node, branches map[string]bool) []Step {
	var steps []Step
	for _, root := range roots {
		cur, depth, alternatives := root, 0, 1
		for {
			step := Step{Node: cur, Depth: depth, Alternatives: alternatives}
			res := Resolve(cur.Replies, branches)
			if res.NeedsChoice() {
				step.Pending = res.Choices
			}
			steps = append(steps, step)
			if res.Shown == nil {
				break
			}
			cur, depth, alternatives = res.Shown, depth+1, len(cur.Replies)
		}
	}
	return steps
}
