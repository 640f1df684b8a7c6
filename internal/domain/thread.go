package domain

// ThreadNode is one review together with its direct replies.
type ThreadNode struct {
	Review  Review
	Replies []*ThreadNode
}

// ThreadEntry is a review positioned for rendering. Depth 0 is top level.
type ThreadEntry struct {
	Review Review
	Depth  int
}

// Thread is the reply forest of one book.
type Thread struct {
	Roots []*ThreadNode
	size  int
}

// BuildThread arranges reviews into a forest by parent reference. Sibling
// order follows the input order, so callers pass reviews already sorted.
// Reviews whose parent is not in the set are dropped along with their
// replies.
func BuildThread(reviews []Review) *Thread {
	children := make(map[int64][]Review)
	t := &Thread{}

	for _, r := range reviews {
		if r.IsTopLevel() {
			t.Roots = append(t.Roots, &ThreadNode{Review: r})
			continue
		}
		children[*r.ParentID] = append(children[*r.ParentID], r)
	}

	seen := make(map[int64]bool, len(reviews))
	stack := make([]*ThreadNode, 0, len(t.Roots))
	for _, root := range t.Roots {
		seen[root.Review.ID] = true
		stack = append(stack, root)
	}
	t.size = len(t.Roots)

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range children[node.Review.ID] {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			n := &ThreadNode{Review: child}
			node.Replies = append(node.Replies, n)
			stack = append(stack, n)
			t.size++
		}
	}

	return t
}

// Len returns the number of reviews in the thread.
func (t *Thread) Len() int {
	return t.size
}

// Flatten walks the forest depth first, each review followed by its
// replies, and returns the entries in display order.
func (t *Thread) Flatten() []ThreadEntry {
	out := make([]ThreadEntry, 0, t.size)

	type frame struct {
		node  *ThreadNode
		depth int
	}
	stack := make([]frame, 0, len(t.Roots))
	for i := len(t.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{t.Roots[i], 0})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		out = append(out, ThreadEntry{Review: f.node.Review, Depth: f.depth})
		for i := len(f.node.Replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Replies[i], f.depth + 1})
		}
	}

	return out
}
