package craft

import "github.com/ShayCichocki/craft/pkg/models"

// frame is one level of the depth-first position: the node being walked and
// the index of the child to visit next.
type frame struct {
	nodeID string
	index  int
}

// cursor is the explicit traversal stack. The bottom frame references the
// root (or the synthetic parent of a childless root).
type cursor []frame

func (c cursor) clone() cursor {
	out := make(cursor, len(c))
	copy(out, c)
	return out
}

// seek moves c forward to the next leaf. Exhausted frames are popped and the
// parent advanced past them; internal nodes get a new frame. It returns the
// updated cursor and the leaf, or nil if the tree is exhausted.
func (c cursor) seek(nodes map[string]*models.TaskNode) (cursor, *models.TaskNode) {
	for len(c) > 0 {
		top := c[len(c)-1]
		node := nodes[top.nodeID]
		if node == nil || top.index >= len(node.Children) {
			c = c[:len(c)-1]
			if len(c) > 0 {
				c[len(c)-1].index++
			}
			continue
		}

		child := node.Children[top.index]
		if child == nil {
			c[len(c)-1].index++
			continue
		}
		if !child.IsLeaf() {
			c = append(c, frame{nodeID: child.ID})
			continue
		}
		return c, child
	}
	return c, nil
}

// advance moves past the child under the top frame.
func (c cursor) advance() {
	if len(c) > 0 {
		c[len(c)-1].index++
	}
}
