package gallery

// Navigator tracks the active album. Moves clamp at both ends and never wrap.
type Navigator struct {
	albums []Album
	index  int
}

func NewNavigator(albums []Album) *Navigator {
	return &Navigator{albums: albums}
}

func (n *Navigator) Len() int { return len(n.albums) }

func (n *Navigator) Index() int { return n.index }

// Select moves to i, clamped into the valid range.
func (n *Navigator) Select(i int) {
	switch {
	case len(n.albums) == 0 || i < 0:
		n.index = 0
	case i >= len(n.albums):
		n.index = len(n.albums) - 1
	default:
		n.index = i
	}
}

func (n *Navigator) Next() { n.Select(n.index + 1) }

func (n *Navigator) Prev() { n.Select(n.index - 1) }

// Active returns the selected album; ok is false for an empty set.
func (n *Navigator) Active() (Album, bool) {
	if len(n.albums) == 0 {
		return Album{}, false
	}
	return n.albums[n.index], true
}
