package version

type blockKind uint8

const (
	blockAlpha blockKind = iota
	blockNumeric
	blockSeparator
)

// block is a maximal run of one character class. text aliases the input string.
type block struct {
	kind blockKind
	text string
}

// blocks iterates over the blocks of a version segment without allocating.
type blocks struct {
	s   string
	pos int
}

func classify(c byte) blockKind {
	switch {
	case c >= '0' && c <= '9':
		return blockNumeric
	case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		return blockAlpha
	default:
		return blockSeparator
	}
}

func (b *blocks) next() (block, bool) {
	if b.pos >= len(b.s) {
		return block{}, false
	}
	start := b.pos
	kind := classify(b.s[start])
	for b.pos < len(b.s) && classify(b.s[b.pos]) == kind {
		b.pos++
	}
	return block{kind: kind, text: b.s[start:b.pos]}, true
}

func (b *blocks) done() bool {
	return b.pos >= len(b.s)
}

func stripZeros(s string) string {
	for len(s) > 0 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

// compareNumeric orders digit runs by magnitude without converting them to integers.
func compareNumeric(a, b string) int {
	a, b = stripZeros(a), stripZeros(b)
	if len(a) != len(b) {
		return cmpInt(len(a), len(b))
	}
	return cmpString(a, b)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ranOut decides the order when the other side has no blocks left. cur is the current block
// of the side that still has input; the result is from that side's point of view.
func ranOut(cur block, rest *blocks) int {
	if cur.kind == blockSeparator {
		next, ok := rest.next()
		if !ok {
			// Trailing separators do not count.
			return 0
		}
		cur = next
	}
	if cur.kind == blockAlpha {
		return -1
	}
	return 1
}

// CompareSegments compares two version segments (an epoch, a version or a release) block by
// block. Separator blocks rank above numeric blocks, which rank above alpha blocks.
func CompareSegments(a, b string) int {
	left, right := blocks{s: a}, blocks{s: b}
	for {
		lb, lok := left.next()
		rb, rok := right.next()
		switch {
		case !lok && !rok:
			return 0
		case !rok:
			return ranOut(lb, &left)
		case !lok:
			return -ranOut(rb, &right)
		}

		if lb.kind != rb.kind {
			return cmpInt(int(lb.kind), int(rb.kind))
		}

		var c int
		switch lb.kind {
		case blockSeparator:
			if len(lb.text) != len(rb.text) {
				if left.done() && right.done() {
					return 0
				}
				c = cmpInt(len(lb.text), len(rb.text))
			}
		case blockNumeric:
			c = compareNumeric(lb.text, rb.text)
		case blockAlpha:
			c = cmpString(lb.text, rb.text)
		}
		if c != 0 {
			return c
		}
	}
}
