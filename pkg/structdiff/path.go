package structdiff

import "strconv"

const pathArrow = " -> "

// pathCursor carries the two renderings of the current tree location: the
// machine path (`a.b[2].c`) and the human path (`"a" -> "b" -> index 2 ->
// "c"`). Both are empty at the root. Cursors are immutable; key and index
// derive the cursor for a child location.
type pathCursor struct {
	machine string
	human   string
}

func (p pathCursor) key(k string) pathCursor {
	machine := k
	if p.machine != "" {
		machine = p.machine + "." + k
	}
	human := strconv.Quote(k)
	if p.human != "" {
		human = p.human + pathArrow + human
	}
	return pathCursor{machine: machine, human: human}
}

func (p pathCursor) index(i int) pathCursor {
	machine := p.machine + "[" + strconv.Itoa(i) + "]"
	human := "index " + strconv.Itoa(i)
	if p.human != "" {
		human = p.human + pathArrow + human
	}
	return pathCursor{machine: machine, human: human}
}

// describe is the human path, with a stand-in for the root so sentences
// like "Changed the root value ..." stay readable.
func (p pathCursor) describe() string {
	if p.human == "" {
		return "the root value"
	}
	return p.human
}

func (p pathCursor) String() string {
	if p.machine == "" {
		return "(root)"
	}
	return p.machine
}
