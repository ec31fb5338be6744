package cbba

// Bundle is the capacity-bounded claim list. Insertion order is kept but the
// semantics are set-like: no duplicates.
type Bundle struct {
	tasks    []string
	capacity int
}

func NewBundle(capacity int) Bundle {
	return Bundle{capacity: capacity}
}

// Add reports false when id is already present or the bundle is full.
func (b *Bundle) Add(id string) bool {
	if b.Contains(id) || b.Full() {
		return false
	}
	b.tasks = append(b.tasks, id)
	return true
}

func (b *Bundle) Remove(id string) {
	for i, t := range b.tasks {
		if t == id {
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			return
		}
	}
}

func (b *Bundle) Clear() { b.tasks = b.tasks[:0] }

func (b *Bundle) Contains(id string) bool {
	for _, t := range b.tasks {
		if t == id {
			return true
		}
	}
	return false
}

func (b *Bundle) Full() bool    { return len(b.tasks) >= b.capacity }
func (b *Bundle) Size() int     { return len(b.tasks) }
func (b *Bundle) Capacity() int { return b.capacity }
func (b *Bundle) Empty() bool   { return len(b.tasks) == 0 }

// Tasks returns a copy in insertion order.
func (b *Bundle) Tasks() []string {
	out := make([]string, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Path is the ordered execution sequence. Unlike Bundle it has no capacity.
type Path struct {
	tasks []string
}

// Insert clamps position to the current length.
func (p *Path) Insert(id string, position int) {
	if position < 0 || position > len(p.tasks) {
		position = len(p.tasks)
	}
	p.tasks = append(p.tasks, "")
	copy(p.tasks[position+1:], p.tasks[position:])
	p.tasks[position] = id
}

func (p *Path) Remove(id string) {
	for i, t := range p.tasks {
		if t == id {
			p.tasks = append(p.tasks[:i], p.tasks[i+1:]...)
			return
		}
	}
}

func (p *Path) Clear() { p.tasks = p.tasks[:0] }

func (p *Path) Contains(id string) bool {
	return p.FindPosition(id) < len(p.tasks)
}

// FindPosition returns Size() when id is absent.
func (p *Path) FindPosition(id string) int {
	for i, t := range p.tasks {
		if t == id {
			return i
		}
	}
	return len(p.tasks)
}

func (p *Path) Size() int       { return len(p.tasks) }
func (p *Path) Empty() bool     { return len(p.tasks) == 0 }
func (p *Path) At(i int) string { return p.tasks[i] }

// Front is the next task to execute. Empty string on an empty path.
func (p *Path) Front() string {
	if len(p.tasks) == 0 {
		return ""
	}
	return p.tasks[0]
}

func (p *Path) Tasks() []string {
	out := make([]string, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// Suffix returns the tasks at position and after, in order.
func (p *Path) Suffix(position int) []string {
	if position >= len(p.tasks) {
		return nil
	}
	out := make([]string, len(p.tasks)-position)
	copy(out, p.tasks[position:])
	return out
}
