package logic

// Clause is a disjunction of DIMACS literals: variable n is the literal n,
// its negation is -n.
type Clause []int

// VarMap numbers variables. A child map sees the names of its parent and
// allocates new numbers after the parent's.
type VarMap struct {
	parent *VarMap
	ids    map[string]int
	names  map[int]string
	next   int
}

// NewVarMap returns an empty map whose first variable is 1.
func NewVarMap() *VarMap {
	return &VarMap{ids: make(map[string]int), names: make(map[int]string), next: 1}
}

// Child returns a map layered over m. Names added to the child are not
// visible in m.
func (m *VarMap) Child() *VarMap {
	return &VarMap{parent: m, ids: make(map[string]int), names: make(map[int]string), next: m.next}
}

// Reserve makes sure fresh variables are numbered above n.
func (m *VarMap) Reserve(n int) {
	if n >= m.next {
		m.next = n + 1
	}
}

// Set binds name to id.
func (m *VarMap) Set(name string, id int) {
	m.ids[name] = id
	m.names[id] = name
	m.Reserve(id)
}

// Lookup returns the number of name without allocating one.
func (m *VarMap) Lookup(name string) (int, bool) {
	for cur := m; cur != nil; cur = cur.parent {
		if id, ok := cur.ids[name]; ok {
			return id, true
		}
	}
	return 0, false
}

// Name returns the name bound to id.
func (m *VarMap) Name(id int) (string, bool) {
	for cur := m; cur != nil; cur = cur.parent {
		if name, ok := cur.names[id]; ok {
			return name, true
		}
	}
	return "", false
}

// ID returns the number of name, allocating one when needed.
func (m *VarMap) ID(name string) int {
	if id, ok := m.Lookup(name); ok {
		return id
	}
	id := m.Fresh()
	m.ids[name] = id
	m.names[id] = name
	return id
}

// Fresh allocates an anonymous variable.
func (m *VarMap) Fresh() int {
	id := m.next
	m.next++
	return id
}

// Max returns the highest number allocated so far.
func (m *VarMap) Max() int {
	return m.next - 1
}

// Encoder produces an equisatisfiable clause set with the Tseitin
// transformation.
type Encoder struct {
	vars    *VarMap
	clauses []Clause
	cache   map[string]int
	trueLit int
}

func NewEncoder(vars *VarMap) *Encoder {
	return &Encoder{vars: vars, cache: make(map[string]int)}
}

// Vars returns the variable map the encoder numbers with.
func (e *Encoder) Vars() *VarMap {
	return e.vars
}

// Clauses returns the clauses emitted so far.
func (e *Encoder) Clauses() []Clause {
	return e.clauses
}

// Assert adds clauses that force f to hold.
func (e *Encoder) Assert(f Formula) {
	switch x := f.(type) {
	case Const:
		if !x {
			lit := e.truth()
			e.emit(-lit)
		}
	case And:
		for _, y := range x.Xs {
			e.Assert(y)
		}
	case Or:
		c := make(Clause, 0, len(x.Xs))
		for _, y := range x.Xs {
			c = append(c, e.Lit(y))
		}
		e.emit(c...)
	default:
		e.emit(e.Lit(f))
	}
}

// Lit returns a literal equivalent to f.
func (e *Encoder) Lit(f Formula) int {
	switch x := f.(type) {
	case Var:
		return e.vars.ID(x.Name)
	case Const:
		if x {
			return e.truth()
		}
		return -e.truth()
	case Not:
		return -e.Lit(x.X)
	}

	key := f.String()
	if lit, ok := e.cache[key]; ok {
		return lit
	}

	var lit int
	switch x := f.(type) {
	case And:
		lits := e.lits(x.Xs)
		lit = e.vars.Fresh()
		long := Clause{lit}
		for _, l := range lits {
			e.emit(-lit, l)
			long = append(long, -l)
		}
		e.emit(long...)
	case Or:
		lits := e.lits(x.Xs)
		lit = e.vars.Fresh()
		long := Clause{-lit}
		for _, l := range lits {
			e.emit(lit, -l)
			long = append(long, l)
		}
		e.emit(long...)
	case Iff:
		a, b := e.Lit(x.X), e.Lit(x.Y)
		lit = e.vars.Fresh()
		e.emit(-lit, -a, b)
		e.emit(-lit, a, -b)
		e.emit(lit, a, b)
		e.emit(lit, -a, -b)
	default:
		panic("logic: unknown formula type")
	}
	e.cache[key] = lit
	return lit
}

func (e *Encoder) lits(xs []Formula) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = e.Lit(x)
	}
	return out
}

// truth returns a variable constrained to be true.
func (e *Encoder) truth() int {
	if e.trueLit == 0 {
		e.trueLit = e.vars.Fresh()
		e.emit(e.trueLit)
	}
	return e.trueLit
}

func (e *Encoder) emit(lits ...int) {
	e.clauses = append(e.clauses, Clause(lits))
}
