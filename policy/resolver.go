package policy

// Resolver holds a set of operation groups and resolves an operation name to
// the best-matching group.
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver from the supplied group builders.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve finds the best-matching group for op.
//
// Exact matches beat prefix matches. Among prefixes the longer one wins, and
// on a full tie the group registered first wins. A nil Resolver matches
// nothing.
func (res *Resolver) Resolve(op string) (groupName string, pol *Policy, ok bool) {
	if res == nil {
		return "", nil, false
	}
	bestKind := matchKind(-1)
	bestLen := -1

	for _, g := range res.groups {
		for _, r := range g.rules {
			matched, mLen := r.match(op)
			if !matched {
				continue
			}
			better := bestKind < 0 ||
				r.kind < bestKind ||
				(r.kind == bestKind && mLen > bestLen)
			if better {
				bestKind = r.kind
				bestLen = mLen
				groupName = g.name
				pol = g.policy
				ok = true
			}
		}
	}
	return groupName, pol, ok
}

// Lookup is Resolve without the group name. It returns the zero Policy when
// nothing matches.
func (res *Resolver) Lookup(op string) Policy {
	if _, pol, ok := res.Resolve(op); ok && pol != nil {
		return *pol
	}
	return Policy{}
}
