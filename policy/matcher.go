package policy

import "strings"

// match reports whether r matches op and the length of the matched portion,
// used to break ties among same-kind rules.
func (r *rule) match(op string) (matched bool, length int) {
	switch r.kind {
	case kindExact:
		if op == r.pattern {
			return true, len(r.pattern)
		}
	case kindPrefix:
		if strings.HasPrefix(op, r.pattern) {
			return true, len(r.pattern)
		}
	}
	return false, 0
}
