package generic

import "sort"

// =============================================================================
// CAPABILITIES - (operation, role) → allow/deny, configured as data
// =============================================================================

// Capabilities maps each operation to the roles allowed to perform it.
// The table is the whole rule set: there are no per-route guards, so it can
// be printed, diffed and tested on its own.
//
//   caps := generic.Capabilities[Op]{
//       OpPublish: {RoleSpecialist},
//       OpLock:    {RolePayrollManager},
//   }
//   if err := caps.Check(OpLock, actor.Role); err != nil { ... }
type Capabilities[O ~string] map[O][]Role

// Allows reports whether role may perform op. Unknown operations are denied.
func (c Capabilities[O]) Allows(op O, role Role) bool {
	for _, r := range c[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Check returns an AuthorizationError when role may not perform op.
func (c Capabilities[O]) Check(op O, role Role) error {
	if !c.Allows(op, role) {
		return &AuthorizationError{Operation: string(op), Role: role}
	}
	return nil
}

// OperationsFor lists the operations a role may perform, sorted.
func (c Capabilities[O]) OperationsFor(role Role) []O {
	var ops []O
	for op := range c {
		if c.Allows(op, role) {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
