/*
workflow.go - Table-driven status machine

PURPOSE:
  A Workflow is the list of legal (from, action) → to moves for one kind of
  record. Domain packages declare their table once; every caller asks the
  table instead of re-implementing status checks.

  ┌────────┐  review   ┌──────────────┐  publish  ┌───────────┐
  │ DRAFT  │ ────────▶ │ UNDER_REVIEW │ ────────▶ │ PUBLISHED │ ...
  └────────┘           └──────────────┘           └───────────┘

EXAMPLE:
  wf := generic.NewWorkflow([]generic.Transition[Status, Action]{
      {From: []Status{Draft}, Action: Review, To: UnderReview},
  })
  next, err := wf.Next(Draft, Review) // UnderReview, nil
  _, err = wf.Next(Draft, Publish)    // *InvalidTransitionError
*/
package generic

// Transition is one row of a workflow table.
type Transition[S ~string, A ~string] struct {
	From   []S
	Action A
	To     S
}

// Workflow resolves transitions from a fixed table.
type Workflow[S ~string, A ~string] struct {
	rows []Transition[S, A]
	next map[S]map[A]S
}

// NewWorkflow indexes the table. A later row for the same (from, action)
// pair overrides an earlier one.
func NewWorkflow[S ~string, A ~string](rows []Transition[S, A]) *Workflow[S, A] {
	wf := &Workflow[S, A]{rows: rows, next: make(map[S]map[A]S)}
	for _, row := range rows {
		for _, from := range row.From {
			if wf.next[from] == nil {
				wf.next[from] = make(map[A]S)
			}
			wf.next[from][row.Action] = row.To
		}
	}
	return wf
}

// Next returns the status reached by applying action from the current
// status, or an InvalidTransitionError.
func (wf *Workflow[S, A]) Next(current S, action A) (S, error) {
	if to, ok := wf.next[current][action]; ok {
		return to, nil
	}
	var zero S
	return zero, &InvalidTransitionError{Current: string(current), Action: string(action)}
}

// Can reports whether action is legal from current.
func (wf *Workflow[S, A]) Can(current S, action A) bool {
	_, ok := wf.next[current][action]
	return ok
}

// Actions lists the actions legal from current, in table order.
func (wf *Workflow[S, A]) Actions(current S) []A {
	var actions []A
	seen := make(map[A]bool)
	for _, row := range wf.rows {
		for _, from := range row.From {
			if from == current && !seen[row.Action] {
				seen[row.Action] = true
				actions = append(actions, row.Action)
			}
		}
	}
	return actions
}

// Rows returns the table.
func (wf *Workflow[S, A]) Rows() []Transition[S, A] { return wf.rows }
