/*
memory.go - In-memory payroll store (tests, demos, dev server)

PURPOSE:
  Implements payroll.Store on plain maps. The ledger half is the generic
  in-memory ledger; both halves sit behind one RWMutex so a transaction sees
  and writes a consistent view.

TRANSACTIONS:
  WithTx holds the write lock for the whole callback and hands fn a view
  that does not lock again. On error the maps and the ledger are restored
  from a snapshot taken at the start, so readers never observe a partial
  write.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
	gstore "github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/payroll"
)

type appKey struct {
	employee payroll.EmployeeID
	benefit  payroll.BenefitID
	run      payroll.RunID
}

type state struct {
	runs      map[payroll.RunID]payroll.PayrollRun
	runKeys   map[string]payroll.RunID
	lines     map[payroll.RunID]map[payroll.EmployeeID]payroll.PayLine
	templates map[string]payroll.BenefitTemplate
	benefits  map[payroll.BenefitID]payroll.AncillaryBenefit
	apps      map[appKey]payroll.BenefitApplication
	refunds   map[payroll.RefundID]payroll.Refund
	employees map[payroll.EmployeeID]payroll.Employee
}

func newState() *state {
	return &state{
		runs:      make(map[payroll.RunID]payroll.PayrollRun),
		runKeys:   make(map[string]payroll.RunID),
		lines:     make(map[payroll.RunID]map[payroll.EmployeeID]payroll.PayLine),
		templates: make(map[string]payroll.BenefitTemplate),
		benefits:  make(map[payroll.BenefitID]payroll.AncillaryBenefit),
		apps:      make(map[appKey]payroll.BenefitApplication),
		refunds:   make(map[payroll.RefundID]payroll.Refund),
		employees: make(map[payroll.EmployeeID]payroll.Employee),
	}
}

// clone copies every map. Stored values are replaced, never mutated in
// place, so copying the maps is enough.
func (s *state) clone() *state {
	cp := newState()
	for k, v := range s.runs {
		cp.runs[k] = v
	}
	for k, v := range s.runKeys {
		cp.runKeys[k] = v
	}
	for k, v := range s.lines {
		inner := make(map[payroll.EmployeeID]payroll.PayLine, len(v))
		for ek, ev := range v {
			inner[ek] = ev
		}
		cp.lines[k] = inner
	}
	for k, v := range s.templates {
		cp.templates[k] = v
	}
	for k, v := range s.benefits {
		cp.benefits[k] = v
	}
	for k, v := range s.apps {
		cp.apps[k] = v
	}
	for k, v := range s.refunds {
		cp.refunds[k] = v
	}
	for k, v := range s.employees {
		cp.employees[k] = v
	}
	return cp
}

func runKey(entity string, period generic.PayPeriod) string {
	return entity + "|" + period.Key()
}

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	st     *state
	ledger *gstore.Memory
}

var _ payroll.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{st: newState(), ledger: gstore.NewMemory()}
}

func (m *Memory) view() *txView { return &txView{st: m.st, ledger: m.ledger} }

func (m *Memory) read() func() {
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *Memory) write() func() {
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.st.clone()
	savedLedger := m.ledger.Snapshot()
	if err := fn(m.view()); err != nil {
		m.st = saved
		m.ledger.Restore(savedLedger)
		return err
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(context.Context) error {
	defer m.write()()
	m.st = newState()
	m.ledger = gstore.NewMemory()
	return nil
}

func (m *Memory) AppendEntry(ctx context.Context, e *generic.LedgerEntry) error {
	defer m.write()()
	return m.view().AppendEntry(ctx, e)
}

func (m *Memory) LoadEntries(ctx context.Context, subjectID string) ([]generic.LedgerEntry, error) {
	defer m.read()()
	return m.view().LoadEntries(ctx, subjectID)
}

func (m *Memory) CreateRun(ctx context.Context, run payroll.PayrollRun) error {
	defer m.write()()
	return m.view().CreateRun(ctx, run)
}

func (m *Memory) GetRun(ctx context.Context, id payroll.RunID) (*payroll.PayrollRun, error) {
	defer m.read()()
	return m.view().GetRun(ctx, id)
}

func (m *Memory) FindRun(ctx context.Context, entity string, period generic.PayPeriod) (*payroll.PayrollRun, error) {
	defer m.read()()
	return m.view().FindRun(ctx, entity, period)
}

func (m *Memory) ListRuns(ctx context.Context, filter payroll.RunFilter) ([]payroll.PayrollRun, error) {
	defer m.read()()
	return m.view().ListRuns(ctx, filter)
}

func (m *Memory) UpdateRun(ctx context.Context, run payroll.PayrollRun, expectedVersion int64) error {
	defer m.write()()
	return m.view().UpdateRun(ctx, run, expectedVersion)
}

func (m *Memory) SavePayLine(ctx context.Context, line payroll.PayLine) error {
	defer m.write()()
	return m.view().SavePayLine(ctx, line)
}

func (m *Memory) GetPayLine(ctx context.Context, runID payroll.RunID, employeeID payroll.EmployeeID) (*payroll.PayLine, error) {
	defer m.read()()
	return m.view().GetPayLine(ctx, runID, employeeID)
}

func (m *Memory) ListPayLines(ctx context.Context, runID payroll.RunID) ([]payroll.PayLine, error) {
	defer m.read()()
	return m.view().ListPayLines(ctx, runID)
}

func (m *Memory) SaveBenefitTemplate(ctx context.Context, t payroll.BenefitTemplate) error {
	defer m.write()()
	return m.view().SaveBenefitTemplate(ctx, t)
}

func (m *Memory) GetBenefitTemplate(ctx context.Context, id string) (*payroll.BenefitTemplate, error) {
	defer m.read()()
	return m.view().GetBenefitTemplate(ctx, id)
}

func (m *Memory) ListBenefitTemplates(ctx context.Context) ([]payroll.BenefitTemplate, error) {
	defer m.read()()
	return m.view().ListBenefitTemplates(ctx)
}

func (m *Memory) SaveBenefit(ctx context.Context, b payroll.AncillaryBenefit) error {
	defer m.write()()
	return m.view().SaveBenefit(ctx, b)
}

func (m *Memory) GetBenefit(ctx context.Context, id payroll.BenefitID) (*payroll.AncillaryBenefit, error) {
	defer m.read()()
	return m.view().GetBenefit(ctx, id)
}

func (m *Memory) ListBenefits(ctx context.Context, filter payroll.BenefitFilter) ([]payroll.AncillaryBenefit, error) {
	defer m.read()()
	return m.view().ListBenefits(ctx, filter)
}

func (m *Memory) RecordApplication(ctx context.Context, app payroll.BenefitApplication) error {
	defer m.write()()
	return m.view().RecordApplication(ctx, app)
}

func (m *Memory) HasApplication(ctx context.Context, employeeID payroll.EmployeeID, benefitID payroll.BenefitID, runID payroll.RunID) (bool, error) {
	defer m.read()()
	return m.view().HasApplication(ctx, employeeID, benefitID, runID)
}

func (m *Memory) ListApplications(ctx context.Context, benefitID payroll.BenefitID) ([]payroll.BenefitApplication, error) {
	defer m.read()()
	return m.view().ListApplications(ctx, benefitID)
}

func (m *Memory) SaveRefund(ctx context.Context, r payroll.Refund) error {
	defer m.write()()
	return m.view().SaveRefund(ctx, r)
}

func (m *Memory) GetRefund(ctx context.Context, id payroll.RefundID) (*payroll.Refund, error) {
	defer m.read()()
	return m.view().GetRefund(ctx, id)
}

func (m *Memory) ListRefunds(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.Refund, error) {
	defer m.read()()
	return m.view().ListRefunds(ctx, employeeID)
}

func (m *Memory) SaveEmployee(ctx context.Context, e payroll.Employee) error {
	defer m.write()()
	return m.view().SaveEmployee(ctx, e)
}

func (m *Memory) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	defer m.read()()
	return m.view().GetEmployee(ctx, id)
}

func (m *Memory) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	defer m.read()()
	return m.view().ListEmployees(ctx)
}

// =============================================================================
// TX VIEW - Unlocked access; the caller holds Memory.mu
// =============================================================================

type txView struct {
	st     *state
	ledger *gstore.Memory
}

func (v *txView) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	return fn(v)
}

func (v *txView) AppendEntry(_ context.Context, e *generic.LedgerEntry) error {
	if e.SubjectID != "" {
		if _, ok := v.st.runs[payroll.RunID(e.SubjectID)]; !ok {
			return &generic.NotFoundError{Kind: "run", ID: e.SubjectID}
		}
	}
	return v.ledger.AppendEntryLocked(e)
}

func (v *txView) LoadEntries(_ context.Context, subjectID string) ([]generic.LedgerEntry, error) {
	return v.ledger.LoadEntriesLocked(subjectID), nil
}

func (v *txView) CreateRun(_ context.Context, run payroll.PayrollRun) error {
	key := runKey(run.Entity, run.Period)
	if _, ok := v.st.runKeys[key]; ok {
		return payroll.ErrDuplicateRun
	}
	if _, ok := v.st.runs[run.ID]; ok {
		return payroll.ErrDuplicateRun
	}
	v.st.runs[run.ID] = cloneRun(run)
	v.st.runKeys[key] = run.ID
	return nil
}

func (v *txView) GetRun(_ context.Context, id payroll.RunID) (*payroll.PayrollRun, error) {
	run, ok := v.st.runs[id]
	if !ok {
		return nil, nil
	}
	cp := cloneRun(run)
	return &cp, nil
}

func (v *txView) FindRun(ctx context.Context, entity string, period generic.PayPeriod) (*payroll.PayrollRun, error) {
	id, ok := v.st.runKeys[runKey(entity, period)]
	if !ok {
		return nil, nil
	}
	return v.GetRun(ctx, id)
}

func (v *txView) ListRuns(_ context.Context, filter payroll.RunFilter) ([]payroll.PayrollRun, error) {
	var out []payroll.PayrollRun
	for _, run := range v.st.runs {
		if filter.Entity != "" && run.Entity != filter.Entity {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Period.End.Equal(out[j].Period.End) {
			return out[i].Period.End.After(out[j].Period.End)
		}
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *txView) UpdateRun(_ context.Context, run payroll.PayrollRun, expectedVersion int64) error {
	current, ok := v.st.runs[run.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "run", ID: string(run.ID)}
	}
	if current.Version != expectedVersion {
		return &generic.ConcurrencyError{Kind: "run", ID: string(run.ID), ExpectedVersion: expectedVersion}
	}
	v.st.runs[run.ID] = cloneRun(run)
	return nil
}

func (v *txView) SavePayLine(_ context.Context, line payroll.PayLine) error {
	if _, ok := v.st.runs[line.RunID]; !ok {
		return &generic.NotFoundError{Kind: "run", ID: string(line.RunID)}
	}
	byEmp := v.st.lines[line.RunID]
	if byEmp == nil {
		byEmp = make(map[payroll.EmployeeID]payroll.PayLine)
		v.st.lines[line.RunID] = byEmp
	}
	byEmp[line.EmployeeID] = line.Clone()
	return nil
}

func (v *txView) GetPayLine(_ context.Context, runID payroll.RunID, employeeID payroll.EmployeeID) (*payroll.PayLine, error) {
	line, ok := v.st.lines[runID][employeeID]
	if !ok {
		return nil, nil
	}
	cp := line.Clone()
	return &cp, nil
}

func (v *txView) ListPayLines(_ context.Context, runID payroll.RunID) ([]payroll.PayLine, error) {
	byEmp := v.st.lines[runID]
	out := make([]payroll.PayLine, 0, len(byEmp))
	for _, line := range byEmp {
		out = append(out, line.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (v *txView) SaveBenefitTemplate(_ context.Context, t payroll.BenefitTemplate) error {
	v.st.templates[t.ID] = t
	return nil
}

func (v *txView) GetBenefitTemplate(_ context.Context, id string) (*payroll.BenefitTemplate, error) {
	t, ok := v.st.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (v *txView) ListBenefitTemplates(_ context.Context) ([]payroll.BenefitTemplate, error) {
	out := make([]payroll.BenefitTemplate, 0, len(v.st.templates))
	for _, t := range v.st.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) SaveBenefit(_ context.Context, b payroll.AncillaryBenefit) error {
	v.st.benefits[b.ID] = cloneBenefit(b)
	return nil
}

func (v *txView) GetBenefit(_ context.Context, id payroll.BenefitID) (*payroll.AncillaryBenefit, error) {
	b, ok := v.st.benefits[id]
	if !ok {
		return nil, nil
	}
	cp := cloneBenefit(b)
	return &cp, nil
}

func (v *txView) ListBenefits(_ context.Context, filter payroll.BenefitFilter) ([]payroll.AncillaryBenefit, error) {
	var out []payroll.AncillaryBenefit
	for _, b := range v.st.benefits {
		if filter.EmployeeID != "" && b.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.State != "" && b.State != filter.State {
			continue
		}
		out = append(out, cloneBenefit(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *txView) RecordApplication(_ context.Context, app payroll.BenefitApplication) error {
	key := appKey{employee: app.EmployeeID, benefit: app.BenefitID, run: app.RunID}
	if _, ok := v.st.apps[key]; ok {
		return payroll.ErrAlreadyApplied
	}
	v.st.apps[key] = app
	return nil
}

func (v *txView) HasApplication(_ context.Context, employeeID payroll.EmployeeID, benefitID payroll.BenefitID, runID payroll.RunID) (bool, error) {
	_, ok := v.st.apps[appKey{employee: employeeID, benefit: benefitID, run: runID}]
	return ok, nil
}

func (v *txView) ListApplications(_ context.Context, benefitID payroll.BenefitID) ([]payroll.BenefitApplication, error) {
	var out []payroll.BenefitApplication
	for k, app := range v.st.apps {
		if k.benefit == benefitID {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.Before(out[j].AppliedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}

func (v *txView) SaveRefund(_ context.Context, r payroll.Refund) error {
	v.st.refunds[r.ID] = cloneRefund(r)
	return nil
}

func (v *txView) GetRefund(_ context.Context, id payroll.RefundID) (*payroll.Refund, error) {
	r, ok := v.st.refunds[id]
	if !ok {
		return nil, nil
	}
	cp := cloneRefund(r)
	return &cp, nil
}

func (v *txView) ListRefunds(_ context.Context, employeeID payroll.EmployeeID) ([]payroll.Refund, error) {
	var out []payroll.Refund
	for _, r := range v.st.refunds {
		if employeeID != "" && r.EmployeeID != employeeID {
			continue
		}
		out = append(out, cloneRefund(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *txView) SaveEmployee(_ context.Context, e payroll.Employee) error {
	v.st.employees[e.ID] = e
	return nil
}

func (v *txView) GetEmployee(_ context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	e, ok := v.st.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (v *txView) ListEmployees(_ context.Context) ([]payroll.Employee, error) {
	out := make([]payroll.Employee, 0, len(v.st.employees))
	for _, e := range v.st.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// COPY HELPERS
// =============================================================================

func cloneRun(r payroll.PayrollRun) payroll.PayrollRun {
	r.Roster = append([]payroll.EmployeeID(nil), r.Roster...)
	return r
}

func cloneBenefit(b payroll.AncillaryBenefit) payroll.AncillaryBenefit {
	if b.ReviewedAt != nil {
		t := *b.ReviewedAt
		b.ReviewedAt = &t
	}
	return b
}

func cloneRefund(r payroll.Refund) payroll.Refund {
	if r.PaidAt != nil {
		t := *r.PaidAt
		r.PaidAt = &t
	}
	return r
}
