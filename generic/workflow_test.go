package generic_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// TEST WORKFLOW - A three-state document lifecycle
// =============================================================================

type docState string
type docAction string

const (
	docDraft    docState = "DRAFT"
	docSent     docState = "SENT"
	docArchived docState = "ARCHIVED"

	actSend    docAction = "SEND"
	actArchive docAction = "ARCHIVE"
	actRecall  docAction = "RECALL"
)

var docWorkflow = generic.NewWorkflow([]generic.Transition[docState, docAction]{
	{From: []docState{docDraft}, Action: actSend, To: docSent},
	{From: []docState{docDraft, docSent}, Action: actArchive, To: docArchived},
	{From: []docState{docSent}, Action: actRecall, To: docDraft},
})

// =============================================================================
// WORKFLOW TESTS
// =============================================================================

func TestWorkflow_Next_LegalTransition(t *testing.T) {
	// GIVEN: A DRAFT document
	// WHEN: It is sent
	// THEN: It is SENT
	next, err := docWorkflow.Next(docDraft, actSend)
	require.NoError(t, err)
	assert.Equal(t, docSent, next)
}

func TestWorkflow_Next_IllegalTransition(t *testing.T) {
	// GIVEN: An ARCHIVED document (terminal)
	// WHEN: Any action is applied
	// THEN: InvalidTransitionError naming the current status and action
	_, err := docWorkflow.Next(docArchived, actSend)
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidTransition))

	var ite *generic.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "ARCHIVED", ite.Current)
	assert.Equal(t, "SEND", ite.Action)
}

func TestWorkflow_MultipleSources(t *testing.T) {
	// GIVEN: ARCHIVE is legal from DRAFT and SENT
	// THEN: Both reach ARCHIVED
	for _, from := range []docState{docDraft, docSent} {
		next, err := docWorkflow.Next(from, actArchive)
		require.NoError(t, err, "from %s", from)
		assert.Equal(t, docArchived, next)
	}
}

func TestWorkflow_Can(t *testing.T) {
	assert.True(t, docWorkflow.Can(docSent, actRecall))
	assert.False(t, docWorkflow.Can(docDraft, actRecall))
	assert.False(t, docWorkflow.Can("UNKNOWN", actSend))
}

func TestWorkflow_Actions_TableOrder(t *testing.T) {
	// GIVEN: SENT allows ARCHIVE and RECALL
	// THEN: Actions lists them in table order, and nothing for terminal states
	assert.Equal(t, []docAction{actArchive, actRecall}, docWorkflow.Actions(docSent))
	assert.Equal(t, []docAction{actSend, actArchive}, docWorkflow.Actions(docDraft))
	assert.Empty(t, docWorkflow.Actions(docArchived))
}

func TestWorkflow_Rows(t *testing.T) {
	assert.Len(t, docWorkflow.Rows(), 3)
}

// =============================================================================
// CAPABILITY TESTS
// =============================================================================

type testOp string

var testCaps = generic.Capabilities[testOp]{
	"send":    {generic.RoleSpecialist},
	"approve": {generic.RolePayrollManager, generic.RoleFinanceStaff},
}

func TestCapabilities_Allows(t *testing.T) {
	assert.True(t, testCaps.Allows("send", generic.RoleSpecialist))
	assert.False(t, testCaps.Allows("send", generic.RoleFinanceStaff))
	assert.True(t, testCaps.Allows("approve", generic.RoleFinanceStaff))
}

func TestCapabilities_UnknownOperationDenied(t *testing.T) {
	// GIVEN: An operation missing from the table
	// THEN: Every role is refused
	for _, role := range generic.Roles {
		assert.False(t, testCaps.Allows("delete", role))
	}
}

func TestCapabilities_Check_ReturnsAuthorizationError(t *testing.T) {
	err := testCaps.Check("send", generic.RolePayrollManager)
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrUnauthorized))

	var ae *generic.AuthorizationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "send", ae.Operation)
	assert.Equal(t, generic.RolePayrollManager, ae.Role)

	assert.NoError(t, testCaps.Check("send", generic.RoleSpecialist))
}

func TestCapabilities_OperationsFor_Sorted(t *testing.T) {
	assert.Equal(t, []testOp{"approve"}, testCaps.OperationsFor(generic.RoleFinanceStaff))
	assert.Empty(t, testCaps.OperationsFor("auditor"))
}

func TestParseRole(t *testing.T) {
	role, ok := generic.ParseRole("payroll_manager")
	assert.True(t, ok)
	assert.Equal(t, generic.RolePayrollManager, role)

	_, ok = generic.ParseRole("PAYROLL_MANAGER")
	assert.False(t, ok)
}

// =============================================================================
// KEYED MUTEX TESTS
// =============================================================================

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	// GIVEN: Many goroutines incrementing under the same key
	// WHEN: Each does a read-then-write with a yield in between
	// THEN: No increment is lost
	km := generic.NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = km.WithLock("run:1", func() error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	// GIVEN: Key A is held
	// WHEN: Key B is locked from another goroutine
	// THEN: B is acquired without waiting for A
	km := generic.NewKeyedMutex()
	unlockA := km.Lock("run:A")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlock := km.Lock("run:B")
		unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedMutex_WithLockReturnsError(t *testing.T) {
	km := generic.NewKeyedMutex()
	boom := errors.New("boom")
	assert.ErrorIs(t, km.WithLock("k", func() error { return boom }), boom)

	// The key is reusable after fn fails.
	var ran atomic.Bool
	require.NoError(t, km.WithLock("k", func() error { ran.Store(true); return nil }))
	assert.True(t, ran.Load())
}

// =============================================================================
// ERROR CLASSIFICATION TESTS
// =============================================================================

func TestErrorClassification(t *testing.T) {
	assert.True(t, generic.IsClientError(generic.Required("reason")))
	assert.True(t, generic.IsClientError(&generic.InvalidTransitionError{Current: "LOCKED", Action: "PUBLISH"}))
	assert.True(t, generic.IsNotFound(&generic.NotFoundError{Kind: "run", ID: "r1"}))
	assert.True(t, generic.IsRetryable(&generic.ConcurrencyError{Kind: "run", ID: "r1", ExpectedVersion: 2}))
	assert.False(t, generic.IsRetryable(errors.New("disk full")))
	assert.False(t, generic.IsClientError(errors.New("disk full")))
}

func TestValidationError_Message(t *testing.T) {
	err := generic.Required("reason")
	assert.Equal(t, "reason", err.Field)
	assert.Contains(t, err.Error(), "reason")
	assert.ErrorIs(t, err, generic.ErrValidation)
}
