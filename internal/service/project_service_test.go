package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"payoutledger/internal/apperr"
	"payoutledger/internal/auth"
	"payoutledger/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemRefs(n int) []string {
	refs := make([]string, n)
	for i := range refs {
		refs[i] = fmt.Sprintf("s3://batch/img-%03d.png", i+1)
	}
	return refs
}

func (f *fixture) assignedProject(t *testing.T, employeeID string, items int, rate, security int64) *model.Project {
	t.Helper()
	p, err := f.projects.CreateProject(f.ctx, admin, itemRefs(items))
	require.NoError(t, err)
	p, err = f.projects.AssignProject(f.ctx, admin, &AssignProjectRequest{
		ProjectID:           p.ID,
		EmployeeID:          employeeID,
		SalaryPerCompletion: dec(rate),
		SecurityAmount:      dec(security),
		DurationHours:       24,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) completeItems(t *testing.T, employeeID, projectID string, n int) {
	t.Helper()
	actor := auth.Employee(employeeID)
	for i := 0; i < n; i++ {
		alloc, err := f.projects.AllocateNextItem(f.ctx, actor, projectID, 0)
		require.NoError(t, err)
		require.NotNil(t, alloc.Item)
		_, err = f.projects.RecordCompletion(f.ctx, actor, &RecordCompletionRequest{
			ProjectID:  projectID,
			WorkItemID: alloc.Item.ID,
			Payload:    fmt.Sprintf(`{"label":"item-%d"}`, alloc.Item.SequenceIndex),
		})
		require.NoError(t, err)
	}
}

func TestCreateProjectNumbersItems(t *testing.T) {
	f := newFixture(t)
	p, err := f.projects.CreateProject(f.ctx, admin, itemRefs(3))
	require.NoError(t, err)
	assert.Regexp(t, `^BATCH-[0-9A-F]{8}$`, p.ID)
	assert.Equal(t, model.ProjectStatusUnassigned, p.Status)

	items, err := f.store.Projects().ListItems(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, i+1, item.SequenceIndex)
	}

	_, err = f.projects.CreateProject(f.ctx, admin, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.projects.CreateProject(f.ctx, auth.Employee("e1"), itemRefs(1))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestAssignProjectOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	f.seedEmployee(t, "e2", 0, false)
	p := f.assignedProject(t, "e1", 2, 5, 20)

	assert.Equal(t, model.ProjectStatusInProgress, p.Status)
	require.NotNil(t, p.Deadline)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), *p.Deadline)

	_, err := f.projects.AssignProject(f.ctx, admin, &AssignProjectRequest{ProjectID: p.ID, EmployeeID: "e2"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyAssigned)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestConcurrentAssignHasOneWinner(t *testing.T) {
	f := newFixture(t)
	p, err := f.projects.CreateProject(f.ctx, admin, itemRefs(1))
	require.NoError(t, err)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("e%d", i)
		f.seedEmployee(t, id, 0, false)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.projects.AssignProject(f.ctx, admin, &AssignProjectRequest{ProjectID: p.ID, EmployeeID: id})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrAlreadyAssigned)
	}
	assert.Equal(t, 1, wins)
}

func TestAllocateNextItemIsSequentialAndResumable(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 3, 5, 0)
	actor := auth.Employee("e1")

	alloc, err := f.projects.AllocateNextItem(f.ctx, actor, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, alloc.Item.SequenceIndex)
	assert.False(t, alloc.IsReview)

	// 未提交时重复领取返回同一条目
	again, err := f.projects.AllocateNextItem(f.ctx, actor, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, alloc.Item.ID, again.Item.ID)

	f.completeItems(t, "e1", p.ID, 3)

	alloc, err = f.projects.AllocateNextItem(f.ctx, actor, p.ID, 0)
	require.NoError(t, err)
	assert.True(t, alloc.IsReview)
	assert.Equal(t, 1, alloc.Item.SequenceIndex)
	assert.Equal(t, `{"label":"item-1"}`, alloc.Payload)
	assert.EqualValues(t, 3, alloc.CompletedCount)

	view, err := f.projects.AllocateNextItem(f.ctx, actor, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Item.SequenceIndex)

	_, err = f.projects.AllocateNextItem(f.ctx, auth.Employee("e2"), p.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestResubmissionOverwritesPayload(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 2, 5, 0)
	actor := auth.Employee("e1")

	items, err := f.store.Projects().ListItems(f.ctx, p.ID)
	require.NoError(t, err)
	var returned []*model.Completion
	for _, payload := range []string{"first", "second"} {
		c, err := f.projects.RecordCompletion(f.ctx, actor, &RecordCompletionRequest{ProjectID: p.ID, WorkItemID: items[0].ID, Payload: payload})
		require.NoError(t, err)
		returned = append(returned, c)
	}

	completions, err := f.store.Projects().ListCompletions(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, "second", completions[0].Payload)

	// 两次提交返回的都是库中那一条记录
	assert.Equal(t, completions[0].ID, returned[0].ID)
	assert.Equal(t, completions[0].ID, returned[1].ID)
	assert.Equal(t, "second", returned[1].Payload)
}

func TestRecordCompletionRejectsForeignItem(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 1, 5, 0)
	other, err := f.projects.CreateProject(f.ctx, admin, itemRefs(1))
	require.NoError(t, err)
	otherItems, err := f.store.Projects().ListItems(f.ctx, other.ID)
	require.NoError(t, err)

	_, err = f.projects.RecordCompletion(f.ctx, auth.Employee("e1"), &RecordCompletionRequest{ProjectID: p.ID, WorkItemID: otherItems[0].ID})
	assert.ErrorIs(t, err, apperr.ErrWorkItemNotFound)
}

func TestFinalizeLocksBatch(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 3, 5, 0)
	f.completeItems(t, "e1", p.ID, 1)

	_, err := f.projects.FinalizeProject(f.ctx, auth.Employee("e2"), p.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	done, err := f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)
	assert.True(t, done.IsFinalized)
	assert.Equal(t, model.ProjectStatusFinalizedPendingReview, done.Status)

	// 重复提交为空操作
	_, err = f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)

	items, err := f.store.Projects().ListItems(f.ctx, p.ID)
	require.NoError(t, err)
	_, err = f.projects.RecordCompletion(f.ctx, auth.Employee("e1"), &RecordCompletionRequest{ProjectID: p.ID, WorkItemID: items[1].ID})
	assert.ErrorIs(t, err, apperr.ErrBatchLocked)

	_, err = f.projects.AllocateNextItem(f.ctx, auth.Employee("e1"), p.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrBatchLocked)
}

func TestApprovePayoutScenario(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 10, 5, 20)
	f.completeItems(t, "e1", p.ID, 10)
	_, err := f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)

	res, err := f.projects.ApproveProject(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.CompletedCount)
	assert.True(t, res.PayoutAmount.Equal(dec(70)))
	assert.Equal(t, model.ProjectStatusCompleted, res.Project.Status)
	assert.True(t, res.Project.IsApproved)

	stored, err := f.store.Projects().GetByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.PayoutAmount.Equal(dec(70)))
	require.NotNil(t, stored.CompletedAt)

	assert.True(t, f.balance(t, "e1").Equal(dec(70)))
	payouts := f.transactionsOfType(t, "e1", model.TransactionTypeProjectPayout)
	require.Len(t, payouts, 1)
	require.NotNil(t, payouts[0].RelatedProjectID)
	assert.Equal(t, p.ID, *payouts[0].RelatedProjectID)
	f.requireConsistent(t, "e1")
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 4, 5, 20)
	f.completeItems(t, "e1", p.ID, 4)
	_, err := f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.projects.ApproveProject(f.ctx, admin, p.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	again, err := f.projects.ApproveProject(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyApproved)
	assert.True(t, again.PayoutAmount.Equal(dec(40)))

	assert.Len(t, f.transactionsOfType(t, "e1", model.TransactionTypeProjectPayout), 1)
	assert.True(t, f.balance(t, "e1").Equal(dec(40)))
}

func TestApproveRequiresFinalizedProject(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 2, 5, 0)

	_, err := f.projects.ApproveProject(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = f.projects.ApproveProject(f.ctx, auth.Employee("e1"), p.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.projects.ApproveProject(f.ctx, admin, "BATCH-MISSING")
	assert.ErrorIs(t, err, apperr.ErrProjectNotFound)
}

func TestRejectKeepsCompletionsWithoutLedgerEntry(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 6, 5, 20)
	f.completeItems(t, "e1", p.ID, 4)
	_, err := f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)

	rejected, err := f.projects.RejectProject(f.ctx, admin, p.ID, "labels are blurry")
	require.NoError(t, err)
	assert.False(t, rejected.IsFinalized)
	assert.False(t, rejected.IsApproved)
	assert.Equal(t, model.ProjectStatusRejected, rejected.Status)
	assert.Equal(t, "labels are blurry", rejected.AdminFeedback)

	list, err := f.store.Transactions().ListByEmployee(f.ctx, "e1", 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	subs, err := f.projects.ListSubmissions(f.ctx, admin, p.ID)
	require.NoError(t, err)
	require.Len(t, subs, 6)
	submitted := 0
	for _, s := range subs {
		if s.Completion != nil {
			submitted++
		}
	}
	assert.Equal(t, 4, submitted)

	// 返工：新的提交让项目回到进行中
	f.completeItems(t, "e1", p.ID, 1)
	st, err := f.projects.GetProjectStatus(f.ctx, auth.Employee("e1"), p.ID, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusInProgress, st.Status)
	assert.EqualValues(t, 5, st.CompletedCount)
	assert.True(t, st.ExpectedPayout.Equal(dec(45)))

	_, err = f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)
	res, err := f.projects.ApproveProject(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.True(t, res.PayoutAmount.Equal(dec(45)))
}

func TestRejectCompletedProjectConflicts(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 1, 5, 0)
	f.completeItems(t, "e1", p.ID, 1)
	_, err := f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)
	_, err = f.projects.ApproveProject(f.ctx, admin, p.ID)
	require.NoError(t, err)

	_, err = f.projects.RejectProject(f.ctx, admin, p.ID, "too late")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.True(t, f.balance(t, "e1").Equal(dec(5)))
}

func TestRejectRearmsExpiredDeadline(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 2, 5, 0)

	f.clock.Advance(25 * time.Hour)
	n, err := f.projects.ForceFinalizeExpired(f.ctx, auth.System(), f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rejected, err := f.projects.RejectProject(f.ctx, admin, p.ID, "no work submitted")
	require.NoError(t, err)
	require.NotNil(t, rejected.Deadline)
	assert.True(t, rejected.Deadline.After(f.clock.Now()))

	n, err = f.projects.ForceFinalizeExpired(f.ctx, auth.System(), f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestForceFinalizeExpired(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	expired := f.assignedProject(t, "e1", 2, 5, 0)
	f.clock.Advance(12 * time.Hour)
	fresh := f.assignedProject(t, "e1", 2, 5, 0)

	f.clock.Advance(13 * time.Hour)
	n, err := f.projects.ForceFinalizeExpired(f.ctx, auth.System(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.Projects().GetByID(f.ctx, expired.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFinalized)
	assert.Equal(t, model.ProjectStatusFinalizedPendingReview, got.Status)

	got, err = f.store.Projects().GetByID(f.ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFinalized)

	// 没有到期项目时静默返回
	n, err = f.projects.ForceFinalizeExpired(f.ctx, auth.System(), f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.projects.ForceFinalizeExpired(f.ctx, auth.Employee("e1"), f.clock.Now())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestListPendingReviewAndHistory(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	p := f.assignedProject(t, "e1", 3, 5, 20)
	f.completeItems(t, "e1", p.ID, 2)
	_, err := f.projects.FinalizeProject(f.ctx, auth.Employee("e1"), p.ID)
	require.NoError(t, err)

	review, err := f.projects.ListPendingReview(f.ctx, admin)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.EqualValues(t, 2, review[0].CompletedCount)
	assert.True(t, review[0].TotalDue.Equal(decimal.NewFromInt(30)))

	history, err := f.projects.ListProjectHistory(f.ctx, auth.Employee("e1"), "e1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, p.ID, history[0].ProjectID)
	assert.EqualValues(t, 3, history[0].TotalItems)

	_, err = f.projects.ListProjectHistory(f.ctx, auth.Employee("e2"), "e1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestListProjects(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)

	idle, err := f.projects.CreateProject(f.ctx, admin, itemRefs(2))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	active := f.assignedProject(t, "e1", 3, 5, 0)
	f.completeItems(t, "e1", active.ID, 2)

	list, err := f.projects.ListProjects(f.ctx, admin, "", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, active.ID, list[0].ProjectID)
	assert.Equal(t, model.ProjectStatusInProgress, list[0].Status)
	assert.Equal(t, int64(3), list[0].ItemCount)
	assert.Equal(t, int64(2), list[0].CompletedCount)
	assert.Equal(t, "user.e1", list[0].AssigneeUsername)
	assert.True(t, list[0].SalaryPerCompletion.Equal(dec(5)))

	assert.Equal(t, idle.ID, list[1].ProjectID)
	assert.Nil(t, list[1].AssignedTo)
	assert.Empty(t, list[1].AssigneeUsername)
	assert.Equal(t, int64(2), list[1].ItemCount)
	assert.Zero(t, list[1].CompletedCount)

	list, err = f.projects.ListProjects(f.ctx, admin, model.ProjectStatusUnassigned, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, idle.ID, list[0].ProjectID)

	list, err = f.projects.ListProjects(f.ctx, admin, "", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.projects.ListProjects(f.ctx, admin, "DONE", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.projects.ListProjects(f.ctx, auth.Employee("e1"), "", 0)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
