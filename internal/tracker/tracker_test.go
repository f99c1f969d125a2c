package tracker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/intake"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/testutil"
	"github.com/joseph-ayodele/jobtracker/internal/tracker"
)

const printingID = 4

func setup(t *testing.T) (*tracker.Service, *repository.Repos, *testutil.Clock) {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	clock := testutil.NewClock()

	in, err := intake.NewService(db, nil, testutil.Logger(), intake.WithClock(clock.Now))
	require.NoError(t, err)
	_, err = in.Submit(ctx, intake.Request{
		JobID:        "J-1",
		CustomerName: "Acme Foods",
		SubJobs: []intake.SubJobInput{
			{SubJobID: "A", Description: "Cereal box", Processes: map[string]bool{"Printing": true, "Pasting": true}},
		},
	})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = in.Submit(ctx, intake.Request{
		JobID:        "J-2",
		CustomerName: "Blue Bakery",
		SubJobs: []intake.SubJobInput{
			{SubJobID: "A", Description: "Cake sleeve", Processes: map[string]bool{"Printing": true}},
		},
	})
	require.NoError(t, err)

	repos := db.Repos()
	return tracker.NewService(repos, nil, testutil.Logger(), tracker.WithClock(clock.Now)), repos, clock
}

func pid(n int) *int { return &n }

func find(t *testing.T, views []*entity.WorkItemView, jobID string) *entity.WorkItemView {
	t.Helper()
	for _, v := range views {
		if v.JobID == jobID {
			return v
		}
	}
	t.Fatalf("no work item for job %s", jobID)
	return nil
}

func TestListEnrichesAndFilters(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	views, err := svc.List(ctx, tracker.Query{ProcessID: pid(printingID)})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "J-2", views[0].JobID, "newest first")
	assert.Equal(t, "Blue Bakery", views[0].CustomerName)
	assert.Equal(t, "Printing", views[0].ProcessName)
	assert.Equal(t, "Cake sleeve", views[0].SubJobDescription)

	views, err = svc.List(ctx, tracker.Query{ProcessID: pid(printingID), Search: "acme"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "J-1", views[0].JobID)

	views, err = svc.List(ctx, tracker.Query{ProcessID: pid(printingID), Search: "j-2"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Blue Bakery", views[0].CustomerName)

	views, err = svc.List(ctx, tracker.Query{Status: constants.FilterAll})
	require.NoError(t, err)
	assert.Len(t, views, 3)

	views, err = svc.List(ctx, tracker.Query{ProcessID: pid(printingID), Status: constants.FilterCompleted})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestCompleteTwiceOverwritesActor(t *testing.T) {
	svc, _, clock := setup(t)
	ctx := context.Background()
	key := repository.WorkItemKey{JobID: "J-1", SubJobID: "A", ProcessID: printingID}

	first := clock.Advance(time.Minute)
	require.NoError(t, svc.Complete(ctx, key, "E100"))
	second := clock.Advance(time.Minute)
	require.NoError(t, svc.Complete(ctx, key, "E200"))

	views, err := svc.List(ctx, tracker.Query{ProcessID: pid(printingID), Status: constants.FilterCompleted})
	require.NoError(t, err)
	got := find(t, views, "J-1")
	assert.Equal(t, constants.WorkStatusCompleted, got.Status)
	require.NotNil(t, got.EmployeeCode)
	assert.Equal(t, "E200", *got.EmployeeCode)
	assert.True(t, got.UpdatedAt.Equal(second))
	assert.False(t, got.UpdatedAt.Equal(first))
}

func TestRevertThenCompleteKeepsOnlyLatest(t *testing.T) {
	svc, _, clock := setup(t)
	ctx := context.Background()

	views, err := svc.List(ctx, tracker.Query{ProcessID: pid(printingID), Search: "J-1"})
	require.NoError(t, err)
	id := find(t, views, "J-1").ID

	clock.Advance(time.Minute)
	require.NoError(t, svc.CompleteByID(ctx, id, "E100"))

	clock.Advance(time.Minute)
	require.NoError(t, svc.Revert(ctx, id))
	views, err = svc.List(ctx, tracker.Query{ProcessID: pid(printingID), Status: constants.FilterPending, Search: "J-1"})
	require.NoError(t, err)
	reverted := find(t, views, "J-1")
	assert.Equal(t, constants.WorkStatusPending, reverted.Status)
	assert.Nil(t, reverted.EmployeeCode)

	last := clock.Advance(time.Minute)
	require.NoError(t, svc.CompleteByID(ctx, id, "E300"))
	views, err = svc.List(ctx, tracker.Query{ProcessID: pid(printingID), Status: constants.FilterCompleted})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, id, views[0].ID)
	require.NotNil(t, views[0].EmployeeCode)
	assert.Equal(t, "E300", *views[0].EmployeeCode)
	assert.True(t, views[0].UpdatedAt.Equal(last))
}

func TestTransitionErrors(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	err := svc.Complete(ctx, repository.WorkItemKey{JobID: "J-1", SubJobID: "Z", ProcessID: printingID}, "E1")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	err = svc.Complete(ctx, repository.WorkItemKey{JobID: "J-1", SubJobID: "A", ProcessID: printingID}, " ")
	assert.True(t, errors.Is(err, common.ErrValidation))

	err = svc.Complete(ctx, repository.WorkItemKey{JobID: "J-1", SubJobID: "A"}, "E1")
	assert.True(t, errors.Is(err, common.ErrValidation))

	assert.True(t, errors.Is(svc.CompleteByID(ctx, "missing", "E1"), common.ErrNotFound))
	assert.True(t, errors.Is(svc.Revert(ctx, "missing"), common.ErrNotFound))
	assert.True(t, errors.Is(svc.Revert(ctx, ""), common.ErrValidation))
}

func TestFilterIgnoresBlankSearch(t *testing.T) {
	views := []*entity.WorkItemView{
		{WorkItem: entity.WorkItem{JobID: "J-9"}, CustomerName: "Zed"},
	}
	assert.Len(t, tracker.Filter(views, "   "), 1)
	assert.Empty(t, tracker.Filter(views, "acme"))
	assert.Len(t, tracker.Filter(views, "ZE"), 1)
}
