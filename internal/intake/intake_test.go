package intake_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/intake"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Topic)
	}
	return out
}

func setup(t *testing.T) (*intake.Service, *repository.DB, *recorder) {
	t.Helper()
	db := testutil.NewDB(t)
	rec := &recorder{}
	svc, err := intake.NewService(db, rec, testutil.Logger(), intake.WithClock(testutil.NewClock().Now))
	require.NoError(t, err)
	return svc, db, rec
}

func TestSubmitFansOutOneItemPerSelectedProcess(t *testing.T) {
	svc, db, rec := setup(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, intake.Request{
		JobID:        "J-100",
		CustomerName: "Acme Foods",
		StartDate:    "2024-03-01",
		RequiredDate: "2024-03-10",
		SubJobs: []intake.SubJobInput{
			{SubJobID: "A", CardQuantity: intake.Q(500), Processes: map[string]bool{"Printing": true, "Pasting": true}},
			{SubJobID: "B", Processes: map[string]bool{"Printing": true, "Varnish": false}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Job card created successfully", res.Message)
	assert.Equal(t, 2, res.SubJobsCount)
	assert.Equal(t, 3, res.ProcessesCount)
	assert.NotEmpty(t, res.JobCode)

	items, err := db.Repos().WorkItems.List(ctx, repository.WorkItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	perSubJob := map[string]int{}
	for _, it := range items {
		assert.Equal(t, constants.WorkStatusPending, it.Status)
		assert.Nil(t, it.EmployeeCode)
		assert.Equal(t, "J-100", it.JobID)
		perSubJob[it.SubJobID]++
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, perSubJob)

	job, err := db.Repos().Jobs.Get(ctx, "J-100")
	require.NoError(t, err)
	assert.Equal(t, "Acme Foods", job.CustomerName)
	require.NotNil(t, job.RequiredDate)
	assert.Equal(t, "2024-03-10", job.RequiredDate.Format("2006-01-02"))

	assert.Equal(t, []string{notify.TopicJobs, notify.TopicWorkItems}, rec.topics())
}

func TestSubmitSkipsUnknownProcesses(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, intake.Request{
		JobID: "J-200",
		SubJobs: []intake.SubJobInput{
			{SubJobID: "A", Processes: map[string]bool{"Gilding": true}},
			{SubJobID: "B", Processes: map[string]bool{"Gilding": true, "Cutting": true}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SubJobsCount)
	assert.Equal(t, 1, res.ProcessesCount)

	subJobs, err := db.Repos().Jobs.ListSubJobs(ctx, []string{"J-200"})
	require.NoError(t, err)
	require.Len(t, subJobs, 2)
	assert.Equal(t, "A", subJobs[0].SubJobID)

	items, err := db.Repos().WorkItems.List(ctx, repository.WorkItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].SubJobID)
}

func TestSubmitWithoutSubJobs(t *testing.T) {
	svc, db, rec := setup(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, intake.Request{JobID: "J-300", CustomerName: "Solo"})
	require.NoError(t, err)
	assert.Equal(t, "Job card created successfully (no sub jobs)", res.Message)
	assert.Zero(t, res.SubJobsCount)
	assert.Zero(t, res.ProcessesCount)

	_, err = db.Repos().Jobs.Get(ctx, "J-300")
	require.NoError(t, err)
	assert.Equal(t, []string{notify.TopicJobs}, rec.topics())
}

func TestSubmitDuplicateJobIDWritesNothing(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, intake.Request{JobID: "J-400"})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, intake.Request{
		JobID: "J-400",
		SubJobs: []intake.SubJobInput{
			{SubJobID: "A", Processes: map[string]bool{"Printing": true}},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConflict))
	assert.Equal(t, common.CodeDuplicateJobID, common.CodeOf(err))

	subJobs, err := db.Repos().Jobs.ListSubJobs(ctx, []string{"J-400"})
	require.NoError(t, err)
	assert.Empty(t, subJobs)
	items, err := db.Repos().WorkItems.List(ctx, repository.WorkItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSubmitRejectsDuplicateSubJobIDBeforeWriting(t *testing.T) {
	svc, db, rec := setup(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, intake.Request{
		JobID: "J-500",
		SubJobs: []intake.SubJobInput{
			{SubJobID: "A"},
			{SubJobID: " A "},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "duplicates sub_jobs[0]")

	_, err = db.Repos().Jobs.Get(ctx, "J-500")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.Empty(t, rec.topics())
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  intake.Request
		want string
	}{
		{"missing job id", intake.Request{JobID: "  "}, "job_id is required"},
		{"bad start date", intake.Request{JobID: "J", StartDate: "01/03/2024"}, "start_date must be a date"},
		{"bad required date", intake.Request{JobID: "J", RequiredDate: "2024-13-01"}, "required_date must be a date"},
		{"missing sub job id", intake.Request{JobID: "J", SubJobs: []intake.SubJobInput{{}}}, "sub_jobs[0].sub_job_id is required"},
		{"negative quantity", intake.Request{JobID: "J", SubJobs: []intake.SubJobInput{{SubJobID: "A", ItemQuantity: intake.Q(-1)}}},
			"sub_jobs[0].item_quantity must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, common.CodeValidation, common.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSubmitJSON(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	body := []byte(`{
		"job_id": "J-600",
		"customer_name": "Paper Co",
		"start_date": "",
		"required_date": null,
		"sub_jobs": [
			{"sub_job_id": "A", "card_quantity": "250", "item_quantity": "", "processes": {"Foil": true}},
			{"sub_job_id": "B", "card_quantity": 10, "item_quantity": null}
		]
	}`)
	res, err := svc.SubmitJSON(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SubJobsCount)
	assert.Equal(t, 1, res.ProcessesCount)

	subJobs, err := db.Repos().Jobs.ListSubJobs(ctx, []string{"J-600"})
	require.NoError(t, err)
	require.Len(t, subJobs, 2)
	require.NotNil(t, subJobs[0].CardQuantity)
	assert.Equal(t, 250, *subJobs[0].CardQuantity)
	assert.Nil(t, subJobs[0].ItemQuantity)
	require.NotNil(t, subJobs[1].CardQuantity)
	assert.Equal(t, 10, *subJobs[1].CardQuantity)
}

func TestSubmitJSONSchemaErrors(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"job_id":`},
		{"not an object", `[]`},
		{"missing job id", `{"customer_name": "x"}`},
		{"job id wrong type", `{"job_id": 12}`},
		{"sub job missing id", `{"job_id": "J", "sub_jobs": [{"color": "red"}]}`},
		{"quantity not numeric", `{"job_id": "J", "sub_jobs": [{"sub_job_id": "A", "card_quantity": "lots"}]}`},
		{"process flag not boolean", `{"job_id": "J", "sub_jobs": [{"sub_job_id": "A", "processes": {"Foil": "yes"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitJSON(ctx, []byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrValidation))
			assert.Equal(t, common.CodeValidation, common.CodeOf(err))
		})
	}
}

func TestSubmitFanoutFailureRollsBackEverything(t *testing.T) {
	svc, db, rec := setup(t)
	ctx := context.Background()
	testutil.Exec(t, db, "DROP TABLE job_processes")

	_, err := svc.Submit(ctx, intake.Request{
		JobID: "J-700",
		SubJobs: []intake.SubJobInput{
			{SubJobID: "A", Processes: map[string]bool{"Printing": true}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeProcessFanoutFailed, common.CodeOf(err))
	assert.True(t, errors.Is(err, common.ErrDependency))

	_, err = db.Repos().Jobs.Get(ctx, "J-700")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	subJobs, err := db.Repos().Jobs.ListSubJobs(ctx, []string{"J-700"})
	require.NoError(t, err)
	assert.Empty(t, subJobs)
	assert.Empty(t, rec.topics())
}
