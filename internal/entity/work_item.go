package entity

import (
	"time"

	"github.com/joseph-ayodele/jobtracker/constants"
)

// WorkItem ties one sub-job to one process.
type WorkItem struct {
	ID           string               `json:"id"`
	JobID        string               `json:"job_id"`
	SubJobID     string               `json:"sub_job_id"`
	ProcessID    int                  `json:"process_id"`
	Status       constants.WorkStatus `json:"status"`
	EmployeeCode *string              `json:"employee_code"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// WorkItemView is a work item enriched for display.
type WorkItemView struct {
	WorkItem
	CustomerName      string `json:"customer_name"`
	ProcessName       string `json:"process_name"`
	SubJobDescription string `json:"sub_job_description"`
}
