package entity

import (
	"time"
)

// Job is a job card as created by intake.
type Job struct {
	JobID        string     `json:"job_id"`
	JobCode      string     `json:"job_code"`
	CustomerName string     `json:"customer_name"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	RequiredDate *time.Time `json:"required_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SubJob is a line of a job card.
type SubJob struct {
	SubJobCode   string    `json:"sub_job_code"`
	SubJobID     string    `json:"sub_job_id"`
	JobID        string    `json:"job_id"`
	JobCode      string    `json:"job_code"`
	Color        string    `json:"color"`
	CardSize     string    `json:"card_size"`
	CardQuantity *int      `json:"card_quantity"`
	ItemQuantity *int      `json:"item_quantity"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// JobDetail is a job together with its sub-jobs.
type JobDetail struct {
	Job     *Job      `json:"job"`
	SubJobs []*SubJob `json:"sub_jobs"`
}

// Process is a named production step.
type Process struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
