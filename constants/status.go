package constants

// WorkStatus is the canonical status for rows in job_processes.
type WorkStatus string

// Stable values (store these exact strings in DB).
const (
	WorkStatusPending   WorkStatus = "pending"
	WorkStatusCompleted WorkStatus = "completed"
)

// StatusFilter narrows work item listings.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = "pending"
	FilterCompleted StatusFilter = "completed"
)

// StatusFilterValues lists the accepted status filter inputs.
func StatusFilterValues() []string {
	return []string{string(FilterAll), string(FilterPending), string(FilterCompleted)}
}
