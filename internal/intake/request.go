package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Request is a job card submission.
type Request struct {
	JobID        string        `json:"job_id"`
	CustomerName string        `json:"customer_name"`
	StartDate    string        `json:"start_date"`
	RequiredDate string        `json:"required_date"`
	SubJobs      []SubJobInput `json:"sub_jobs"`
}

type SubJobInput struct {
	SubJobID     string   `json:"sub_job_id"`
	Color        string   `json:"color"`
	CardSize     string   `json:"card_size"`
	CardQuantity Quantity `json:"card_quantity"`
	ItemQuantity Quantity `json:"item_quantity"`
	Description  string   `json:"description"`
	// Processes maps a process name to whether it was selected.
	Processes map[string]bool `json:"processes"`
}

// SelectedProcesses returns the names mapped to true.
func (s SubJobInput) SelectedProcesses() []string {
	var out []string
	for name, on := range s.Processes {
		if on {
			out = append(out, name)
		}
	}
	return out
}

// Quantity is an optional integer that also accepts numeric strings, since form inputs
// often arrive as text. Null and "" mean unset.
type Quantity struct {
	Value *int
}

// Q builds a set Quantity.
func Q(n int) Quantity {
	return Quantity{Value: &n}
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		q.Value = nil
		return nil
	}
	var raw string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			q.Value = nil
			return nil
		}
	} else {
		raw = string(b)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("quantity %q is not an integer", raw)
	}
	q.Value = &n
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.Value == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(*q.Value)), nil
}
