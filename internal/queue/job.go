package queue

import "github.com/google/uuid"

// NewJob wraps a request body and its forwarded headers in a Job with a
// fresh ID, grounded on the original gateway's new_job helper.
func NewJob(request map[string]any, headers map[string]string) Job {
	return Job{ID: uuid.New().String(), Request: request, Headers: headers}
}
