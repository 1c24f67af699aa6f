package upload

import (
	"context"
	"fmt"
	"math"
	"time"
)

type Status string

// Task statuses
const (
	Pending   Status = "pending"
	Uploading Status = "uploading"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
)

// Task is one upload request of a batch.
type Task struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Queue is an ordered batch of tagged upload tasks.
type Queue struct {
	Tasks []Task `json:"tasks"`
}

// QueueFromReview queues one task per reviewed subject, in order.
func QueueFromReview(r Review) Queue {
	q := Queue{Tasks: make([]Task, 0, len(r.Items))}
	for _, it := range r.Items {
		q.Tasks = append(q.Tasks, Task{ID: it.EntryID, Name: it.Subject, Status: Pending})
	}
	return q
}

// RetryFailed puts the failed tasks back in the queue and returns how many were requeued.
func (q *Queue) RetryFailed() int {
	var n int
	for i := range q.Tasks {
		if q.Tasks[i].Status == Failed {
			q.Tasks[i].Status = Pending
			q.Tasks[i].Reason = ""
			n++
		}
	}
	return n
}

func (q Queue) Count(s Status) int {
	var n int
	for _, t := range q.Tasks {
		if t.Status == s {
			n++
		}
	}
	return n
}

func (q Queue) Failed() []Task {
	var tasks []Task
	for _, t := range q.Tasks {
		if t.Status == Failed {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

func (q Queue) Done() bool {
	return len(q.Tasks) > 0 && q.Count(Succeeded) == len(q.Tasks)
}

type (
	Progress struct {
		Completed int
		Total     int
		Task      Task
	}

	// UploadFunc sends one task to the backend.
	UploadFunc func(ctx context.Context, t Task) error

	Result struct {
		Succeeded int
		Total     int
		Failed    []Task
	}

	// Runner uploads the pending tasks of a queue one after the other.
	Runner struct {
		// Pause is waited between two requests.
		Pause      time.Duration
		Sleep      func(ctx context.Context, d time.Duration) error // mockable
		OnProgress func(Progress)
	}
)

// Percent is (completed/total)*100, rounded.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
}

func (r Result) AllSucceeded() bool {
	return r.Total > 0 && r.Succeeded == r.Total
}

func (r Result) Message() string {
	return fmt.Sprintf("%d/%d uploaded", r.Succeeded, r.Total)
}

// FailedNames lists the names of the failed tasks.
func (r Result) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for _, t := range r.Failed {
		names = append(names, t.Name)
	}
	return names
}

// Run uploads every pending task sequentially: a failure is recorded on its task and the queue goes on.
// It only stops early when ctx is done; the remaining tasks stay pending.
func (r Runner) Run(ctx context.Context, q *Queue, upload UploadFunc) (Result, error) {
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var idxs []int
	for i, t := range q.Tasks {
		if t.Status == Pending {
			idxs = append(idxs, i)
		}
	}
	res := Result{Total: len(idxs)}

	for n, i := range idxs {
		if n > 0 && r.Pause > 0 {
			if err := sleep(ctx, r.Pause); err != nil {
				return res, err
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		task := &q.Tasks[i]
		task.Status = Uploading
		if err := upload(ctx, *task); err != nil {
			task.Status = Failed
			task.Reason = err.Error()
			res.Failed = append(res.Failed, *task)
		} else {
			task.Status = Succeeded
			res.Succeeded++
		}

		if r.OnProgress != nil {
			r.OnProgress(Progress{Completed: n + 1, Total: res.Total, Task: *task})
		}
	}
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
