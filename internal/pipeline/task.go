package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"asrbatch/internal/media"
	"asrbatch/internal/transcript"
)

// Status represents the lifecycle of a media task.
type Status string

const (
	StatusPending      Status = "pending"
	StatusNormalizing  Status = "normalizing"
	StatusTranscribing Status = "transcribing"
	StatusRendering    Status = "rendering"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:      {StatusNormalizing},
	StatusNormalizing:  {StatusTranscribing, StatusFailed},
	StatusTranscribing: {StatusRendering, StatusFailed},
	StatusRendering:    {StatusDone, StatusFailed},
}

func isValidTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Task tracks one source file through the pipeline.
type Task struct {
	Index      int
	SourcePath string
	Engine     string
	Format     transcript.Format
	UseCache   bool

	Status Status
	Reason error

	Audio        media.Audio
	OutputPath   string
	CacheHit     bool
	BackendCalls int
	Started      time.Time
	Finished     time.Time
}

func newTask(index int, source, engine string, format transcript.Format, useCache bool) *Task {
	return &Task{
		Index:      index,
		SourcePath: source,
		Engine:     engine,
		Format:     format,
		UseCache:   useCache,
		Status:     StatusPending,
		OutputPath: OutputPath(source, format),
	}
}

// advance moves the task to next, rejecting moves the lifecycle does not allow.
func (t *Task) advance(next Status) error {
	if !isValidTransition(t.Status, next) {
		return fmt.Errorf("invalid task transition %s -> %s", t.Status, next)
	}
	t.Status = next
	return nil
}

// fail ends the task in failed. A task that already reached a terminal state
// keeps it.
func (t *Task) fail(reason error) {
	if t.Status.Terminal() {
		return
	}
	t.Status = StatusFailed
	t.Reason = reason
}

// Name is the source file's base name, used in progress lines.
func (t *Task) Name() string {
	return filepath.Base(t.SourcePath)
}

// OutputPath returns the sibling path a transcript for source is written to.
func OutputPath(source string, format transcript.Format) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return base + format.Extension()
}
