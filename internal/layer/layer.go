package layer

import (
	"errors"
	"fmt"

	"zipdive/internal/archive"
)

// New returns a layer in the Searching state.
func New(depth int, inputDir, outputDir string) *Layer {
	return &Layer{
		Depth:     depth,
		InputDir:  inputDir,
		OutputDir: outputDir,
		State:     StateSearching,
	}
}

// Apply advances the state machine by one event and reports whether the
// layer changed. Events for a terminal layer, and events that do not fit the
// current state, are ignored, except that a failed layer still records the
// outcome of extractions that were already running.
func (l *Layer) Apply(ev Event) bool {
	if l.State == StateError && ev.Kind == EventExtracted {
		return l.complete(ev)
	}
	if l.State.Terminal() {
		return false
	}
	if ev.Kind == EventFailed {
		l.fail(ev.Error)
		return true
	}

	switch l.State {
	case StateSearching:
		switch ev.Kind {
		case EventEmptyArchives:
			l.State = StateEmptyArchives
			return true
		case EventSearching:
			l.populate(ev.Archives)
			return true
		}
	case StateZipping:
		switch ev.Kind {
		case EventExtracted:
			return l.complete(ev)
		case EventLayerFinished:
			if l.FinishedCount != len(l.Tasks) {
				l.fail(fmt.Sprintf("layer finished with %d of %d files reported", l.FinishedCount, len(l.Tasks)))
				return true
			}
			l.State = StateFinished
			return true
		}
	}
	return false
}

// populate fills the task list once, at the Searching to Zipping transition.
func (l *Layer) populate(archives []string) {
	if len(archives) == 0 {
		l.State = StateEmptyArchives
		return
	}
	l.Tasks = make([]FileTask, len(archives))
	for i, source := range archives {
		l.Tasks[i] = FileTask{
			SourcePath:  source,
			DisplayPath: archive.Rebase(l.InputDir, source, ""),
			OutputDir:   archive.DestinationDir(l.InputDir, source, l.OutputDir),
			State:       FileRunning,
		}
	}
	l.State = StateZipping
}

func (l *Layer) complete(ev Event) bool {
	if ev.FileIndex < 0 || ev.FileIndex >= len(l.Tasks) {
		return false
	}
	task := &l.Tasks[ev.FileIndex]
	if task.State != FileRunning {
		return false
	}

	l.FinishedCount++
	if ev.Err == nil && ev.Error == "" {
		task.State = FileFinished
		return true
	}
	task.State = FileError
	task.Error = ev.Error
	// A missing output directory means the tree itself is broken.
	if errors.Is(ev.Err, archive.ErrIO) && l.State != StateError {
		l.fail(ev.Error)
	}
	return true
}

func (l *Layer) fail(msg string) {
	l.State = StateError
	l.Error = msg
}

// Progress is the fraction of tasks that have reported, in [0, 1].
func (l Layer) Progress() float64 {
	if len(l.Tasks) == 0 {
		if l.State == StateFinished || l.State == StateEmptyArchives {
			return 1
		}
		return 0
	}
	return float64(l.FinishedCount) / float64(len(l.Tasks))
}

// FailedTasks returns the tasks that ended in FileError.
func (l Layer) FailedTasks() []FileTask {
	var failed []FileTask
	for _, task := range l.Tasks {
		if task.State == FileError {
			failed = append(failed, task)
		}
	}
	return failed
}

// Clone returns a deep copy safe to hand to other goroutines.
func (l *Layer) Clone() Layer {
	cp := *l
	cp.Tasks = append([]FileTask(nil), l.Tasks...)
	return cp
}
