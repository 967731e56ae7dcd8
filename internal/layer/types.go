package layer

// State is the lifecycle of one layer.
type State string

const (
	StateSearching     State = "searching"
	StateZipping       State = "zipping"
	StateFinished      State = "finished"
	StateError         State = "error"
	StateEmptyArchives State = "empty_archives"
)

// Terminal reports whether no further event can change a layer in this state.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateError || s == StateEmptyArchives
}

type FileState string

const (
	FileRunning  FileState = "running"
	FileFinished FileState = "finished"
	FileError    FileState = "error"
)

// FileTask is the extraction of one archive found in a layer.
type FileTask struct {
	SourcePath  string    `json:"source_path"`
	DisplayPath string    `json:"display_path"`
	OutputDir   string    `json:"output_dir"`
	State       FileState `json:"state"`
	Error       string    `json:"error,omitempty"`
}

// Layer is one scan-and-extract pass at a given depth.
type Layer struct {
	Depth         int        `json:"depth"`
	InputDir      string     `json:"input_dir"`
	OutputDir     string     `json:"output_dir"`
	Tasks         []FileTask `json:"tasks"`
	FinishedCount int        `json:"finished_count"`
	State         State      `json:"state"`
	Error         string     `json:"error,omitempty"`
}

type EventKind string

const (
	EventEmptyArchives EventKind = "empty_archives"
	EventSearching     EventKind = "searching"
	EventExtracted     EventKind = "extracted"
	EventLayerFinished EventKind = "layer_finished"
	EventFailed        EventKind = "failed"
)

// Event is one progress report of a running layer. Per layer the stream is
// either EmptyArchives alone, or Searching, any number of Extracted, then
// LayerFinished. Failed may cut the stream short.
type Event struct {
	Layer     int       `json:"layer"`
	Kind      EventKind `json:"kind"`
	Archives  []string  `json:"archives,omitempty"`
	FileIndex int       `json:"file_index"`
	Error     string    `json:"error,omitempty"`
	Err       error     `json:"-"`
}

func emptyArchivesEvent(depth int) Event {
	return Event{Layer: depth, Kind: EventEmptyArchives}
}

func searchingEvent(depth int, archives []string) Event {
	return Event{Layer: depth, Kind: EventSearching, Archives: archives}
}

func extractedEvent(depth, index int, err error) Event {
	ev := Event{Layer: depth, Kind: EventExtracted, FileIndex: index, Err: err}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func layerFinishedEvent(depth int) Event {
	return Event{Layer: depth, Kind: EventLayerFinished}
}

func failedEvent(depth int, err error) Event {
	return Event{Layer: depth, Kind: EventFailed, Err: err, Error: err.Error()}
}
