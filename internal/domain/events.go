package domain

// CommandType identifies a command sent into the engine
type CommandType string

// Command types
const (
	CommandScan      CommandType = "Scan"
	CommandRefresh   CommandType = "Refresh"
	CommandRunAction CommandType = "RunAction"
	CommandShutdown  CommandType = "Shutdown"
)

// Command is the interface for all engine commands
type Command interface {
	CommandType() CommandType
}

// ScanCommand discovers repositories under Root and computes their status
type ScanCommand struct {
	Root string
}

func (c ScanCommand) CommandType() CommandType { return CommandScan }

// RefreshCommand recomputes the status of already known repositories
type RefreshCommand struct {
	Repos []RepoRef
}

func (c RefreshCommand) CommandType() CommandType { return CommandRefresh }

// RunActionCommand runs a pull or push in the repository at Path
type RunActionCommand struct {
	Path   string
	Action Action
}

func (c RunActionCommand) CommandType() CommandType { return CommandRunAction }

// ShutdownCommand stops the engine at once: the batch in flight is
// abandoned and queued commands are discarded
type ShutdownCommand struct{}

func (c ShutdownCommand) CommandType() CommandType { return CommandShutdown }

// EventType represents the type of engine event
type EventType string

// Event types
const (
	EventProgress        EventType = "Progress"
	EventScanComplete    EventType = "ScanComplete"
	EventRefreshComplete EventType = "RefreshComplete"
	EventActionResult    EventType = "ActionResult"
)

// Event is the interface for all events emitted by the engine
type Event interface {
	Type() EventType
}

// ProgressEvent reports overall progress of a scan or refresh in [0,1]
type ProgressEvent struct {
	Ratio float64
}

func (e ProgressEvent) Type() EventType { return EventProgress }

// ScanCompleteEvent carries the statuses of all discovered repositories,
// in discovery order
type ScanCompleteEvent struct {
	Statuses []RepoStatus
}

func (e ScanCompleteEvent) Type() EventType { return EventScanComplete }

// RefreshCompleteEvent carries refreshed statuses in request order
type RefreshCompleteEvent struct {
	Statuses []RepoStatus
}

func (e RefreshCompleteEvent) Type() EventType { return EventRefreshComplete }

// ActionResultEvent is emitted when a pull or push finishes
type ActionResultEvent struct {
	Path    string
	Action  Action
	Outcome Outcome
}

func (e ActionResultEvent) Type() EventType { return EventActionResult }
