package treemodel

// StreamEventType tags the variant of a TreeStreamEvent's Data payload.
// Represented as a discriminated union (a string tag plus an `any` data
// field) rather than a type hierarchy, so new event kinds marshal to
// JSON without an interface-per-variant dance.
type StreamEventType string

const (
	EventTreeStarted    StreamEventType = "tree_started"
	EventNodeProcessing StreamEventType = "node_processing"
	EventNodeCompleted  StreamEventType = "node_completed"
	EventDepthCompleted StreamEventType = "depth_completed"
	EventTreeCompleted  StreamEventType = "tree_completed"
	EventError          StreamEventType = "error"
)

// TreeStreamEvent is the wire shape emitted by the scheduler and
// serialized by the stream endpoint as `data: <json>\n\n`.
type TreeStreamEvent struct {
	Type StreamEventType `json:"type"`
	Data any             `json:"data"`
}

// TreeStartedData is the payload for EventTreeStarted.
type TreeStartedData struct {
	Seed EventNode `json:"seed"`
}

// NodeProcessingData is the payload for EventNodeProcessing.
type NodeProcessingData struct {
	NodeID string `json:"nodeId"`
	Depth  int    `json:"depth"`
	Event  string `json:"event"`
}

// NodeCompletedData is the payload for EventNodeCompleted.
type NodeCompletedData struct {
	Node     EventNode   `json:"node"`
	Children []EventNode `json:"children"`
}

// DepthCompletedData is the payload for EventDepthCompleted.
type DepthCompletedData struct {
	Depth          int `json:"depth"`
	NodesProcessed int `json:"nodesProcessed"`
}

// TreeCompletedData is the payload for EventTreeCompleted.
type TreeCompletedData struct {
	TotalNodes int   `json:"totalNodes"`
	DurationMS int64 `json:"duration"`
}

// ErrorData is the payload for EventError.
type ErrorData struct {
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

func newEvent(t StreamEventType, data any) TreeStreamEvent {
	return TreeStreamEvent{Type: t, Data: data}
}

func NewTreeStartedEvent(seed EventNode) TreeStreamEvent {
	return newEvent(EventTreeStarted, TreeStartedData{Seed: seed})
}

func NewNodeProcessingEvent(nodeID string, depth int, event string) TreeStreamEvent {
	return newEvent(EventNodeProcessing, NodeProcessingData{NodeID: nodeID, Depth: depth, Event: event})
}

func NewNodeCompletedEvent(node EventNode, children []EventNode) TreeStreamEvent {
	return newEvent(EventNodeCompleted, NodeCompletedData{Node: node, Children: children})
}

func NewDepthCompletedEvent(depth, nodesProcessed int) TreeStreamEvent {
	return newEvent(EventDepthCompleted, DepthCompletedData{Depth: depth, NodesProcessed: nodesProcessed})
}

func NewTreeCompletedEvent(totalNodes int, duration int64) TreeStreamEvent {
	return newEvent(EventTreeCompleted, TreeCompletedData{TotalNodes: totalNodes, DurationMS: duration})
}

func NewErrorEvent(message, nodeID string) TreeStreamEvent {
	return newEvent(EventError, ErrorData{Message: message, NodeID: nodeID})
}
