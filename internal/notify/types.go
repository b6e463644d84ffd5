// Package notify turns change notifications from the terminology repository
// into per-graph index maintenance calls.
//
// A Notification carries an event type and the nodes it touched. The
// Processor groups nodes by graph, splits each group into vocabulary and
// concept ids with a Classifier, and hands one indexer.AffectedNodes per
// graph to the indexer. Calls to Process are serialized.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
)

// Event type names as they appear on the wire.
const (
	NodeSavedEvent   = "NodeSavedEvent"
	NodeDeletedEvent = "NodeDeletedEvent"
)

// EventKind is the closed set of event types the processor knows about.
// Everything it does not recognise is EventUnknown.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventNodeSaved
	EventNodeDeleted
)

// ParseEventKind maps a wire name to its EventKind.
func ParseEventKind(name string) EventKind {
	switch name {
	case NodeSavedEvent:
		return EventNodeSaved
	case NodeDeletedEvent:
		return EventNodeDeleted
	default:
		return EventUnknown
	}
}

// String returns the wire name, or "unknown".
func (k EventKind) String() string {
	switch k {
	case EventNodeSaved:
		return NodeSavedEvent
	case EventNodeDeleted:
		return NodeDeletedEvent
	default:
		return "unknown"
	}
}

// Notification is one change message. Type is kept verbatim so unknown
// event names can still be logged.
type Notification struct {
	Type string `json:"type"`
	Body Body   `json:"body"`
}

// Kind returns the event kind of n.
func (n *Notification) Kind() EventKind {
	return ParseEventKind(n.Type)
}

// Body holds the affected nodes. Nodes may be empty.
type Body struct {
	Nodes []Node `json:"nodes" validate:"dive"`
}

// Node is one affected node.
type Node struct {
	ID   string   `json:"id" validate:"required"`
	Type NodeType `json:"type"`
}

// NodeType identifies a node's type and the graph it belongs to.
type NodeType struct {
	ID    string   `json:"id"`
	Graph GraphRef `json:"graph"`
}

// GraphRef references a graph by id.
type GraphRef struct {
	ID string `json:"id" validate:"required"`
}

// NewNode is a convenience constructor, mostly for tests and tooling.
func NewNode(id, typeID, graphID string) Node {
	return Node{ID: id, Type: NodeType{ID: typeID, Graph: GraphRef{ID: graphID}}}
}

// Decode reads one JSON notification from r. Unknown fields are ignored;
// the repository sends more than we need.
func Decode(r io.Reader) (*Notification, error) {
	var n Notification
	dec := json.NewDecoder(r)
	if err := dec.Decode(&n); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, termerrors.ValidationError("empty notification body", err)
		}
		return nil, termerrors.ValidationError(fmt.Sprintf("invalid notification JSON: %v", err), err)
	}
	return &n, nil
}
