// Package status streams per-node execution status to observers.
//
// Every node type has its own channel (for example "whatsapp-execution")
// carrying a single "status" topic. Messages are delivered at least once and
// may arrive out of order; observers keep the latest message per node.
package status

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/dukex/nodebase/pkg/models"
)

// Topic is the only topic carried by a node-type channel.
const Topic = "status"

type Status string

const (
	// Initial is what observers report before any message arrives.
	Initial Status = "initial"
	Loading Status = "loading"
	Success Status = "success"
	Error   Status = "error"
)

func (s Status) IsTerminal() bool {
	return s == Success || s == Error
}

// Message is the status payload.
type Message struct {
	NodeID    string    `json:"nodeId"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint64    `json:"sequence"`
}

// Newer reports whether m should replace other as a node's latest status.
func (m Message) Newer(other Message) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.After(other.Timestamp)
	}

	return m.Sequence > other.Sequence
}

var sequence atomic.Uint64

func newMessage(nodeID string, status Status) Message {
	return Message{
		NodeID:    nodeID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Sequence:  sequence.Add(1),
	}
}

// ChannelName returns the channel that carries status for a node type. The
// INITIAL placeholder shares the manual trigger channel.
func ChannelName(nodeType models.NodeType) string {
	if nodeType == models.NodeTypeInitial {
		nodeType = models.NodeTypeManualTrigger
	}

	return strings.ToLower(strings.ReplaceAll(string(nodeType), "_", "-")) + "-execution"
}

// Channels lists every distinct channel name.
func Channels() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(models.NodeTypes()))

	for _, nodeType := range models.NodeTypes() {
		name := ChannelName(nodeType)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return names
}

// Latest returns the newest message for nodeID.
func Latest(messages []Message, nodeID string) (Message, bool) {
	var (
		latest Message
		found  bool
	)

	for _, msg := range messages {
		if msg.NodeID != nodeID {
			continue
		}

		if !found || msg.Newer(latest) {
			latest = msg
			found = true
		}
	}

	return latest, found
}
