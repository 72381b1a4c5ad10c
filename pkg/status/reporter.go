package status

import (
	"context"
	"log/slog"
	"sync"
)

// PublishFunc is handed to executors. Publishing never fails from the
// executor's point of view.
type PublishFunc func(ctx context.Context, status Status)

// NodeReporter publishes the status of one node during one execution. It
// enforces loading first, at most one terminal status and nothing after it.
type NodeReporter struct {
	publisher Publisher
	channel   string
	nodeID    string
	logger    *slog.Logger

	mu       sync.Mutex
	loading  bool
	terminal Status
}

func NewNodeReporter(publisher Publisher, channel, nodeID string, logger *slog.Logger) *NodeReporter {
	return &NodeReporter{
		publisher: publisher,
		channel:   channel,
		nodeID:    nodeID,
		logger:    logger,
	}
}

func (r *NodeReporter) Publish(ctx context.Context, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminal != "" {
		r.logger.DebugContext(ctx, "Ignoring status after terminal status",
			"node_id", r.nodeID, "status", status, "terminal", r.terminal)

		return
	}

	switch {
	case status == Loading && r.loading:
		return
	case status.IsTerminal() && !r.loading:
		r.send(ctx, Loading)
		r.loading = true
	}

	r.send(ctx, status)

	if status == Loading {
		r.loading = true
	}

	if status.IsTerminal() {
		r.terminal = status
	}
}

// Terminal returns the terminal status published so far, or "".
func (r *NodeReporter) Terminal() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.terminal
}

func (r *NodeReporter) send(ctx context.Context, status Status) {
	err := r.publisher.Publish(ctx, r.channel, newMessage(r.nodeID, status))
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to publish node status",
			"channel", r.channel, "node_id", r.nodeID, "status", status, "error", err)
	}
}
