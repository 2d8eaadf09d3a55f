package sharedctx

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// LogObserver returns an observer that logs every context mutation.
func LogObserver(logger *zap.Logger) Observer {
	return func(key Key, snap Snapshot) {
		logger.Debug("context updated",
			zap.String("key", string(key)),
			zap.String("phase", string(snap.Phase)),
			zap.Strings("active_agents", snap.ActiveAgents),
		)
	}
}

// ChangeEvent is the payload published for each context mutation.
type ChangeEvent struct {
	Key           Key       `json:"key"`
	Phase         Phase     `json:"phase"`
	ActiveAgentID string    `json:"active_agent_id,omitempty"`
	ActiveAgents  []string  `json:"active_agents"`
	EmittedAt     time.Time `json:"emitted_at"`
}

// NATSNotifier publishes context change events to NATS so external
// observers (status displays, persistence) can follow the orchestrator
// without being wired into the process.
type NATSNotifier struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *zap.Logger
}

// NewNATSNotifier creates a notifier publishing under subjectPrefix
// (e.g. "conductord.context"). The subject is suffixed with the mutated key.
func NewNATSNotifier(conn *nats.Conn, subjectPrefix string, logger *zap.Logger) *NATSNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSNotifier{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}
}

// Observer returns the Observer to subscribe on a Store. Publish failures
// are logged and dropped: the store never depends on notification delivery.
func (n *NATSNotifier) Observer() Observer {
	return func(key Key, snap Snapshot) {
		event := ChangeEvent{
			Key:           key,
			Phase:         snap.Phase,
			ActiveAgentID: snap.ActiveAgentID,
			ActiveAgents:  snap.ActiveAgents,
			EmittedAt:     time.Now().UTC(),
		}

		payload, err := json.Marshal(event)
		if err != nil {
			n.logger.Warn("failed to encode context event", zap.Error(err))
			return
		}

		subject := n.subjectPrefix + "." + string(key)
		if err := n.conn.Publish(subject, payload); err != nil {
			n.logger.Warn("failed to publish context event",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}
}
