package output

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Mirror copies every realtime event it observes to a destination. Its
// Observe method matches eventsync.Observer.
type Mirror struct {
	dest   Destination
	prefix string
	actor  func() string
	logger *slog.Logger
	now    func() time.Time
}

// NewMirror returns a mirror writing to dest. actor, when set, names the
// signed-in actor in each record.
func NewMirror(dest Destination, prefix string, actor func() string, logger *slog.Logger) *Mirror {
	return &Mirror{dest: dest, prefix: prefix, actor: actor, logger: logger, now: time.Now}
}

func (m *Mirror) Observe(event string, payload json.RawMessage) {
	rec := Record{Event: event, Timestamp: m.now().UnixMilli(), Payload: payload}
	if len(rec.Payload) == 0 {
		rec.Payload = json.RawMessage("null")
	}
	if m.actor != nil {
		rec.Actor = m.actor()
	}
	msg, err := json.Marshal(rec)
	if err != nil {
		m.logger.Warn("dropping event with invalid payload", "event", event, "error", err)
		return
	}
	if err := m.dest.WriteMessage(Topic(m.prefix, event), msg); err != nil {
		m.logger.Error("failed to mirror event", "event", event, "error", err)
	}
}

func (m *Mirror) Close() error {
	return m.dest.Close()
}
