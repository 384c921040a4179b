package coordinator

import (
	"fmt"
	"strings"
	"time"
)

// Message is one queued inbound message: the opaque platform event plus the
// text the platform adapter extracted from it. Immutable once created.
type Message struct {
	Raw        interface{}
	Text       string
	ReceivedAt time.Time
}

// Batch is an ordered group of messages (oldest first) produced for one
// coordinator key. Summary describes messages displaced by the drop policy,
// empty when nothing was dropped. A batch is consumed exactly once by the
// handler and then discarded.
type Batch struct {
	Key      string
	Messages []Message
	Summary  string
}

// Size returns the number of messages in the batch.
func (b *Batch) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Messages)
}

// BuildCollectMessage renders a batch as a single user turn: a numbered list
// of the messages with the drop summary appended at the end.
func BuildCollectMessage(batch *Batch) string {
	if batch == nil || len(batch.Messages) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, msg := range batch.Messages {
		fmt.Fprintf(&sb, "Message #%d: %s\n", i+1, msg.Text)
	}
	if batch.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(batch.Summary)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func dropSummary(dropped int) string {
	if dropped <= 0 {
		return ""
	}
	if dropped == 1 {
		return "1 message dropped"
	}
	return fmt.Sprintf("%d messages dropped", dropped)
}
