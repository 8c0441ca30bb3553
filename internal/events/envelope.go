package events

import (
	"time"

	"github.com/kestrelbank/ledger-service/internal/domain"
)

// Envelope is the integration-event shape published to other systems. The
// subject doubles as the routing key; every payload value is a string so
// consumers never depend on this service's internal types.
type Envelope struct {
	Subject string            `json:"subject"`
	Data    map[string]string `json:"data"`
}

// Translate converts a domain event into its integration envelope. The
// account id, event id and timestamp join the event's own payload so the
// envelope is self-describing.
func Translate(event domain.Event) Envelope {
	data := make(map[string]string, len(event.Data)+3)
	for k, v := range event.Data {
		data[k] = v
	}
	data["accountId"] = event.AccountID
	data["eventId"] = event.ID
	data["occurredAt"] = event.OccurredAt.Format(time.RFC3339Nano)
	return Envelope{Subject: event.Subject, Data: data}
}
