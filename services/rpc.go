package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/oscillatelabs/hasskill/bus"
)

var ErrTimeout = errors.New("timed out waiting for a reply")

// Ask emits a request on the bus and waits for the matching ".response"
// message. The subscription is taken out before emitting, so a fast
// responder cannot slip past, and the request carries a message_id that
// replies echo back, so concurrent requests of the same type cannot pick
// up each other's response.
func Ask(request *bus.Message, timeout time.Duration) (*bus.Message, error) {
	if request.Context == nil {
		request.Context = bus.Data{}
	}
	correlation := uuid.NewString()
	request.Context["message_id"] = correlation

	ch := Subscriber.Subscribe(request.Type + ".response")
	defer Subscriber.Close(ch)

	Publisher.Emit(request)

	deadline := time.After(timeout)
	for {
		select {
		case reply, ok := <-ch:
			if !ok {
				return nil, ErrTimeout
			}
			// replies from hosts that do not carry context pass through
			if id, _ := reply.Context["message_id"].(string); id != "" && id != correlation {
				continue
			}
			return reply, nil
		case <-deadline:
			return nil, ErrTimeout
		}
	}
}
