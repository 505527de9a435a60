package broker

import (
	"sort"
	"time"

	"github.com/zllovesuki/signup/customer"

	extErrors "github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// RoutingKeyRegistered is used for events about newly created customers
const RoutingKeyRegistered = "customer.registered"

// EncodeRegistered builds the protobuf payload announcing a new customer
func EncodeRegistered(eventID string, attempt customer.Attempt) ([]byte, error) {
	failed := attempt.Result.FailedAttributes()
	keys := make([]interface{}, 0, len(failed))
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].(string) < keys[j].(string)
	})

	payload, err := structpb.NewStruct(map[string]interface{}{
		"event_id":            eventID,
		"type":                RoutingKeyRegistered,
		"customer_id":         attempt.Result.CustomerID,
		"email":               attempt.Email,
		"attributes_attached": attempt.Result.AttachedCount(),
		"attributes_failed":   keys,
		"occurred_at":         attempt.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot build event payload")
	}

	b, err := proto.Marshal(payload)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot encode message into bytes")
	}
	return b, nil
}
