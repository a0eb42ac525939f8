package chatv1

import (
	"anonchat/domain"
	"anonchat/domain/event"
	"anonchat/errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Identities travel as decimal strings inside structs:
// a protobuf number is a double and would round large identities.

func NewSubmitRequest(sender, text string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"sender": structpb.NewStringValue(sender),
		"text":   structpb.NewStringValue(text),
	}}
}

func ParseSubmitRequest(req *structpb.Struct) (sender, text string) {
	fields := req.GetFields()
	return fields["sender"].GetStringValue(), fields["text"].GetStringValue()
}

func NewHistoryRequest(after domain.ServerID, limit int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"after": structpb.NewStringValue(formatID(after)),
		"limit": structpb.NewNumberValue(float64(limit)),
	}}
}

func ParseHistoryRequest(req *structpb.Struct) (domain.ServerID, int, error) {
	fields := req.GetFields()
	after, err := parseID(fields["after"])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: after: %w", errors.ErrInvalidMessage, err)
	}
	return after, int(fields["limit"].GetNumberValue()), nil
}

func ToHistoryList(messages []domain.StoredMessage) *structpb.ListValue {
	return &structpb.ListValue{Values: lo.Map(messages, func(item domain.StoredMessage, _ int) *structpb.Value {
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"ID":     structpb.NewStringValue(formatID(item.ID)),
			"sender": structpb.NewStringValue(item.Sender),
			"text":   structpb.NewStringValue(item.Text),
		}})
	})}
}

func FromHistoryList(list *structpb.ListValue) ([]domain.StoredMessage, error) {
	messages := make([]domain.StoredMessage, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		fields := value.GetStructValue().GetFields()
		id, err := parseID(fields["ID"])
		if err != nil {
			return nil, err
		}
		messages = append(messages, domain.StoredMessage{
			ID:     id,
			Sender: fields["sender"].GetStringValue(),
			Text:   fields["text"].GetStringValue(),
		})
	}
	return messages, nil
}

// ToEventStruct builds the same envelope as event.Encode.
func ToEventStruct(e event.Event) (*structpb.Struct, error) {
	var data map[string]*structpb.Value
	switch evt := e.(type) {
	case event.NewMessage:
		data = map[string]*structpb.Value{
			"ID":     structpb.NewStringValue(formatID(evt.ID)),
			"sender": structpb.NewStringValue(evt.Sender),
			"text":   structpb.NewStringValue(evt.Text),
		}
	case event.MessageDelivered:
		data = map[string]*structpb.Value{"ID": structpb.NewStringValue(formatID(evt.ID))}
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"event": structpb.NewStringValue(string(e.Type())),
		"data":  structpb.NewStructValue(&structpb.Struct{Fields: data}),
	}}, nil
}

// FromEventStruct decodes an envelope with the same rules as event.Decode.
func FromEventStruct(s *structpb.Struct) (event.Event, error) {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMalformedEvent, err)
	}
	return event.Decode(raw)
}

func formatID(id domain.ServerID) string {
	return strconv.FormatInt(int64(id), 10)
}

// parseID accepts a decimal string or a number, a missing value is zero.
func parseID(value *structpb.Value) (domain.ServerID, error) {
	switch kind := value.GetKind().(type) {
	case nil:
		return 0, nil
	case *structpb.Value_StringValue:
		if kind.StringValue == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ID %q: %w", kind.StringValue, err)
		}
		return domain.ServerID(n), nil
	case *structpb.Value_NumberValue:
		return domain.ServerID(kind.NumberValue), nil
	default:
		return 0, fmt.Errorf("invalid ID of kind %T", kind)
	}
}
