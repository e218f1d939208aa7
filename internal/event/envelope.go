package event

import (
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

const (
	EnvelopeNotification             = "Notification"
	EnvelopeSubscriptionConfirmation = "SubscriptionConfirmation"
	EnvelopeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// Envelope is the JSON document SNS posts to HTTP(S) subscribers and writes
// into SQS queues (unless raw message delivery is enabled).
type Envelope struct {
	Type              string                       `json:"Type"`
	MessageID         string                       `json:"MessageId"`
	TopicArn          string                       `json:"TopicArn"`
	Subject           string                       `json:"Subject,omitempty"`
	Message           string                       `json:"Message"`
	Timestamp         string                       `json:"Timestamp"`
	SubscribeURL      string                       `json:"SubscribeURL,omitempty"`
	Token             string                       `json:"Token,omitempty"`
	MessageAttributes map[string]EnvelopeAttribute `json:"MessageAttributes,omitempty"`
}

type EnvelopeAttribute struct {
	Type  string `json:"Type"`
	Value string `json:"Value"`
}

func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if len(body) == 0 {
		return env, errEmptyPayload
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Record converts the envelope into the record shape Lambda delivers, so the
// HTTP and queue front ends share one handling path.
func (e Envelope) Record() Record {
	attrs := make(map[string]interface{}, len(e.MessageAttributes))
	for k, v := range e.MessageAttributes {
		attrs[k] = map[string]interface{}{"Type": v.Type, "Value": v.Value}
	}
	ts, _ := time.Parse(time.RFC3339, e.Timestamp)
	return Record{
		EventSource:  "aws:sns",
		EventVersion: "1.0",
		SNS: events.SNSEntity{
			MessageID:         e.MessageID,
			Type:              e.Type,
			TopicArn:          e.TopicArn,
			Subject:           e.Subject,
			Message:           e.Message,
			Timestamp:         ts,
			MessageAttributes: attrs,
		},
	}
}

// Single wraps one record into a batch.
func Single(r Record) Batch {
	return Batch{Records: []Record{r}}
}

// DecodeBatch accepts either a Lambda SNS event ({"Records":[...]}) or a
// single SNS envelope and returns it as a batch.
func DecodeBatch(body []byte) (Batch, error) {
	var shape struct {
		Records []Record `json:"Records"`
		Type    string   `json:"Type"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return Batch{}, err
	}
	if shape.Records != nil {
		return Batch{Records: shape.Records}, nil
	}
	if shape.Type == "" {
		return Batch{}, errors.New("input is neither an SNS event nor an SNS envelope")
	}
	env, err := DecodeEnvelope(body)
	if err != nil {
		return Batch{}, err
	}
	return Single(env.Record()), nil
}
