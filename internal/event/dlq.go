package event

import (
	"errors"

	"github.com/aws/aws-lambda-go/events"
)

// S3Record is the part of an S3 object-created record the DLQ report uses.
type S3Record struct {
	EventName string
	Bucket    string
	Key       string
}

// DLQEnvelope is one nested SNS notification found in a dead-letter payload.
// Its own message holds the S3 records of the template that failed.
type DLQEnvelope struct {
	MessageID string
	Records   []S3Record
}

// DecodeDLQ unwraps a dead-letter payload: an SNS event whose records each
// carry an S3 event.
func DecodeDLQ(payload string) ([]DLQEnvelope, error) {
	if payload == "" {
		return nil, errEmptyPayload
	}
	var outer events.SNSEvent
	if err := json.UnmarshalFromString(payload, &outer); err != nil {
		return nil, err
	}
	if outer.Records == nil {
		return nil, errors.New("missing Records")
	}

	out := make([]DLQEnvelope, 0, len(outer.Records))
	for _, rec := range outer.Records {
		var s3 events.S3Event
		if err := json.UnmarshalFromString(rec.SNS.Message, &s3); err != nil {
			return nil, err
		}
		env := DLQEnvelope{MessageID: rec.SNS.MessageID, Records: make([]S3Record, 0, len(s3.Records))}
		for _, r := range s3.Records {
			env.Records = append(env.Records, S3Record{
				EventName: r.EventName,
				Bucket:    r.S3.Bucket.Name,
				Key:       r.S3.Object.Key,
			})
		}
		out = append(out, env)
	}
	return out, nil
}
