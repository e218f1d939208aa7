package event

import (
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Batch is the inbound notification batch. Records are handled in order.
type Batch = events.SNSEvent

// Record is one SNS notification record; SNS.Message carries the payload.
type Record = events.SNSEventRecord

// Kind selects how a record payload is decoded and rendered.
type Kind string

const (
	KindCodeBuild      Kind = "codebuild"
	KindCloudFormation Kind = "cloudformation"
	KindSNSError       Kind = "snserror"
	KindDLQError       Kind = "dlqerror"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindCodeBuild, nil
	case KindCodeBuild, KindCloudFormation, KindSNSError, KindDLQError:
		return k, nil
	default:
		return "", fmt.Errorf("unknown handler kind %q", s)
	}
}

// PayloadParseError reports a record payload that could not be decoded.
type PayloadParseError struct {
	Kind  Kind
	Index int
	Err   error
}

func (e *PayloadParseError) Error() string {
	return fmt.Sprintf("parse %s payload (record %d): %v", e.Kind, e.Index, e.Err)
}

func (e *PayloadParseError) Unwrap() error { return e.Err }

// Attribute returns the string value of an SNS message attribute.
//
// Lambda delivers attributes as {"Type": "String", "Value": "..."} objects.
func Attribute(r Record, name string) (string, bool) {
	raw, ok := r.SNS.MessageAttributes[name]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case map[string]interface{}:
		s, ok := v["Value"].(string)
		return s, ok
	case string:
		return v, true
	default:
		return "", false
	}
}
