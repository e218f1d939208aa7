package event

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

const StackResourceType = "AWS::CloudFormation::Stack"

// StackEvent is a CloudFormation stack notification.
//
// CloudFormation publishes one Key='value' pair per line, for example:
//
//	StackId='arn:aws:cloudformation:us-east-1:123:stack/app/uuid'
//	ResourceStatus='UPDATE_COMPLETE'
type StackEvent map[string]string

var stackRegionRe = regexp.MustCompile(`^arn:aws:cloudformation:(?P<region>[a-z]{2}-[a-z]{4,9}-[1-3])`)

func DecodeStack(payload string) (StackEvent, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, errEmptyPayload
	}
	tokens, err := shlex.Split(payload)
	if err != nil {
		return nil, err
	}
	ev := make(StackEvent, len(tokens))
	for _, tok := range tokens {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, fmt.Errorf("token %q is not key=value", tok)
		}
		ev[k] = v
	}
	for _, k := range []string{"StackId", "StackName", "ResourceType", "ResourceStatus"} {
		if _, ok := ev[k]; !ok {
			return nil, &MissingFieldError{Field: k}
		}
	}
	return ev, nil
}

func (e StackEvent) ResourceType() string   { return e["ResourceType"] }
func (e StackEvent) ResourceStatus() string { return e["ResourceStatus"] }
func (e StackEvent) StackID() string        { return e["StackId"] }
func (e StackEvent) StackName() string      { return e["StackName"] }

func (e StackEvent) Reason() (string, bool) {
	r, ok := e["ResourceStatusReason"]
	return r, ok
}

// Region extracts the region from the stack ARN.
func (e StackEvent) Region() (string, error) {
	id := e.StackID()
	if id == "" {
		return "", errors.New("missing StackId")
	}
	m := stackRegionRe.FindStringSubmatch(id)
	if m == nil {
		return "", fmt.Errorf("no region in stack id %q", id)
	}
	return m[stackRegionRe.SubexpIndex("region")], nil
}
