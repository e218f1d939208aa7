package event

import (
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestDecodeCodeBuild(t *testing.T) {
	cb, err := DecodeCodeBuild(`{"id":"build-123","region":"us-east-1","detail":{"build-status":"SUCCEEDED","project-name":"my-proj"}}`)
	if err != nil {
		t.Fatalf("DecodeCodeBuild: %v", err)
	}
	if cb.ID != "build-123" || cb.Region != "us-east-1" {
		t.Fatalf("unexpected id/region: %+v", cb)
	}
	if cb.Detail.BuildStatus != "SUCCEEDED" || cb.Detail.ProjectName != "my-proj" {
		t.Fatalf("unexpected detail: %+v", cb.Detail)
	}
}

func TestDecodeCodeBuildRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not json", `{"id":`, `"just a string"`} {
		if _, err := DecodeCodeBuild(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestDecodeCodeBuildRequiresFields(t *testing.T) {
	cases := map[string]string{
		"null":                            "",
		"{}":                              "id",
		`{"id":"b"}`:                      "region",
		`{"id":"b","region":"us-east-1"}`: "detail",
		`{"id":"b","region":"us-east-1","detail":null}`:                 "detail",
		`{"id":"b","region":"us-east-1","detail":{}}`:                   "detail.build-status",
		`{"id":"b","region":"us-east-1","detail":{"project-name":"p"}}`: "detail.build-status",
	}
	for in, field := range cases {
		_, err := DecodeCodeBuild(in)
		if err == nil {
			t.Fatalf("expected error for %s", in)
		}
		var mf *MissingFieldError
		if field != "" && (!errors.As(err, &mf) || mf.Field != field) {
			t.Fatalf("%s: err = %v, want missing %s", in, err, field)
		}
	}
}

func TestRequireProjectName(t *testing.T) {
	cb, err := DecodeCodeBuild(`{"id":"b","region":"us-east-1","detail":{"build-status":"FAILED"}}`)
	if err != nil {
		t.Fatalf("DecodeCodeBuild: %v", err)
	}
	if err := cb.RequireProjectName(); err == nil {
		t.Fatal("expected missing project name")
	}
	cb.Detail.ProjectName = "api"
	if err := cb.RequireProjectName(); err != nil {
		t.Fatalf("RequireProjectName: %v", err)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	if err != nil || k != KindCodeBuild {
		t.Fatalf("default kind = %q, %v", k, err)
	}
	k, err = ParseKind(" CloudFormation ")
	if err != nil || k != KindCloudFormation {
		t.Fatalf("kind = %q, %v", k, err)
	}
	if _, err := ParseKind("github"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestPayloadParseErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	var err error = &PayloadParseError{Kind: KindCodeBuild, Index: 2, Err: base}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach wrapped error")
	}
	var ppe *PayloadParseError
	if !errors.As(err, &ppe) || ppe.Index != 2 {
		t.Fatalf("errors.As failed: %v", err)
	}
}

const stackMsg = `StackId='arn:aws:cloudformation:eu-west-1:123456789012:stack/app/0a1b'
Timestamp='2024-01-01T00:00:00.000Z'
EventId='e1'
LogicalResourceId='app'
Namespace='123456789012'
PhysicalResourceId='arn:aws:cloudformation:eu-west-1:123456789012:stack/app/0a1b'
ResourceStatus='UPDATE_ROLLBACK_FAILED'
ResourceStatusReason='Resource creation cancelled'
ResourceType='AWS::CloudFormation::Stack'
StackName='app'
`

func TestDecodeStack(t *testing.T) {
	ev, err := DecodeStack(stackMsg)
	if err != nil {
		t.Fatalf("DecodeStack: %v", err)
	}
	if ev.StackName() != "app" || ev.ResourceType() != StackResourceType {
		t.Fatalf("unexpected stack event: %v", ev)
	}
	if r, ok := ev.Reason(); !ok || r != "Resource creation cancelled" {
		t.Fatalf("reason = %q, %v", r, ok)
	}
	region, err := ev.Region()
	if err != nil || region != "eu-west-1" {
		t.Fatalf("region = %q, %v", region, err)
	}
}

func TestDecodeStackErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"no equals":   "StackId='x' orphan",
		"missing key": "StackId='x'\nResourceType='AWS::S3::Bucket'\n",
		"bad quoting": "StackId='unterminated",
	}
	for name, in := range cases {
		if _, err := DecodeStack(in); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeStackRequiresStackIdentity(t *testing.T) {
	cases := map[string]string{
		"StackName": "StackId='arn:aws:cloudformation:us-east-1:1:stack/app/x' ResourceType='AWS::CloudFormation::Stack' ResourceStatus='UPDATE_COMPLETE'",
		"StackId":   "StackName='app' ResourceType='AWS::CloudFormation::Stack' ResourceStatus='UPDATE_COMPLETE'",
	}
	for field, in := range cases {
		_, err := DecodeStack(in)
		var mf *MissingFieldError
		if !errors.As(err, &mf) || mf.Field != field {
			t.Fatalf("err = %v, want missing %s", err, field)
		}
	}
}

func TestStackRegionMissing(t *testing.T) {
	ev := StackEvent{"StackId": "not-an-arn"}
	if _, err := ev.Region(); err == nil {
		t.Fatal("expected region error")
	}
}

func TestDecodeDLQ(t *testing.T) {
	s3 := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"templates"},"object":{"key":"/app/stack.yaml"}}}]}`
	inner := `{"Records":[{"Sns":{"MessageId":"m-1","Message":` + quote(s3) + `}}]}`

	envs, err := DecodeDLQ(inner)
	if err != nil {
		t.Fatalf("DecodeDLQ: %v", err)
	}
	if len(envs) != 1 || len(envs[0].Records) != 1 {
		t.Fatalf("unexpected envelopes: %+v", envs)
	}
	r := envs[0].Records[0]
	if r.Bucket != "templates" || r.Key != "/app/stack.yaml" || r.EventName != "ObjectCreated:Put" {
		t.Fatalf("unexpected record: %+v", r)
	}
	if envs[0].MessageID != "m-1" {
		t.Fatalf("message id = %q", envs[0].MessageID)
	}

	if _, err := DecodeDLQ(`{"foo":1}`); err == nil {
		t.Fatal("expected error for payload without Records")
	}
}

func TestEnvelopeRecord(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{
		"Type":"Notification",
		"MessageId":"abc",
		"TopicArn":"arn:aws:sns:us-east-1:1:builds",
		"Message":"hello",
		"Timestamp":"2024-05-01T10:00:00.000Z",
		"MessageAttributes":{"ErrorMessage":{"Type":"String","Value":"template invalid"}}
	}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	rec := env.Record()
	if rec.SNS.MessageID != "abc" || rec.SNS.Message != "hello" {
		t.Fatalf("unexpected record: %+v", rec.SNS)
	}
	if rec.SNS.Timestamp.IsZero() {
		t.Fatal("expected parsed timestamp")
	}
	if v, ok := Attribute(rec, "ErrorMessage"); !ok || v != "template invalid" {
		t.Fatalf("attribute = %q, %v", v, ok)
	}
	if _, ok := Attribute(rec, "Missing"); ok {
		t.Fatal("expected missing attribute")
	}
}

func TestAttributeFromLambdaShape(t *testing.T) {
	rec := events.SNSEventRecord{SNS: events.SNSEntity{MessageAttributes: map[string]interface{}{
		"ErrorMessage": map[string]interface{}{"Type": "String", "Value": "x"},
	}}}
	if v, ok := Attribute(rec, "ErrorMessage"); !ok || v != "x" {
		t.Fatalf("attribute = %q, %v", v, ok)
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestDecodeBatch(t *testing.T) {
	lambdaShape := `{"Records":[{"EventSource":"aws:sns","Sns":{"MessageId":"a","Message":"x"}},{"EventSource":"aws:sns","Sns":{"MessageId":"b","Message":"y"}}]}`
	b, err := DecodeBatch([]byte(lambdaShape))
	if err != nil {
		t.Fatalf("DecodeBatch lambda: %v", err)
	}
	if len(b.Records) != 2 || b.Records[1].SNS.MessageID != "b" || b.Records[0].SNS.Message != "x" {
		t.Fatalf("unexpected batch: %+v", b)
	}

	b, err = DecodeBatch([]byte(`{"Type":"Notification","MessageId":"e-1","Message":"payload"}`))
	if err != nil {
		t.Fatalf("DecodeBatch envelope: %v", err)
	}
	if len(b.Records) != 1 || b.Records[0].SNS.MessageID != "e-1" || b.Records[0].SNS.Message != "payload" {
		t.Fatalf("unexpected batch: %+v", b)
	}

	for _, in := range []string{`{}`, `[1]`, `nope`} {
		if _, err := DecodeBatch([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
