// Package format renders decoded notification payloads into chat messages.
//
// All functions are pure: no I/O, no clock. Text uses Slack mrkdwn.
package format

import (
	"fmt"
	"net/url"

	"stacknotify/internal/event"
	"stacknotify/internal/transport"
)

const (
	DefaultLabel     = "Linters and Git Sync to S3"
	DefaultUsername  = "GitFormation"
	DefaultIconEmoji = ":cloud:"

	// DefaultStackUsername is used by the CloudFormation and error handlers.
	DefaultStackUsername = "CloudGenesis"
)

// LabelMode picks the bold prefix of a CodeBuild message.
type LabelMode string

const (
	LabelFixed       LabelMode = "fixed"
	LabelProjectName LabelMode = "projectName"
)

func ParseLabelMode(s string) (LabelMode, error) {
	switch LabelMode(s) {
	case "", LabelFixed:
		return LabelFixed, nil
	case LabelProjectName, "projectname", "project-name", "project_name":
		return LabelProjectName, nil
	default:
		return "", fmt.Errorf("unknown label mode %q", s)
	}
}

// Options carries the fixed presentation attributes of every message.
type Options struct {
	Channel   string
	Username  string
	IconEmoji string
	LabelMode LabelMode
	Label     string
}

func (o Options) envelope() transport.Message {
	return transport.Message{Channel: o.Channel, Username: o.Username, IconEmoji: o.IconEmoji}
}

// CodeBuildURL is the console page listing builds in region.
func CodeBuildURL(region string) string {
	return fmt.Sprintf("https://console.aws.amazon.com/codebuild/home?region=%s#/builds", region)
}

// CodeBuildText renders "*<label>* (<id>) is <status> <<link>|Details>".
func CodeBuildText(ev event.CodeBuild, o Options) string {
	label := o.Label
	if o.LabelMode == LabelProjectName {
		label = ev.Detail.ProjectName
	}
	return fmt.Sprintf("*%s* (%s) is %s <%s|Details>", label, ev.ID, ev.Detail.BuildStatus, CodeBuildURL(ev.Region))
}

func CodeBuild(ev event.CodeBuild, o Options) transport.Message {
	m := o.envelope()
	m.Text = CodeBuildText(ev, o)
	return m
}

// StackURL links to the stack detail page in the stack's own region.
func StackURL(stackID, region string) string {
	q := url.Values{"stackId": {stackID}}
	return fmt.Sprintf("https://%s.console.aws.amazon.com/cloudformation/home?region=%s#/stack/detail?%s", region, region, q.Encode())
}

// SNSError renders a free-text error notification.
func SNSError(text string, o Options) transport.Message {
	m := o.envelope()
	m.Blocks = []transport.Block{transport.Section("❌ " + text)}
	return m
}

// DLQError renders one block per failed template object, followed by the
// error summary. An empty errorMessage falls back to "Stack Error".
func DLQError(records []event.S3Record, errorMessage string, o Options) transport.Message {
	if errorMessage == "" {
		errorMessage = "Stack Error"
	}
	blocks := make([]transport.Block, 0, len(records)+1)
	for _, r := range records {
		blocks = append(blocks, transport.Section("❌ Stack Error at: "+r.Bucket+r.Key))
	}
	blocks = append(blocks, transport.Section("❌ "+errorMessage))

	m := o.envelope()
	m.Blocks = blocks
	return m
}
