package format

import (
	"fmt"

	"stacknotify/internal/event"
	"stacknotify/internal/transport"
)

// notifyStatuses are the stack statuses worth a chat message.
var notifyStatuses = map[string]bool{
	"CREATE_COMPLETE":             true,
	"CREATE_IN_PROGRESS":          true,
	"CREATE_FAILED":               true,
	"DELETE_COMPLETE":             true,
	"DELETE_IN_PROGRESS":          true,
	"DELETE_FAILED":               true,
	"ROLLBACK_COMPLETE":           true,
	"ROLLBACK_FAILED":             true,
	"ROLLBACK_IN_PROGRESS":        true,
	"UPDATE_COMPLETE":             true,
	"UPDATE_IN_PROGRESS":          true,
	"UPDATE_ROLLBACK_COMPLETE":    true,
	"UPDATE_ROLLBACK_FAILED":      true,
	"UPDATE_ROLLBACK_IN_PROGRESS": true,
	"REVIEW_IN_PROGRESS":          true,
}

var errorStatuses = map[string]bool{
	"CREATE_FAILED":          true,
	"ROLLBACK_FAILED":        true,
	"UPDATE_ROLLBACK_FAILED": true,
	"DELETE_FAILED":          true,
	"UPDATE_FAILED":          true,
}

func IsErrorStatus(status string) bool { return errorStatuses[status] }

// StackSkipReason reports why a stack event produces no message, or "" when
// it should be sent. Resource-level events only pass when they are errors.
func StackSkipReason(ev event.StackEvent) string {
	status := ev.ResourceStatus()
	if ev.ResourceType() != event.StackResourceType && !IsErrorStatus(status) {
		return "resource event"
	}
	if !notifyStatuses[status] {
		return "status " + status + " not notified"
	}
	return ""
}

// Stack renders a stack status change. The region must come from the stack ARN.
func Stack(ev event.StackEvent, region string, o Options) transport.Message {
	status := ev.ResourceStatus()
	title := fmt.Sprintf("Stack <%s|%s> has entered status: %s", StackURL(ev.StackID(), region), ev.StackName(), status)
	if IsErrorStatus(status) {
		if reason, ok := ev.Reason(); ok {
			title += "\n" + reason
		}
	}

	m := o.envelope()
	m.Blocks = []transport.Block{
		transport.Section(title),
		transport.Section(ev.StackID()),
	}
	return m
}
