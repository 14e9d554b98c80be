package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestConversationEntry_Fields(t *testing.T) {
	typ := reflect.TypeOf(ConversationEntry{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "AgentID", "not null")
	assertGormTag(t, typ, "AgentID", "idx_conversation_agent_created")
	assertGormTag(t, typ, "CreatedAt", "idx_conversation_agent_created")
	assertGormTag(t, typ, "Role", "size:16")
	assertGormTag(t, typ, "Content", "type:mediumtext")

	assertFieldType(t, typ, "ID", "uint")
	assertFieldType(t, typ, "Metadata", "datatypes.JSON")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestMessage_Fields(t *testing.T) {
	typ := reflect.TypeOf(Message{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "ToAgent", "index")
	assertGormTag(t, typ, "Type", "default:message")
	assertGormTag(t, typ, "IsRead", "default:false")
	assertGormTag(t, typ, "IsRead", "index")
	assertGormTag(t, typ, "DedupeKey", "uniqueIndex")

	assertFieldType(t, typ, "ID", "string")
	assertFieldType(t, typ, "IsRead", "bool")
	assertFieldType(t, typ, "DedupeKey", "*string")
}

func TestHandoff_Fields(t *testing.T) {
	typ := reflect.TypeOf(Handoff{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Status", "default:pending")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Task", "type:text")
	assertGormTag(t, typ, "DedupeKey", "uniqueIndex")

	assertFieldType(t, typ, "Status", "models.HandoffStatus")
	assertFieldType(t, typ, "Result", "*string")
	assertFieldType(t, typ, "Context", "datatypes.JSON")
	assertFieldType(t, typ, "UpdatedAt", "time.Time")
}

func TestBridgeItem_Fields(t *testing.T) {
	typ := reflect.TypeOf(BridgeItem{})

	assertGormTag(t, typ, "Direction", "default:to_bridge")
	assertGormTag(t, typ, "Status", "default:pending")
	assertGormTag(t, typ, "Content", "type:mediumtext")

	assertFieldType(t, typ, "Status", "models.BridgeStatus")
	assertFieldType(t, typ, "Response", "*string")
	assertFieldType(t, typ, "CompletedAt", "*time.Time")
}

func TestAgentSetting_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(AgentSetting{})

	assertGormTag(t, typ, "UserID", "primaryKey")
	assertGormTag(t, typ, "AgentID", "primaryKey")
	assertFieldType(t, typ, "Temperature", "*float64")
	assertFieldType(t, typ, "MaxTokens", "*int")
}

func TestBroadcastAck_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(BroadcastAck{})

	assertGormTag(t, typ, "MessageID", "primaryKey")
	assertGormTag(t, typ, "AgentID", "primaryKey")
	assertFieldType(t, typ, "MessageID", "string")
}

func TestHandoffStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to HandoffStatus
		want     bool
	}{
		{HandoffPending, HandoffAccepted, true},
		{HandoffPending, HandoffRejected, true},
		{HandoffAccepted, HandoffCompleted, true},
		{HandoffAccepted, HandoffRejected, true},
		{HandoffPending, HandoffCompleted, false},
		{HandoffPending, HandoffPending, false},
		{HandoffAccepted, HandoffPending, false},
		{HandoffAccepted, HandoffAccepted, false},
		{HandoffCompleted, HandoffPending, false},
		{HandoffCompleted, HandoffRejected, false},
		{HandoffCompleted, HandoffAccepted, false},
		{HandoffRejected, HandoffPending, false},
		{HandoffRejected, HandoffAccepted, false},
		{HandoffRejected, HandoffCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestHandoffStatus_TerminalAndValid(t *testing.T) {
	for _, s := range []HandoffStatus{HandoffCompleted, HandoffRejected} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []HandoffStatus{HandoffPending, HandoffAccepted} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if HandoffStatus("archived").Valid() {
		t.Error("unknown status should not be valid")
	}
	if !HandoffAccepted.Valid() {
		t.Error("accepted should be valid")
	}
}

func TestBridgeStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to BridgeStatus
		want     bool
	}{
		{BridgePending, BridgeProcessing, true},
		{BridgePending, BridgeCompleted, true},
		{BridgeProcessing, BridgeCompleted, true},
		{BridgeProcessing, BridgePending, false},
		{BridgeCompleted, BridgePending, false},
		{BridgeCompleted, BridgeProcessing, false},
		{BridgeCompleted, BridgeCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{"user", "assistant", "system"} {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%q) = false", r)
		}
	}
	for _, r := range []string{"", "tool", "User"} {
		if ValidRole(r) {
			t.Errorf("ValidRole(%q) = true", r)
		}
	}
}

func TestValidMessageType(t *testing.T) {
	for _, mt := range []string{"message", "handoff", "request", "response", "broadcast"} {
		if !ValidMessageType(mt) {
			t.Errorf("ValidMessageType(%q) = false", mt)
		}
	}
	if ValidMessageType("email") {
		t.Error("ValidMessageType(email) = true")
	}
}
