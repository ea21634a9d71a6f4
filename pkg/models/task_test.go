package models

import "testing"

func TestTask_TraceHeaders(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name: "string map",
			payload: map[string]any{
				"trace_headers": map[string]any{"traceparent": "00-abc-def-01"},
			},
			want: "00-abc-def-01",
		},
		{
			name:    "absent",
			payload: map[string]any{"other": "x"},
			want:    "",
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
		{
			name: "non-string values ignored",
			payload: map[string]any{
				"trace_headers": map[string]any{"traceparent": 42},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{ID: "t1", Payload: tt.payload}
			headers := task.TraceHeaders()
			if tt.want == "" {
				if headers != nil {
					t.Errorf("TraceHeaders() = %v, want nil", headers)
				}
				return
			}
			if headers["traceparent"] != tt.want {
				t.Errorf("traceparent = %q, want %q", headers["traceparent"], tt.want)
			}
		})
	}
}

func TestResultStatus(t *testing.T) {
	tests := []struct {
		name string
		exc  *TaskException
		want string
	}{
		{"success", nil, TaskStatusSuccess},
		{"canceled", &TaskException{Type: ExceptionCancelled}, TaskStatusCanceled},
		{"timeout", &TaskException{Type: ExceptionTimeout}, TaskStatusFailed},
		{"generic", &TaskException{Type: "RuntimeError"}, TaskStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultStatus(tt.exc); got != tt.want {
				t.Errorf("ResultStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCitationCount(t *testing.T) {
	transcript := []Message{
		{Role: RoleSystem},
		{Role: RoleUser, Attrs: &MessageAttrs{}},
		{Role: RoleTool, Attrs: &MessageAttrs{Citations: []Citation{{ID: 1}, {ID: 2}}}},
		{Role: RoleAssistant},
		{Role: RoleTool, Attrs: &MessageAttrs{Citations: []Citation{{ID: 3}}}},
	}
	if got := CitationCount(transcript); got != 3 {
		t.Errorf("CitationCount = %d, want 3", got)
	}
	if got := CitationCount(nil); got != 0 {
		t.Errorf("CitationCount(nil) = %d, want 0", got)
	}
}
