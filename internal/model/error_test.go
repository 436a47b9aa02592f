package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAppError_JSONKeys(t *testing.T) {
	full := AppError{Code: "SUB_PARSE_ERROR", Message: "m", Stage: "parse_sub", URL: "https://a.example/sub", Line: 3, Snippet: "ss://"}
	data, err := json.Marshal(full)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := make(map[string]bool, len(got))
	for k := range got {
		keys[k] = true
	}
	want := map[string]bool{"code": true, "message": true, "stage": true, "url": true, "line": true, "snippet": true}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	data, err = json.Marshal(AppError{Code: "C", Message: "m", Stage: "merge"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"code":"C","message":"m","stage":"merge"}` {
		t.Fatalf("json=%s", data)
	}
}
