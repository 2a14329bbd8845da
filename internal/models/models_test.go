package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestPublishRequestValidate(t *testing.T) {
	valid := PublishRequest{
		Title:          "Weekly Digest",
		Content:        IssueContent{Text: "plain", HTML: "<p>html</p>"},
		IdempotencyKey: "key-1",
	}

	tests := []struct {
		name    string
		mutate  func(*PublishRequest)
		wantErr error
	}{
		{"valid", func(p *PublishRequest) {}, nil},
		{"empty title", func(p *PublishRequest) { p.Title = "" }, ErrEmptyTitle},
		{"title too long", func(p *PublishRequest) { p.Title = strings.Repeat("t", MaxTitleLength+1) }, ErrTitleTooLong},
		{"title at max length", func(p *PublishRequest) { p.Title = strings.Repeat("t", MaxTitleLength) }, nil},
		{"missing text content", func(p *PublishRequest) { p.Content.Text = "" }, ErrEmptyContent},
		{"missing html content", func(p *PublishRequest) { p.Content.HTML = "" }, ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if err := req.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIResponseEnvelope(t *testing.T) {
	ok := Success(map[string]int{"recipients": 3})
	if ok.Status != string(APIStatusOK) {
		t.Errorf("expected ok status, got %q", ok.Status)
	}

	withMsg := SuccessWithMessage("accepted", nil)
	if withMsg.Status != string(APIStatusOK) || withMsg.Message != "accepted" {
		t.Errorf("unexpected envelope: %+v", withMsg)
	}

	fail := Error("broken")
	if fail.Status != string(APIStatusError) || fail.Message != "broken" {
		t.Errorf("unexpected envelope: %+v", fail)
	}

	// Empty message and result must be omitted from the wire form.
	data, err := json.Marshal(Success(nil))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"status":"ok"}` {
		t.Errorf("unexpected wire form: %s", data)
	}
}

func TestSavedResponseHeaderOrderSurvivesJSON(t *testing.T) {
	in := []HeaderPair{
		{Name: "Content-Type", Value: []byte("application/json")},
		{Name: "X-First", Value: []byte("1")},
		{Name: "X-Second", Value: []byte("2")},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out []HeaderPair
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d headers, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Name != in[i].Name || string(out[i].Value) != string(in[i].Value) {
			t.Errorf("header %d changed: want %+v, got %+v", i, in[i], out[i])
		}
	}
}
