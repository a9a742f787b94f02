package models

import (
	"testing"
)

func TestIsValidInterviewType(t *testing.T) {
	if !IsValidInterviewType(InterviewTypeGenerate) {
		t.Error("generate should be a valid interview type")
	}
	if !IsValidInterviewType(InterviewTypeInterview) {
		t.Error("interview should be a valid interview type")
	}
	if IsValidInterviewType(InterviewType("panel")) {
		t.Error("unknown type should not validate")
	}
}

func TestInterviewValidate(t *testing.T) {
	valid := Interview{UserID: "u1", Role: "Backend", Level: "Junior", Type: InterviewTypeGenerate}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid interview, got %v", err)
	}

	cases := []struct {
		name      string
		interview Interview
		wantErr   error
	}{
		{"missing user", Interview{Role: "Backend", Type: InterviewTypeGenerate}, ErrEmptyUserID},
		{"missing role", Interview{UserID: "u1", Type: InterviewTypeGenerate}, ErrEmptyRole},
		{"bad type", Interview{UserID: "u1", Role: "Backend", Type: "panel"}, ErrInvalidType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.interview.Validate(); err != tc.wantErr {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	resp := Success(map[string]string{"id": "abc"})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected ok status, got %s", resp.Status)
	}
	if resp.Result == nil {
		t.Error("expected result to be set")
	}

	errResp := Error("boom")
	if errResp.Status != string(APIStatusError) {
		t.Errorf("expected error status, got %s", errResp.Status)
	}
	if errResp.Message != "boom" {
		t.Errorf("expected message 'boom', got %s", errResp.Message)
	}
}

func TestSessionEventIsFinalTranscript(t *testing.T) {
	final := SessionEvent{Type: SessionEventTranscript, TranscriptType: TranscriptTypeFinal, Transcript: "hello"}
	if !final.IsFinalTranscript() {
		t.Error("final transcript event should report final")
	}
	partial := SessionEvent{Type: SessionEventTranscript, TranscriptType: TranscriptTypePartial, Transcript: "hel"}
	if partial.IsFinalTranscript() {
		t.Error("partial transcript event should not report final")
	}
	callEnd := SessionEvent{Type: SessionEventCallEnd}
	if callEnd.IsFinalTranscript() {
		t.Error("call-end event should not report final")
	}
}
