// Package models defines session transport event structures for PrepVox.
package models

// SessionEventType enumerates the event kinds emitted by the voice session
// transport. Modeled as a tagged union: the type field selects which payload
// fields of SessionEvent are meaningful.
type SessionEventType string

const (
	// SessionEventCallStart signals the session transport established the call.
	SessionEventCallStart SessionEventType = "call-start"
	// SessionEventCallEnd signals the call terminated (remote hang-up or local stop).
	SessionEventCallEnd SessionEventType = "call-end"
	// SessionEventTranscript carries a partial or final transcript fragment.
	SessionEventTranscript SessionEventType = "transcript"
	// SessionEventSpeechStart signals the remote party started speaking.
	SessionEventSpeechStart SessionEventType = "speech-start"
	// SessionEventSpeechEnd signals the remote party stopped speaking.
	SessionEventSpeechEnd SessionEventType = "speech-end"
	// SessionEventError carries a transport-level error.
	SessionEventError SessionEventType = "error"
)

// TranscriptType distinguishes in-progress fragments from finalized utterances.
type TranscriptType string

const (
	// TranscriptTypePartial is an in-progress fragment, display-only.
	TranscriptTypePartial TranscriptType = "partial"
	// TranscriptTypeFinal is a finalized utterance appended to the transcript.
	TranscriptTypeFinal TranscriptType = "final"
)

// SessionEvent is one event from the session transport.
//
// Role, TranscriptType and Transcript are set only for SessionEventTranscript;
// Err only for SessionEventError.
type SessionEvent struct {
	Type           SessionEventType `json:"type"`
	Role           MessageRole      `json:"role,omitempty"`
	TranscriptType TranscriptType   `json:"transcriptType,omitempty"`
	Transcript     string           `json:"transcript,omitempty"`
	Err            string           `json:"error,omitempty"`
}

// IsFinalTranscript reports whether the event is a finalized transcript
// fragment that should be appended to the session transcript.
func (e SessionEvent) IsFinalTranscript() bool {
	return e.Type == SessionEventTranscript && e.TranscriptType == TranscriptTypeFinal
}
