// Package classifier maps remote and local failures onto a fixed policy.
package classifier

import "jira-video-session/internal/domain"

// Signal is a raw failure marker reported by the remote service or detected locally
type Signal string

const (
	SignalFileNotFound        Signal = "file_not_found"
	SignalUnsupportedFormat   Signal = "unsupported_format"
	SignalInvalidOptions      Signal = "invalid_options"
	SignalNetworkUnreachable  Signal = "network_unreachable"
	SignalTimeout             Signal = "timeout"
	SignalServerError         Signal = "server_error"
	SignalAuthRejected        Signal = "auth_rejected"
	SignalMalformedResponse   Signal = "malformed_response"
	SignalProcessingFailed    Signal = "processing_failed"
	SignalNoAudioTrack        Signal = "no_audio_track"
	SignalNoSpeech            Signal = "no_speech"
	SignalEngineUnavailable   Signal = "engine_unavailable"
	SignalTranscriptionFailed Signal = "transcription_failed"
	SignalNotFound            Signal = "not_found"
)

// Kinds recorded in ErrorReports
const (
	KindFileNotFound             = "file_not_found"
	KindUnsupportedFormat        = "unsupported_format"
	KindInvalidOptions           = "invalid_options"
	KindNetworkUnreachable       = "network_unreachable"
	KindTimeout                  = "timeout"
	KindRemoteUnavailable        = "remote_unavailable"
	KindAuthRejected             = "auth_rejected"
	KindMalformedResponse        = "malformed_response"
	KindProcessingFailed         = "processing_failed"
	KindNoAudioTrack             = "no_audio_track"
	KindNoSpeechDetected         = "no_speech_detected"
	KindTranscriptionUnavailable = "transcription_unavailable"
	KindTranscriptionFailed      = "transcription_failed"
	KindRemoteFrameMissing       = "remote_frame_missing"
	KindUnknown                  = "unknown"
)

// Classification is the policy outcome for one failure
type Classification struct {
	Kind         string
	Recoverable  bool
	Continuation domain.Continuation
}

type key struct {
	stage  domain.Stage
	signal Signal
}

var policy = map[key]Classification{
	{domain.StageSubmission, SignalFileNotFound}:       {KindFileNotFound, false, domain.Abort},
	{domain.StageSubmission, SignalUnsupportedFormat}:  {KindUnsupportedFormat, false, domain.Abort},
	{domain.StageSubmission, SignalInvalidOptions}:     {KindInvalidOptions, false, domain.Abort},
	{domain.StageSubmission, SignalNetworkUnreachable}: {KindNetworkUnreachable, true, domain.RetryableExternal},
	{domain.StageSubmission, SignalTimeout}:            {KindTimeout, true, domain.RetryableExternal},
	{domain.StageSubmission, SignalServerError}:        {KindRemoteUnavailable, true, domain.RetryableExternal},
	{domain.StageSubmission, SignalAuthRejected}:       {KindAuthRejected, false, domain.Abort},
	{domain.StageSubmission, SignalMalformedResponse}:  {KindMalformedResponse, false, domain.Abort},
	{domain.StageSubmission, SignalProcessingFailed}:   {KindProcessingFailed, false, domain.Abort},

	{domain.StageTranscription, SignalNoAudioTrack}:        {KindNoAudioTrack, true, domain.ContinueDegraded},
	{domain.StageTranscription, SignalNoSpeech}:            {KindNoSpeechDetected, true, domain.ContinueDegraded},
	{domain.StageTranscription, SignalEngineUnavailable}:   {KindTranscriptionUnavailable, true, domain.ContinueDegraded},
	{domain.StageTranscription, SignalTranscriptionFailed}: {KindTranscriptionFailed, true, domain.ContinueDegraded},

	{domain.StageFrameFetch, SignalNetworkUnreachable}: {KindRemoteUnavailable, true, domain.RetryableExternal},
	{domain.StageFrameFetch, SignalTimeout}:            {KindRemoteUnavailable, true, domain.RetryableExternal},
	{domain.StageFrameFetch, SignalServerError}:        {KindRemoteUnavailable, true, domain.RetryableExternal},
	{domain.StageFrameFetch, SignalNotFound}:           {KindRemoteFrameMissing, false, domain.Abort},
	{domain.StageFrameFetch, SignalAuthRejected}:       {KindAuthRejected, false, domain.Abort},
}

// fallback per stage; transcription problems never escalate past degraded
var fallback = map[domain.Stage]Classification{
	domain.StageSubmission:    {KindUnknown, false, domain.Abort},
	domain.StageTranscription: {KindTranscriptionFailed, true, domain.ContinueDegraded},
	domain.StageFrameFetch:    {KindRemoteUnavailable, true, domain.RetryableExternal},
}

// Classify looks up the policy for a failure signal at the given stage
func Classify(stage domain.Stage, signal Signal) Classification {
	if c, ok := policy[key{stage, signal}]; ok {
		return c
	}
	if c, ok := fallback[stage]; ok {
		return c
	}
	return Classification{Kind: KindUnknown, Recoverable: false, Continuation: domain.Abort}
}

// Report builds an ErrorReport for the signal with the given message
func Report(stage domain.Stage, signal Signal, message string) (domain.ErrorReport, Classification) {
	c := Classify(stage, signal)
	return domain.ErrorReport{
		Stage:       stage,
		Kind:        c.Kind,
		Message:     message,
		Recoverable: c.Recoverable,
	}, c
}
