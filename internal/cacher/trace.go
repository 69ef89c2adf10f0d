package cacher

// Trace op names. Stable strings: the conformance harness compares recorded
// traces against golden files.
const (
	OpAttach           = "attach"
	OpDetach           = "detach"
	OpInvalidate       = "invalidate"
	OpWindow           = "window"
	OpPause            = "pause"
	OpResume           = "resume"
	OpCancel           = "cancel"
	OpSingleFrame      = "single-frame"
	OpHashDispatch     = "hash-dispatch"
	OpHashHit          = "hash-hit"
	OpRenderDispatch   = "render-dispatch"
	OpDownloadDispatch = "download-dispatch"
	OpFrameCached      = "frame-cached"
	OpAudioDispatch    = "audio-dispatch"
	OpAudioCached      = "audio-cached"
	OpConformQueued    = "conform-queued"
	OpConformDispatch  = "conform-dispatch"
	OpConformDone      = "conform-done"
	OpStaleDrop        = "stale-drop"
)

// TraceEvent is one observed scheduling decision. Fields not meaningful
// for an op are left empty; everything is a string so traces serialize
// trivially.
type TraceEvent struct {
	Op    string `json:"op" yaml:"op"`
	Media string `json:"media,omitempty" yaml:"media,omitempty"`
	Time  string `json:"time,omitempty" yaml:"time,omitempty"`
	Range string `json:"range,omitempty" yaml:"range,omitempty"`
	Hash  string `json:"hash,omitempty" yaml:"hash,omitempty"`
}
