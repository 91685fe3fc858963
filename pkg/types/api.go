package types

// StatusResponse is the renderer state snapshot returned by GET /status.
type StatusResponse struct {
	// Current lifecycle state of the renderer (running, paused, closed).
	// example: running
	State string `json:"state" example:"running"`
	// Configured display width in pixels.
	// example: 240
	Width int `json:"width" example:"240"`
	// Configured display height in pixels.
	// example: 240
	Height int `json:"height" example:"240"`
	// Current sampling rate in frames per second.
	// example: 30
	FPS int `json:"fps" example:"30"`
	// Sampling mode of the adaptive rate controller (active_high, idle_low).
	// example: active_high
	Mode string `json:"mode" example:"active_high"`
	// Frames processed and handed to the dispatcher since start.
	RenderedFrames uint64 `json:"rendered_frames"`
	// Frames skipped because transmission could not keep up.
	SkippedFrames uint64 `json:"skipped_frames"`
	// Frames whose content was identical to the previous frame.
	CleanFrames uint64 `json:"clean_frames"`
	// Dirty regions emitted by the differ since start.
	DirtyRegions uint64 `json:"dirty_regions"`
	// Regions deferred by the bandwidth limiter and folded into a later diff.
	DeferredRegions uint64 `json:"deferred_regions"`
	// Total pixels handed to the transmission callback.
	PixelsSent uint64 `json:"pixels_sent"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
