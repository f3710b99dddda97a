package localread

// Constructors for the request-level rejections of spec §7. These are
// never returned as Go errors from an exported API — they are carried
// inside a ResponseHeader and delivered through a Callback, per the
// policy that request-level rejections never propagate.

func newStoreNotMatch() *RequestError {
	return &RequestError{Kind: ErrStoreNotMatch, Message: "store id mismatch"}
}

func newPeerNotMatch() *RequestError {
	return &RequestError{Kind: ErrPeerNotMatch, Message: "peer id mismatch"}
}

func newStaleCommand() *RequestError {
	return &RequestError{Kind: ErrStaleCommand, Message: "stale command"}
}

func newServerIsBusy() *RequestError {
	return &RequestError{Kind: ErrServerIsBusy, Message: "server is busy"}
}
