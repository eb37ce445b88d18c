package ports

// FrameHandler consumes raw telemetry frames in arrival order. It is only ever
// called from the connection manager's loop goroutine.
type FrameHandler interface {
	HandleFrame(topic string, payload []byte)
}

// FrameHandlerFunc adapts a function into a FrameHandler.
type FrameHandlerFunc func(topic string, payload []byte)

func (f FrameHandlerFunc) HandleFrame(topic string, payload []byte) { f(topic, payload) }
