package pipeline

type State string

const (
	StateRespond        State = "respond"
	StateErrorRespond   State = "error_respond"
	StateStaticFallback State = "static_fallback"
	StateStreaming      State = "streaming"
	StateComplete       State = "complete"
)

// Result is either a finished Outcome or an open TokenStream.
type Result struct {
	outcome *Outcome
	stream  *TokenStream
	state   State
}

// Finished wraps an outcome; error outcomes end in StateErrorRespond.
func Finished(outcome *Outcome) *Result {
	state := StateRespond
	if outcome.Kind == KindError {
		state = StateErrorRespond
	}
	return &Result{outcome: outcome, state: state}
}

func Streaming(stream *TokenStream) *Result {
	return &Result{stream: stream}
}

func (r *Result) IsStream() bool {
	return r.stream != nil
}

// Outcome is nil for stream results.
func (r *Result) Outcome() *Outcome {
	return r.outcome
}

// Stream is nil for finished results.
func (r *Result) Stream() *TokenStream {
	return r.stream
}

func (r *Result) State() State {
	if r.stream != nil {
		return r.stream.State()
	}
	return r.state
}
