package alerts

import "context"

// Status classifies the result of one notification channel call.
type Status int

const (
	// StatusDelivered means the channel accepted the message.
	StatusDelivered Status = iota
	// StatusSkipped means the channel is not configured; not an error.
	StatusSkipped
	// StatusFailed means the call was attempted and failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a notification channel call.
type Outcome struct {
	Status Status
	Err    error
}

// Delivered returns a successful outcome.
func Delivered() Outcome { return Outcome{Status: StatusDelivered} }

// Skipped returns the outcome for an unconfigured channel.
func Skipped() Outcome { return Outcome{Status: StatusSkipped} }

// Failed returns a failed outcome carrying err.
func Failed(err error) Outcome { return Outcome{Status: StatusFailed, Err: err} }

// Notifier is the outbound notification channel used by the Engine. Every
// method must respect ctx and report, never return, delivery errors.
type Notifier interface {
	// PostPrimary announces a newly emitted alert and returns the handle of
	// the thread it opened, if the channel supports threads.
	PostPrimary(ctx context.Context, a Alert) (ThreadHandle, Outcome)
	// PostThreadReply posts text into thread. An empty thread means the
	// channel should post it unthreaded.
	PostThreadReply(ctx context.Context, text string, thread ThreadHandle) Outcome
	// PostClipAttachment posts clip media links into thread.
	PostClipAttachment(ctx context.Context, urls ClipURLs, thread ThreadHandle) Outcome
	// SendSMS sends a short text message for a.
	SendSMS(ctx context.Context, a Alert) Outcome
}

// Call kinds recorded in the outcome counters.
const (
	CallPrimary     = "primary"
	CallReply       = "reply"
	CallCorrelation = "correlation"
	CallSMS         = "sms"
	CallClip        = "clip"
)

// NopNotifier skips every call.
type NopNotifier struct{}

func (NopNotifier) PostPrimary(context.Context, Alert) (ThreadHandle, Outcome) {
	return "", Skipped()
}
func (NopNotifier) PostThreadReply(context.Context, string, ThreadHandle) Outcome { return Skipped() }
func (NopNotifier) PostClipAttachment(context.Context, ClipURLs, ThreadHandle) Outcome {
	return Skipped()
}
func (NopNotifier) SendSMS(context.Context, Alert) Outcome { return Skipped() }
