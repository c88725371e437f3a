package reporting

import "log"

// FailureReporter receives per-unit failures out-of-band. Implementations
// are fire-and-forget: Report must never fail outward, so a broken reporting
// channel cannot take the scheduler or dispatcher loop down with it.
type FailureReporter interface {
	Report(context string, detail string)
}

// EmailSender delivers a formatted report. Actual delivery is an external
// collaborator; this subsystem only formats and hands off.
type EmailSender interface {
	Send(subject string, body string) error
}

// LogFailureReporter writes failures to the process log.
type LogFailureReporter struct{}

func NewLogFailureReporter() *LogFailureReporter {
	return &LogFailureReporter{}
}

func (r *LogFailureReporter) Report(context string, detail string) {
	log.Printf("FAILURE %s: %s", context, detail)
}

// EmailFailureReporter sends each failure through an EmailSender, falling
// back to the log when delivery itself fails.
type EmailFailureReporter struct {
	sender EmailSender
}

func NewEmailFailureReporter(sender EmailSender) *EmailFailureReporter {
	return &EmailFailureReporter{sender: sender}
}

func (r *EmailFailureReporter) Report(context string, detail string) {
	if err := r.sender.Send(context, detail); err != nil {
		log.Printf("FAILURE (report delivery failed: %v) %s: %s", err, context, detail)
	}
}

// LogEmailSender is the default sender: it writes the report to the log.
type LogEmailSender struct{}

func NewLogEmailSender() *LogEmailSender {
	return &LogEmailSender{}
}

func (s *LogEmailSender) Send(subject string, body string) error {
	log.Printf("REPORT %s\n%s", subject, body)
	return nil
}
