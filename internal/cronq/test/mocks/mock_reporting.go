package mocks

import "sync"

// ReportedFailure is one captured FailureReporter.Report call.
type ReportedFailure struct {
	Context string
	Detail  string
}

type MockFailureReporter struct {
	mu       sync.Mutex
	failures []ReportedFailure
}

func NewMockFailureReporter() *MockFailureReporter {
	return &MockFailureReporter{}
}

func (m *MockFailureReporter) Report(context string, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, ReportedFailure{Context: context, Detail: detail})
}

func (m *MockFailureReporter) Failures() []ReportedFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReportedFailure, len(m.failures))
	copy(out, m.failures)
	return out
}

// SentReport is one captured EmailSender.Send call.
type SentReport struct {
	Subject string
	Body    string
}

type MockEmailSender struct {
	mu       sync.Mutex
	sent     []SentReport
	SendFunc func(subject string, body string) error
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

func (m *MockEmailSender) Send(subject string, body string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(subject, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentReport{Subject: subject, Body: body})
	return nil
}

func (m *MockEmailSender) Sent() []SentReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentReport, len(m.sent))
	copy(out, m.sent)
	return out
}
