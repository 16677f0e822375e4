package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database  *DatabaseMetrics
	HTTP      *HTTPMetrics
	Messaging *MessagingMetrics

	studentsCreated     metric.Int64Counter
	studentsUpdated     metric.Int64Counter
	studentsDeleted     metric.Int64Counter
	studentsViewed      metric.Int64Counter
	studentsListViewed  metric.Int64Counter
	statisticsRequested metric.Int64Counter
	logins              metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	database, err := NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	httpMetrics, err := NewHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	messaging, err := NewMessagingMetrics(meter)
	if err != nil {
		return nil, err
	}

	m := &Metrics{Database: database, HTTP: httpMetrics, Messaging: messaging}

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&m.studentsCreated, "student_records.students.created", "Total number of student records created", "{student}"},
		{&m.studentsUpdated, "student_records.students.updated", "Total number of student records updated", "{student}"},
		{&m.studentsDeleted, "student_records.students.deleted", "Total number of student records deleted", "{student}"},
		{&m.studentsViewed, "student_records.students.viewed", "Total number of student detail views", "{view}"},
		{&m.studentsListViewed, "student_records.students.list_viewed", "Total number of times the students list was viewed", "{view}"},
		{&m.statisticsRequested, "student_records.statistics.requested", "Total number of statistics requests", "{request}"},
		{&m.logins, "student_records.auth.logins", "Login attempts by outcome", "{attempt}"},
	}

	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(
			c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordStudentsCreated takes a count so bulk inserts are one call.
// surface is "api" or "web".
func (m *Metrics) RecordStudentsCreated(ctx context.Context, surface string, n int) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("surface", surface)))
	}
}

func (m *Metrics) RecordStudentUpdated(ctx context.Context, surface string) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1, metric.WithAttributes(attribute.String("surface", surface)))
	}
}

func (m *Metrics) RecordStudentDeleted(ctx context.Context, surface string) {
	if m != nil && m.studentsDeleted != nil {
		m.studentsDeleted.Add(ctx, 1, metric.WithAttributes(attribute.String("surface", surface)))
	}
}

func (m *Metrics) RecordStudentViewed(ctx context.Context) {
	if m != nil && m.studentsViewed != nil {
		m.studentsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsListViewed(ctx context.Context) {
	if m != nil && m.studentsListViewed != nil {
		m.studentsListViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStatisticsRequested(ctx context.Context) {
	if m != nil && m.statisticsRequested != nil {
		m.statisticsRequested.Add(ctx, 1)
	}
}

func (m *Metrics) RecordLogin(ctx context.Context, success bool) {
	if m != nil && m.logins != nil {
		outcome := "failure"
		if success {
			outcome = "success"
		}
		m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}, HTTP: &HTTPMetrics{}, Messaging: &MessagingMetrics{}}
}
