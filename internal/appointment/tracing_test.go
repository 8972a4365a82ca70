package appointment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return sr
}

func endedSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range sr.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("span %q not recorded", name)
	return nil
}

func spanAttr(s sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestCreateBooking_RecordsSpan(t *testing.T) {
	sr := recordSpans(t)
	f := newFixture(t, nil)

	appt, err := f.book(t, uuid.New(), at(wednesday, 9, 0))
	require.NoError(t, err)

	span := endedSpan(t, sr, "appointment.create_booking")
	assert.Equal(t, "created", spanAttr(span, "booking.outcome").AsString())
	assert.Equal(t, appt.ID.String(), spanAttr(span, "appointment.id").AsString())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestCreateBooking_SpanRecordsRejection(t *testing.T) {
	sr := recordSpans(t)
	f := newFixture(t, nil)

	_, err := f.book(t, uuid.New(), at(wednesday, 9, 30))
	require.ErrorIs(t, err, ErrSlotNoLongerAvailable)

	span := endedSpan(t, sr, "appointment.create_booking")
	assert.Equal(t, "slot_no_longer_available", spanAttr(span, "booking.outcome").AsString())
	assert.Equal(t, codes.Error, span.Status().Code)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestListSlots_RecordsSpan(t *testing.T) {
	sr := recordSpans(t)
	f := newFixture(t, nil)

	assert.Len(t, f.slotStarts(t, wednesday), 9)

	span := endedSpan(t, sr, "appointment.list_slots")
	assert.Equal(t, "ok", spanAttr(span, "slots.outcome").AsString())
	assert.Equal(t, int64(9), spanAttr(span, "slots.count").AsInt64())
	assert.Equal(t, "2031-03-05", spanAttr(span, "slots.date").AsString())
	assert.False(t, spanAttr(span, "slots.aggregated").AsBool())
}
