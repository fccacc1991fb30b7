package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	errs    []error
	tags    []map[string]string
	panics  []any
	flushed time.Duration
}

func (r *recorder) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recorder) ReportPanic(v any)     { r.panics = append(r.panics, v) }
func (r *recorder) Flush(d time.Duration) { r.flushed = d }

func TestGlobalMonitor(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	t.Cleanup(func() { Init(nil) })

	CaptureException(errors.New("boom"), map[string]string{"component": "api"})
	CaptureException(nil, nil)
	Flush(time.Second)

	assert.Len(t, rec.errs, 1)
	assert.Equal(t, "api", rec.tags[0]["component"])
	assert.Equal(t, time.Second, rec.flushed)
}

func TestRecover_ReportsAndRepanics(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	t.Cleanup(func() { Init(nil) })

	assert.PanicsWithValue(t, "bad", func() {
		defer Recover()
		panic("bad")
	})
	assert.Equal(t, []any{"bad"}, rec.panics)

	assert.NotPanics(t, func() {
		defer Recover()
	})
	assert.Len(t, rec.panics, 1)
}

func TestInitNilRestoresNop(t *testing.T) {
	Init(nil)
	assert.IsType(t, NopMonitor{}, get())
}
