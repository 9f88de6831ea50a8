package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(schema.Required("name")))
	assert.Equal(t, "not_found", Outcome(fmt.Errorf("prospect x: %w", schema.ErrNotFound)))
	assert.Equal(t, "denied", Outcome(schema.ErrPermissionDenied))
	assert.Equal(t, "error", Outcome(errors.New("disk full")))
}

func TestObserveMutation(t *testing.T) {
	before := testutil.ToFloat64(mutationsTotal.WithLabelValues("test_op", "denied"))
	ObserveMutation("test_op", schema.ErrPermissionDenied)
	after := testutil.ToFloat64(mutationsTotal.WithLabelValues("test_op", "denied"))
	assert.Equal(t, before+1, after)
}

func TestObserveCorrupt(t *testing.T) {
	before := testutil.ToFloat64(corruptTotal.WithLabelValues("test_kind"))
	ObserveCorrupt("test_kind")
	assert.Equal(t, before+1, testutil.ToFloat64(corruptTotal.WithLabelValues("test_kind")))
}
