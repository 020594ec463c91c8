package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, c *PrometheusCollector, name string) *dto.MetricFamily {
	t.Helper()

	families, err := c.GetRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestPrometheusCollector_CacheLookups(t *testing.T) {
	c, err := NewPrometheusCollector()
	require.NoError(t, err)

	c.RecordCacheLookup(LookupHit)
	c.RecordCacheLookup(LookupHit)
	c.RecordCacheLookup(LookupMiss)
	c.SetCacheEntries(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues(LookupHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues(LookupMiss)))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.cacheEntries))
}

func TestPrometheusCollector_FetchErrors(t *testing.T) {
	c, err := NewPrometheusCollector()
	require.NoError(t, err)

	c.ObserveFetch("featured", 20*time.Millisecond, nil)
	c.ObserveFetch("featured", 30*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchErrors.WithLabelValues("featured")))

	mf := findFamily(t, c, "storefront_cache_fetch_duration_seconds")
	require.NotNil(t, mf)
	require.Len(t, mf.Metric, 1)
	assert.Equal(t, uint64(2), mf.Metric[0].GetHistogram().GetSampleCount())
}

func TestPrometheusCollector_Payments(t *testing.T) {
	c, err := NewPrometheusCollector(WithNamespace("shop"))
	require.NoError(t, err)

	c.RecordPayment("confirmed")
	c.RecordConfirmationPoll("pending")
	c.RecordConfirmationPoll("confirmed")

	assert.NotNil(t, findFamily(t, c, "shop_payment_outcomes_total"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.confirmationPoll.WithLabelValues("pending")))
}

func TestPrometheusCollector_AdminRequestsWithoutMethod(t *testing.T) {
	c, err := NewPrometheusCollector(WithoutPerMethodMetrics())
	require.NoError(t, err)

	c.RecordActiveRequests("/x", 1)
	c.RecordRequest("/x", "OK", time.Millisecond)
	c.RecordError("/x", "Internal")
	c.RecordActiveRequests("/x", -1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("OK")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeRequests.WithLabelValues()))
}

func TestNop(t *testing.T) {
	c := Nop()
	c.RecordCacheLookup(LookupHit)
	c.RecordWarm(time.Second, 3)
	assert.Nil(t, c.GetRegistry())
}
