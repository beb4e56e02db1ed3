package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
	m *Metrics
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (s *MetricsTestSuite) SetupTest() {
	s.m = New()
}

func (s *MetricsTestSuite) TestAccrual() {
	s.m.AccrualRun(ResultSuccess, time.Second)
	s.m.AccrualRun(ResultSkipped, 0)
	s.m.AccrualInvestments("credited", 3)
	s.m.AccrualInvestments("failed", 0)

	s.InDelta(1, testutil.ToFloat64(s.m.accrualRuns.WithLabelValues(ResultSuccess)), 0)
	s.InDelta(1, testutil.ToFloat64(s.m.accrualRuns.WithLabelValues(ResultSkipped)), 0)
	s.InDelta(3, testutil.ToFloat64(s.m.accrualInvestments.WithLabelValues("credited")), 0)

	// пропущенный запуск не попадает в гистограмму длительности.
	s.Contains(s.scrape(), "invest_accrual_run_duration_seconds_count 1\n")
}

func (s *MetricsTestSuite) scrape() string {
	rec := httptest.NewRecorder()
	s.m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	return rec.Body.String()
}

func (s *MetricsTestSuite) TestHandler() {
	s.m.RelayEvent("EMAIL", ResultSuccess)
	s.m.HTTPRequest(http.MethodGet, "/api/wallet", http.StatusOK, 10*time.Millisecond)

	body := s.scrape()
	s.Contains(body, `invest_relay_events_total{kind="EMAIL",result="success"} 1`)
	s.Contains(body, `invest_http_requests_total{method="GET",route="/api/wallet",status="200"} 1`)
}
