package controlplane

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/telemetry"
)

func TestRateLimited_PassesThrough(t *testing.T) {
	sim := newTestSimulator(t, DefaultSimulatorConfig())
	api := NewRateLimited(sim, 1000, 10)
	ctx := context.Background()

	created, err := api.CreateFleet(ctx, createRequest(1))
	require.NoError(t, err)

	resp, err := api.DescribeFleets(ctx, &engine.DescribeFleetsRequest{FleetIDs: []string{created.FleetID}})
	require.NoError(t, err)
	require.Len(t, resp.Fleets, 1)

	cancelled, err := api.CancelFleets(ctx, &engine.CancelFleetsRequest{FleetIDs: []string{created.FleetID}})
	require.NoError(t, err)
	assert.Len(t, cancelled.Failed, 1)
}

func TestRateLimited_HonoursContext(t *testing.T) {
	sim := newTestSimulator(t, DefaultSimulatorConfig())
	api := NewRateLimited(sim, 0.001, 1)

	// the single burst token
	_, err := api.DescribeFleets(context.Background(), &engine.DescribeFleetsRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = api.DescribeFleets(ctx, &engine.DescribeFleetsRequest{})
	require.Error(t, err)
	assert.Equal(t, engine.ErrorKindGeneralServiceException, engine.KindOf(engine.TranslateError(err)))
}

func TestNewRateLimited_Defaults(t *testing.T) {
	api := NewRateLimited(nil, 0, 0)
	assert.Equal(t, DefaultRequestsPerSecond, float64(api.limiter.Limit()))
	assert.Equal(t, int(DefaultRequestsPerSecond), api.limiter.Burst())
}

func TestInstrumented_RecordsCallsAndErrors(t *testing.T) {
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "crfleet"})
	require.NoError(t, err)

	tel := telemetry.Nop()
	tel.Metrics = metrics

	api := NewInstrumented(newTestSimulator(t, DefaultSimulatorConfig()), tel)
	ctx := context.Background()

	created, err := api.CreateFleet(ctx, createRequest(1))
	require.NoError(t, err)
	require.NotNil(t, created)

	_, err = api.DescribeFleets(ctx, &engine.DescribeFleetsRequest{FleetIDs: []string{"crf-0123456789abcdef0"}})
	require.Error(t, err)

	_, err = api.ModifyFleet(ctx, &engine.ModifyFleetRequest{FleetID: created.FleetID, TotalTargetCapacity: intPtr(2)})
	require.Error(t, err)

	expected := `
# HELP crfleet_control_plane_errors_total Total number of failed control plane calls
# TYPE crfleet_control_plane_errors_total counter
crfleet_control_plane_errors_total{call="DescribeCapacityReservationFleets",kind="NotFound"} 1
crfleet_control_plane_errors_total{call="ModifyCapacityReservationFleet",kind="NotStabilized"} 1
`
	err = testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "crfleet_control_plane_errors_total")
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(metrics.Registry(), "crfleet_control_plane_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestInstrumented_NilTelemetry(t *testing.T) {
	api := NewInstrumented(newTestSimulator(t, DefaultSimulatorConfig()), nil)

	resp, err := api.CancelFleets(context.Background(), &engine.CancelFleetsRequest{FleetIDs: []string{"crf-0123456789abcdef0"}})
	require.NoError(t, err)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, engine.ErrCodeFleetIDNotFound, resp.Failed[0].ErrorCode)
}
