package reconciler

import (
	"context"
	"fmt"
	"testing"

	"github.com/agentstation/utc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/civicmap/internal/metrics"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/logging"
	"github.com/agentstation/civicmap/pkg/store"
)

func ptr[T any](v T) *T { return &v }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
}

func newTestReconciler(t *testing.T, opts ...Option) (Reconciler, store.Store) {
	t.Helper()
	s, err := store.OpenFile(t.TempDir())
	require.NoError(t, err)

	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	r, err := New(s, opts...)
	require.NoError(t, err)
	return r, s
}

func observationA() entities.Observation {
	return entities.Observation{
		ApplicationID: ptr("RZ 12-345678"),
		Address:       "100 Main St",
		Status:        entities.StatusApplied,
		Dates:         entities.Dates{AppliedDate: ptr("2020-01-01")},
		MinutesURLs: []entities.Provenance{
			{URL: "https://richmond.ca/minutes/2020-01-01.pdf", Date: "2020-01-01", Status: entities.StatusApplied},
		},
	}
}

func observationB() entities.Observation {
	return entities.Observation{
		ApplicationID: ptr("RZ 12-345678"),
		Address:       "100 Main St Unit 2",
		Status:        entities.StatusPublicHearing,
		Dates:         entities.Dates{PublicHearingDate: ptr("2020-03-15")},
		MinutesURLs: []entities.Provenance{
			{URL: "https://richmond.ca/minutes/2020-03-15.pdf", Date: "2020-03-15", Status: entities.StatusPublicHearing},
		},
	}
}

func TestReconcileLifecycleScenario(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, Batch{City: "Richmond", Type: entities.TypeRezoning, Observations: []entities.Observation{observationA()}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Metadata.Stats.Created)

	res, err = r.Reconcile(ctx, Batch{City: "Richmond", Type: entities.TypeRezoning, Observations: []entities.Observation{observationB()}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, OutcomeMerged, res.Items[0].Outcome)
	assert.Equal(t, "application_id", res.Items[0].Tier)

	list, err := s.List(entities.TypeRezoning, "Richmond")
	require.NoError(t, err)
	require.Len(t, list, 1)

	e1 := list[0]
	assert.Equal(t, "e1", e1.ID)
	assert.Equal(t, entities.StatusPublicHearing, e1.Status)
	assert.Equal(t, "2020-01-01", *e1.Dates.AppliedDate)
	assert.Equal(t, "2020-03-15", *e1.Dates.PublicHearingDate)
	assert.Len(t, e1.MinutesURLs, 2)
	assert.Empty(t, entities.Verify(list))
}

func TestReconcileWithinOneBatch(t *testing.T) {
	r, s := newTestReconciler(t)

	res, err := r.Reconcile(context.Background(), Batch{
		City:         "Richmond",
		Type:         entities.TypeRezoning,
		Observations: []entities.Observation{observationA(), observationB(), observationA()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Metadata.Stats.Created)
	assert.Equal(t, 2, res.Metadata.Stats.Merged)

	list, err := s.List(entities.TypeRezoning, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].MinutesURLs, 2, "re-merging A adds no provenance")
}

func TestReconcileSkips(t *testing.T) {
	log := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), log.Logger)
	r, s := newTestReconciler(t)

	noAddress := observationA()
	noAddress.Address = ""

	noStatus := observationA()
	noStatus.Address = "7 Elsewhere Rd"
	noStatus.ApplicationID = nil
	noStatus.Status = ""
	noStatus.MinutesURLs = nil

	otherCity := observationA()
	otherCity.City = "Surrey"

	res, err := r.Reconcile(ctx, Batch{
		City:         "Richmond",
		Type:         entities.TypeRezoning,
		Observations: []entities.Observation{noAddress, noStatus, otherCity},
	})
	require.NoError(t, err)

	stats := res.Metadata.Stats
	assert.Equal(t, 1, stats.MissingAddress)
	assert.Equal(t, 2, stats.Invalid)
	assert.Equal(t, 3, stats.Skipped())
	assert.False(t, res.HasChanges())
	assert.True(t, res.IsSuccess())
	assert.Len(t, res.Warnings, 3)
	log.AssertContains(t, "Skipping observation without address")

	list, err := s.List(entities.TypeRezoning, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReconcileSkipsMergeWithoutStatus(t *testing.T) {
	r, s := newTestReconciler(t)
	legacy := entities.Entity{
		ID:            "legacy",
		City:          "Richmond",
		Type:          entities.TypeRezoning,
		ApplicationID: ptr("RZ 99-000001"),
		Address:       "5 Oak St",
	}
	require.NoError(t, s.Add(legacy))

	obs := entities.Observation{
		ApplicationID: ptr("RZ 99-000001"),
		Address:       "5 Oak St",
		MinutesURLs:   []entities.Provenance{{URL: "https://richmond.ca/m/1", Date: "2021-05-01"}},
	}
	res, err := r.Reconcile(context.Background(), Batch{City: "Richmond", Type: entities.TypeRezoning, Observations: []entities.Observation{obs}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, OutcomeInvalid, res.Items[0].Outcome)
	assert.Equal(t, "legacy", res.Items[0].EntityID)
	assert.Len(t, res.Warnings, 1)

	got, err := s.Get(entities.TypeRezoning, "legacy")
	require.NoError(t, err)
	assert.Empty(t, got.MinutesURLs, "entity left untouched")
}

func TestReconcileDateFilter(t *testing.T) {
	r, _ := newTestReconciler(t)

	res, err := r.Reconcile(context.Background(), Batch{
		City:         "Richmond",
		Type:         entities.TypeRezoning,
		Start:        "2020-02-01",
		End:          "2020-04-01",
		Observations: []entities.Observation{observationA(), observationB()},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFiltered, res.Items[0].Outcome)
	assert.Equal(t, OutcomeCreated, res.Items[1].Outcome)

	_, err = r.Reconcile(context.Background(), Batch{City: "Richmond", Type: entities.TypeRezoning, Start: "2020-04-01", End: "2020-01-01"})
	assert.True(t, errors.IsValidationError(err))

	_, err = r.Reconcile(context.Background(), Batch{City: "Richmond", Type: entities.TypeRezoning, Start: "April"})
	assert.True(t, errors.IsValidationError(err))
}

func TestFilterBounds(t *testing.T) {
	f, err := newFilter("2020-01-01", "2020-02-01")
	require.NoError(t, err)

	assert.True(t, f.inRange("2020-01-01"), "start is inclusive")
	assert.True(t, f.inRange("2020-01-31"))
	assert.False(t, f.inRange("2020-02-01"), "end is exclusive")
	assert.False(t, f.inRange("2019-12-31"))
	assert.False(t, f.keep(entities.Observation{}), "undated observations need no filter")

	open, err := newFilter("", "")
	require.NoError(t, err)
	assert.True(t, open.keep(entities.Observation{}))
}

func TestReconcileSortsByRecency(t *testing.T) {
	r, s := newTestReconciler(t)

	older := entities.Observation{
		Address:     "1 First Ave",
		Status:      entities.StatusApplied,
		MinutesURLs: []entities.Provenance{{URL: "m1", Date: "2019-01-01", Status: entities.StatusApplied}},
	}
	undated := entities.Observation{Address: "2 Second Ave", Status: entities.StatusApplied}
	newer := entities.Observation{
		Address:     "3 Third Ave",
		Status:      entities.StatusApplied,
		MinutesURLs: []entities.Provenance{{URL: "m3", Date: "2022-01-01", Status: entities.StatusApplied}},
	}

	_, err := r.Reconcile(context.Background(), Batch{
		City:         "Burnaby",
		Type:         entities.TypeDevelopmentPermit,
		Observations: []entities.Observation{older, undated, newer},
	})
	require.NoError(t, err)

	list, err := s.List(entities.TypeDevelopmentPermit, "")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"3 Third Ave", "1 First Ave", "2 Second Ave"}, []string{list[0].Address, list[1].Address, list[2].Address})
}

// lostStore loses every entity between List and Replace.
type lostStore struct {
	store.Store
}

func (lostStore) Replace(e entities.Entity) error {
	return errors.NewNotFoundError("entity", e.ID)
}

func TestReconcileReplaceFailureIsPerObservation(t *testing.T) {
	inner, err := store.OpenFile(t.TempDir())
	require.NoError(t, err)
	r, err := New(lostStore{inner}, WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background(), Batch{City: "Richmond", Type: entities.TypeRezoning, Observations: []entities.Observation{observationA()}})
	require.NoError(t, err)

	other := observationA()
	other.Address = "999 Other Rd"
	other.ApplicationID = ptr("RZ 99-999999")

	res, err := r.Reconcile(context.Background(), Batch{
		City:         "Richmond",
		Type:         entities.TypeRezoning,
		Observations: []entities.Observation{observationB(), other},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Items[0].Outcome)
	assert.Equal(t, OutcomeCreated, res.Items[1].Outcome)
	require.Len(t, res.Errors, 1)
	assert.True(t, errors.IsNotFound(res.Errors[0]))
	assert.False(t, res.IsSuccess())
}

func TestReconcileRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)
	r, _ := newTestReconciler(t, WithMetrics(rec))

	_, err = r.Reconcile(context.Background(), Batch{
		City:         "Richmond",
		Type:         entities.TypeRezoning,
		Observations: []entities.Observation{observationA(), observationB()},
	})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "civicmap_observations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					counts[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"created": 1, "merged": 1}, counts)
}

func TestReconcileValidatesBatch(t *testing.T) {
	r, _ := newTestReconciler(t)

	_, err := r.Reconcile(context.Background(), Batch{City: "Richmond", Type: "variance"})
	assert.True(t, errors.IsValidationError(err))

	_, err = r.Reconcile(context.Background(), Batch{Type: entities.TypeRezoning})
	assert.True(t, errors.IsValidationError(err))

	_, err = New(nil)
	assert.Error(t, err)
}

func TestReplaceAll(t *testing.T) {
	now := utc.Now()
	r, s := newTestReconciler(t, WithClock(func() utc.Time { return now }))
	ctx := context.Background()

	_, err := r.Reconcile(ctx, Batch{City: "Richmond", Type: entities.TypeRezoning, Observations: []entities.Observation{observationA()}})
	require.NoError(t, err)
	_, err = r.Reconcile(ctx, Batch{City: "Surrey", Type: entities.TypeRezoning, Observations: []entities.Observation{observationA()}})
	require.NoError(t, err)

	replacement := []entities.Entity{{Address: "5 Fresh St", Status: entities.StatusApproved}}
	require.NoError(t, r.ReplaceAll(ctx, entities.TypeRezoning, "Richmond", replacement))

	richmond, err := s.List(entities.TypeRezoning, "Richmond")
	require.NoError(t, err)
	require.Len(t, richmond, 1)
	assert.Equal(t, "5 Fresh St", richmond[0].Address)
	assert.NotEmpty(t, richmond[0].ID)
	assert.Equal(t, now, richmond[0].UpdateDate)

	surrey, err := s.List(entities.TypeRezoning, "Surrey")
	require.NoError(t, err)
	assert.Len(t, surrey, 1, "other cities are untouched")

	assert.Error(t, r.ReplaceAll(ctx, entities.TypeRezoning, "", nil))
}
