package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caraudio-league/points-engine/internal/achievements"
	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/models"
)

type recalcFixture struct {
	seasonID      uuid.UUID
	event         *models.Event
	events        *memoryEvents
	results       *memoryResults
	configs       *stubConfigs
	gate          *stubGate
	achievements  *recordingAchievements
	qualification *recordingQualification
	tx            *inlineTx
	recalc        *PointsRecalculator
	clock         time.Time
}

func newRecalcFixture(multiplier *int) *recalcFixture {
	seasonID := uuid.New()
	event := &models.Event{ID: uuid.New(), Title: "Spring Shootout", SeasonID: &seasonID, PointsMultiplier: multiplier}
	f := &recalcFixture{
		seasonID:      seasonID,
		event:         event,
		events:        &memoryEvents{events: []*models.Event{event}},
		results:       &memoryResults{},
		configs:       &stubConfigs{},
		gate:          newStubGate(),
		achievements:  &recordingAchievements{},
		qualification: &recordingQualification{},
		tx:            &inlineTx{},
		clock:         time.Date(2026, 4, 11, 9, 0, 0, 0, time.UTC),
	}
	f.recalc = NewPointsRecalculator(f.events, f.results, f.configs, f.gate, f.achievements, f.qualification, f.tx, logger.NewNopLogger())
	return f
}

// addResult stores a result for the fixture event. Member ids that are not guest
// sentinels get a linked, eligible profile.
func (f *recalcFixture) addResult(memberID, class, format, score string) *models.CompetitionResult {
	return f.addResultTo(f.event, memberID, class, format, score)
}

func (f *recalcFixture) addResultTo(event *models.Event, memberID, class, format, score string) *models.CompetitionResult {
	f.clock = f.clock.Add(time.Minute)
	r := &models.CompetitionResult{
		ID:               uuid.New(),
		EventID:          event.ID,
		SeasonID:         event.SeasonID,
		CompetitorName:   "Competitor " + memberID,
		MemberID:         memberID,
		CompetitionClass: class,
		Format:           format,
		Score:            decimal.RequireFromString(score),
		CreatedAt:        f.clock,
	}
	if memberID != "" && memberID != "999999" && memberID != "0" {
		profileID := uuid.New()
		r.CompetitorID = &profileID
		f.gate.members[memberID] = true
		f.gate.profiles[profileID] = true
	}
	if err := f.results.Create(context.Background(), r); err != nil {
		panic(err)
	}
	return r
}

func intPtr(v int) *int {
	return &v
}

func TestRecalculateEvent_EndToEnd(t *testing.T) {
	f := newRecalcFixture(intPtr(2))
	defs := &memoryDefinitions{defs: []*models.AchievementDefinition{
		threshold("Headrest 130", 130),
		threshold("Headrest 140", 140),
		threshold("Headrest 150", 150),
	}}
	recipients := &memoryRecipients{}
	awarder := achievements.NewAwarder(achievements.AwarderDeps{
		Definitions: defs,
		Recipients:  recipients,
		Eligibility: f.gate,
		Tx:          f.tx,
		Logger:      logger.NewNopLogger(),
	})
	recalc := NewPointsRecalculator(f.events, f.results, f.configs, f.gate, awarder, f.qualification, f.tx, logger.NewNopLogger())

	first := f.addResult("100001", "Street 1", "SPL", "150.5")
	second := f.addResult("100002", "Street 1", "SPL", "150.5")
	third := f.addResult("100003", "Street 1", "SPL", "140")
	fourth := f.addResult("100004", "Street 1", "SPL", "130")

	out, err := recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Groups)
	assert.Equal(t, 4, out.ResultsUpdated)
	assert.Equal(t, 4, out.AchievementsAwarded)
	assert.Equal(t, 1, f.gate.refreshes)

	tests := []struct {
		result    *models.CompetitionResult
		placement int
		points    int
		award     string
	}{
		{first, 1, 10, "Headrest 150"},
		{second, 2, 8, "Headrest 150"},
		{third, 3, 6, "Headrest 140"},
		{fourth, 4, 4, "Headrest 130"},
	}
	for _, tt := range tests {
		stored := f.results.byID(tt.result.ID)
		assert.Equal(t, tt.placement, stored.Placement, tt.result.MemberID)
		assert.Equal(t, tt.points, stored.PointsEarned, tt.result.MemberID)
		assert.Equal(t, []string{tt.award}, recipients.heldBy(*tt.result.CompetitorID), tt.result.MemberID)
	}
}

func TestRecalculateEvent_Idempotent(t *testing.T) {
	f := newRecalcFixture(nil)
	f.addResult("100001", "Street 1", "SPL", "120")
	f.addResult("100002", "Street 1", "SPL", "131.2")
	f.addResult("100003", "Street 1", "SPL", "120")
	f.addResult("100004", "Street 2", "SPL", "99")
	f.addResult("100005", "Stock", "SQL", "80")

	first, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	snapshot, _ := f.results.GetByEventID(context.Background(), f.event.ID)

	second, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	again, _ := f.results.GetByEventID(context.Background(), f.event.ID)

	assert.Equal(t, first.Updates, second.Updates)
	assert.Equal(t, snapshot, again)
	assert.Equal(t, 3, first.Groups)
}

func TestRecalculateEvent_TiesKeepInsertionOrder(t *testing.T) {
	f := newRecalcFixture(intPtr(1))
	a := f.addResult("100001", "Street 1", "SPL", "140")
	b := f.addResult("100002", "Street 1", "SPL", "140.0")
	c := f.addResult("100003", "Street 1", "SPL", "141")

	_, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.results.byID(c.ID).Placement)
	assert.Equal(t, 2, f.results.byID(a.ID).Placement)
	assert.Equal(t, 3, f.results.byID(b.ID).Placement)
}

func TestRecalculateEvent_Eligibility(t *testing.T) {
	f := newRecalcFixture(intPtr(3))
	lapsed := f.addResult("100001", "Street 1", "SPL", "150")
	guest := f.addResult("999999", "Street 1", "SPL", "145")
	member := f.addResult("100002", "Street 1", "SPL", "140")
	test := f.addResult("990123", "Street 1", "SPL", "139")
	f.gate.members["100001"] = false
	f.gate.members["990123"] = true

	_, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	// ineligible entries keep their placement but earn nothing
	tests := []struct {
		result    *models.CompetitionResult
		placement int
		points    int
	}{
		{lapsed, 1, 0},
		{guest, 2, 0},
		{member, 3, 9},
		{test, 4, 0},
	}
	for _, tt := range tests {
		stored := f.results.byID(tt.result.ID)
		assert.Equal(t, tt.placement, stored.Placement, tt.result.MemberID)
		assert.Equal(t, tt.points, stored.PointsEarned, tt.result.MemberID)
	}
}

func TestRecalculateEvent_Formats(t *testing.T) {
	f := newRecalcFixture(intPtr(2))
	linked := f.addResult("100001", "Stock", "", "80")
	linked.ClassFormat = "sql"
	require.NoError(t, f.results.Update(context.Background(), linked))

	unscored := f.addResult("100002", "Bass Race", "DB Drag", "155")
	unscored.Placement, unscored.PointsEarned = 7, 5
	require.NoError(t, f.results.Update(context.Background(), unscored))

	noFormat := f.addResult("100003", "Street 1", "", "120")

	out, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Groups)
	assert.Equal(t, 3, out.ResultsUpdated)

	stored := f.results.byID(linked.ID)
	assert.Equal(t, 1, stored.Placement)
	assert.Equal(t, 10, stored.PointsEarned)

	stored = f.results.byID(unscored.ID)
	assert.Equal(t, 7, stored.Placement)
	assert.Equal(t, 0, stored.PointsEarned)

	stored = f.results.byID(noFormat.ID)
	assert.Equal(t, 0, stored.Placement)
	assert.Equal(t, 0, stored.PointsEarned)
}

func TestRecalculateEvent_FourX(t *testing.T) {
	f := newRecalcFixture(intPtr(4))
	cfg := models.DefaultPointsConfiguration(f.seasonID, "2026 Season")
	cfg.FourXExtendedEnabled = true
	cfg.FourXExtendedMaxPlace = 6
	f.configs.cfg = cfg

	var ids []uuid.UUID
	for i, score := range []string{"160", "155", "150", "145", "140", "135", "130"} {
		r := f.addResult(string(rune('A'+i))+"10001", "Street 1", "SPL", score)
		ids = append(ids, r.ID)
	}

	_, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	want := []int{30, 27, 24, 21, 18, 15, 0}
	for i, id := range ids {
		assert.Equal(t, want[i], f.results.byID(id).PointsEarned, "placement %d", i+1)
	}
}

func TestRecalculateEvent_NonCompetitive(t *testing.T) {
	f := newRecalcFixture(intPtr(0))
	r := f.addResult("100001", "Street 1", "SPL", "150")

	out, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.results.byID(r.ID).Placement)
	assert.Equal(t, 0, f.results.byID(r.ID).PointsEarned)
	require.Len(t, f.achievements.checked, 1)
	assert.Equal(t, 0, f.achievements.checked[0].EventMultiplier)
	assert.Equal(t, 0, out.Multiplier)
}

func TestRecalculateEvent_DownstreamChecks(t *testing.T) {
	f := newRecalcFixture(nil)
	a := f.addResult("100001", "Street 1", "SPL", "150")
	f.addResult("100001", "Street 1", "SPL", "120")
	f.addResult("100001", "Street 2", "SPL", "120")
	f.addResult("999999", "Street 1", "SPL", "110")
	f.addResult("100002", "Street 1", "SPL", "100")
	f.achievements.failFor = map[uuid.UUID]bool{a.ID: true}
	f.qualification.err = errors.New("qualification store offline")

	out, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"100001/Street 1", "100001/Street 2", "100002/Street 1"}, f.qualification.calls)

	// the guest entry has no profile and is never checked
	assert.Len(t, f.achievements.checked, 4)
	assert.Equal(t, 1, out.AchievementFailures)
	for _, checked := range f.achievements.checked {
		assert.NotZero(t, checked.Placement, "checks run after placements are assigned")
		assert.Equal(t, models.DefaultEventMultiplier, checked.EventMultiplier)
	}
}

func TestRecalculateEvent_Failures(t *testing.T) {
	t.Run("unknown event", func(t *testing.T) {
		f := newRecalcFixture(nil)
		_, err := f.recalc.RecalculateEvent(context.Background(), uuid.New())

		var nf *models.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "event", nf.Entity)
	})

	t.Run("persist failure skips downstream checks", func(t *testing.T) {
		f := newRecalcFixture(nil)
		f.addResult("100001", "Street 1", "SPL", "150")
		f.results.placeErr = errors.New("deadlock detected")

		_, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
		require.Error(t, err)
		assert.Empty(t, f.achievements.checked)
		assert.Empty(t, f.qualification.calls)
	})

	t.Run("eligibility unavailable", func(t *testing.T) {
		f := newRecalcFixture(nil)
		f.addResult("100001", "Street 1", "SPL", "150")
		f.gate.err = errors.New("membership lookup failed")

		_, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
		require.Error(t, err)
		assert.Equal(t, 0, f.results.batches)
	})

	t.Run("missing configuration uses defaults", func(t *testing.T) {
		f := newRecalcFixture(nil)
		r := f.addResult("100001", "Street 1", "SPL", "150")
		f.configs.degraded = true

		out, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
		require.NoError(t, err)
		assert.True(t, out.DefaultConfig)
		assert.Equal(t, 10, f.results.byID(r.ID).PointsEarned)
	})

	t.Run("event without results", func(t *testing.T) {
		f := newRecalcFixture(nil)
		out, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, out.ResultsUpdated)
		assert.Equal(t, 0, f.results.batches)
		assert.Empty(t, f.achievements.checked)
	})
}

func TestRecalculateSeason(t *testing.T) {
	f := newRecalcFixture(nil)
	other := &models.Event{ID: uuid.New(), SeasonID: &f.seasonID}
	elsewhere := &models.Event{ID: uuid.New()}
	f.events.events = append(f.events.events, other, elsewhere)

	f.addResult("100001", "Street 1", "SPL", "150")
	f.addResult("100002", "Street 1", "SPL", "140")
	f.addResultTo(other, "100003", "Street 1", "SPL", "130")
	f.addResultTo(elsewhere, "100004", "Street 1", "SPL", "120")

	summary, err := f.recalc.RecalculateSeason(context.Background(), f.seasonID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.EventsProcessed)
	assert.Equal(t, 3, summary.ResultsUpdated)
	assert.Equal(t, 0, summary.Failures)
	assert.Equal(t, 1, f.gate.refreshes)
}

func TestRecalculateAll(t *testing.T) {
	f := newRecalcFixture(nil)
	other := &models.Event{ID: uuid.New()}
	f.events.events = append(f.events.events, other)
	f.addResult("100001", "Street 1", "SPL", "150")
	f.addResultTo(other, "100002", "Street 1", "SPL", "140")

	summary, err := f.recalc.RecalculateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &BulkRecalculation{Processed: 2}, summary)
	assert.Equal(t, 1, f.gate.refreshes)
}

func TestUpdateConfigAndRecalculate(t *testing.T) {
	f := newRecalcFixture(intPtr(2))
	r := f.addResult("100001", "Street 1", "SPL", "150")

	cfg, summary, err := f.recalc.UpdateConfigAndRecalculate(context.Background(), f.seasonID, &models.PointsConfigurationInput{
		Standard1stPlace: intPtr(20),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Standard1stPlace)
	assert.Equal(t, 1, summary.EventsProcessed)
	assert.Equal(t, 40, f.results.byID(r.ID).PointsEarned)
	assert.Equal(t, 1, f.configs.updates)
}

func TestRecalculateEvent_ReadsAndPersistsInOneTransaction(t *testing.T) {
	f := newRecalcFixture(nil)
	f.addResult("100001", "Street 1", "SPL", "150")
	f.addResult("100002", "Street 1", "SPL", "140")

	_, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)

	require.Len(t, f.results.lockedIn, 1)
	require.Len(t, f.results.placedIn, 1)
	assert.NotZero(t, f.results.lockedIn[0], "results must be read inside the transaction")
	assert.Equal(t, f.results.lockedIn[0], f.results.placedIn[0])
}

func TestRecalculateEvent_ResultAddedAfterReadWaitsForNextPass(t *testing.T) {
	f := newRecalcFixture(nil)
	f.addResult("100001", "Street 1", "SPL", "150")

	// a result arriving once the event is locked is ranked by its own recalculation
	var late *models.CompetitionResult
	f.results.onLock = func() {
		f.results.onLock = nil
		late = f.addResult("100002", "Street 1", "SPL", "160")
	}

	out, err := f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.ResultsUpdated)
	assert.Equal(t, 0, f.results.byID(late.ID).Placement)

	out, err = f.recalc.RecalculateEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, out.ResultsUpdated)
	assert.Equal(t, 1, f.results.byID(late.ID).Placement)
}
