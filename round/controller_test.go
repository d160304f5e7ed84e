package round

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"courserush/config"
	"courserush/course"
	"courserush/store"
)

const waitFor = 2 * time.Second

func TestEndToEndMazeRound(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	c := f.c
	require.True(t, c.Join(ctx, "p1"))
	f.start(t)

	f.ticker.tick(t, 12)
	require.Eventually(t, func() bool { return c.Phase() == PhaseVoting }, waitFor, time.Millisecond)
	assert.ElementsMatch(t, testConfig().CourseTypes, c.Status().Ballot)
	require.NoError(t, c.SubmitVote("p1", course.TypeMaze))

	f.ticker.tick(t, 8)
	require.Eventually(t, func() bool { return c.Phase() == PhaseRun }, waitFor, time.Millisecond)

	res := c.Course()
	require.NotNil(t, res)
	assert.Equal(t, course.TypeMaze, res.Type)
	finishes := 0
	for _, e := range f.arena.Elements() {
		if e.Kind == course.KindFinish {
			finishes++
		}
	}
	assert.Equal(t, 1, finishes)
	require.NotEmpty(t, res.Sections)
	assert.Equal(t, "maze", res.Sections[0].Name)
	assert.Equal(t, 8, res.Sections[0].Count)
	p, _ := c.Roster().Get("p1")
	assert.Equal(t, res.Start, p.Pose)

	f.ticker.tick(t, 40)
	require.True(t, c.Touch(res.Finish.ID, "p1"))
	require.True(t, c.Touch(res.Finish.ID, "p1"))
	f.ticker.tick(t, 80)

	podium := PodiumCenter.Offset(0, 5, 0)
	require.Eventually(t, func() bool {
		p, _ := c.Roster().Get("p1")
		return c.Phase() == PhaseResults && p.Pose == podium
	}, waitFor, time.Millisecond)
	assert.Equal(t, []string{"p1"}, c.Finishers())
	assert.Equal(t, int64(25), c.balances.Get(ctx, "p1"))
	assert.Equal(t, int64(1), c.wins.GetWins(ctx, "p1"))
	assert.Equal(t, 1, f.presenter.finishCount())

	f.ticker.tick(t, 6)
	require.Eventually(t, func() bool {
		return c.Phase() == PhaseLobby && f.arena.Len() == 0 && c.Course() == nil
	}, waitFor, time.Millisecond)
	assert.Empty(t, c.Status().Finishers)
	assert.Equal(t, int64(1), c.Status().Round)
}

func TestLobbyHoldsWithoutParticipants(t *testing.T) {
	f := newFixture(t, testConfig())
	f.start(t)

	f.ticker.tick(t, 13)
	require.Eventually(t, func() bool { return f.c.Status().Remaining == 11 }, waitFor, time.Millisecond)
	assert.Equal(t, PhaseLobby, f.c.Phase())
}

func TestLobbyHoldsWithEmptyCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.CourseTypes = nil
	f := newFixture(t, cfg)
	f.c.Join(context.Background(), "p1")
	f.start(t)

	f.ticker.tick(t, 25)
	assert.Equal(t, PhaseLobby, f.c.Phase())
}

func TestLobbyHoldsWhenEveryoneAway(t *testing.T) {
	f := newFixture(t, testConfig())
	f.c.Join(context.Background(), "p1")
	_, err := f.c.ToggleAway("p1")
	require.NoError(t, err)
	f.start(t)

	f.ticker.tick(t, 13)
	assert.Equal(t, PhaseLobby, f.c.Phase())
}

func TestReportFinishCreditsOnce(t *testing.T) {
	bal := &MockBalances{}
	bal.On("Award", mock.Anything, "p1", int64(25)).Return(int64(25)).Once()
	bal.On("Get", mock.Anything, "p1").Return(int64(25))

	mem := store.NewMemory()
	c := NewController(testConfig(), course.NewArena(nil), course.NewRand(1), Deps{
		Balances: bal,
		Wins:     store.NewWins(mem, store.Options{}),
	})
	c.phase.Store(int32(PhaseRun))
	c.Roster().Join("p1", LobbyPose)

	ctx := context.Background()
	assert.True(t, c.ReportFinish(ctx, "p1"))
	assert.False(t, c.ReportFinish(ctx, "p1"))

	assert.Equal(t, []string{"p1"}, c.Finishers())
	bal.AssertNumberOfCalls(t, "Award", 1)
	bal.AssertExpectations(t)
	assert.Equal(t, int64(1), c.wins.GetWins(ctx, "p1"))
}

func TestReportFinishIgnoredOutsideRun(t *testing.T) {
	c := NewController(testConfig(), course.NewArena(nil), course.NewRand(1), Deps{})
	for _, p := range []Phase{PhaseLobby, PhaseVoting, PhaseBuild, PhaseResults, PhaseCleanup} {
		c.phase.Store(int32(p))
		assert.False(t, c.ReportFinish(context.Background(), "p1"), p.String())
	}
	assert.Empty(t, c.Finishers())
}

func TestReportFinishRequiresParticipant(t *testing.T) {
	f := newFixture(t, testConfig())
	c := f.c
	ctx := context.Background()
	c.phase.Store(int32(PhaseRun))

	assert.False(t, c.ReportFinish(ctx, "ghost"))
	assert.Empty(t, c.Finishers())
	assert.Equal(t, int64(0), c.balances.Get(ctx, "ghost"))
	assert.Equal(t, int64(0), c.wins.GetWins(ctx, "ghost"))

	// 离开名单后不再计入，名次与首名奖励留给仍在场的人
	c.Roster().Join("left", LobbyPose)
	c.Roster().Join("p1", LobbyPose)
	c.Leave("left")
	assert.False(t, c.ReportFinish(ctx, "left"))
	require.True(t, c.ReportFinish(ctx, "p1"))
	assert.Equal(t, []string{"p1"}, c.Finishers())
	assert.Equal(t, int64(25), c.balances.Get(ctx, "p1"))

	// away 仍可完成
	c.Roster().Join("idle", LobbyPose)
	_, err := c.ToggleAway("idle")
	require.NoError(t, err)
	assert.True(t, c.ReportFinish(ctx, "idle"))
	assert.Equal(t, []string{"p1", "idle"}, c.Finishers())
}

func TestConcurrentFinishes(t *testing.T) {
	f := newFixture(t, testConfig())
	c := f.c
	c.phase.Store(int32(PhaseRun))
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		c.Roster().Join(id, LobbyPose)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				c.ReportFinish(context.Background(), id)
			}(id)
		}
	}
	wg.Wait()

	assert.ElementsMatch(t, ids, c.Finishers())
	var total int64
	for _, id := range ids {
		total += c.balances.Get(context.Background(), id)
	}
	assert.Equal(t, int64(25+4*10), total)
	assert.Equal(t, len(ids), f.presenter.finishCount())
}

func TestSubmitVote(t *testing.T) {
	c := NewController(testConfig(), course.NewArena(nil), course.NewRand(1), Deps{})
	assert.ErrorIs(t, c.SubmitVote("p1", course.TypeMaze), ErrNotVoting)

	c.mu.Lock()
	c.ballot = []string{course.TypeMaze, course.TypeClassic}
	c.mu.Unlock()
	c.phase.Store(int32(PhaseVoting))

	assert.ErrorIs(t, c.SubmitVote("p1", course.TypeCannon), ErrUnknownOption)
	assert.NoError(t, c.SubmitVote("p1", course.TypeMaze))
	assert.NoError(t, c.SubmitVote("p1", course.TypeClassic))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, map[string]string{"p1": course.TypeClassic}, c.votes)
}

func TestAwayExcludedFromTallyAndRelocation(t *testing.T) {
	f := newFixture(t, testConfig())
	c := f.c
	ctx := context.Background()
	c.Join(ctx, "here")
	c.Join(ctx, "gone")
	c.ToggleAway("gone")

	c.mu.Lock()
	c.ballot = []string{course.TypeMaze, course.TypeClassic}
	c.votes = map[string]string{"here": course.TypeClassic, "gone": course.TypeMaze}
	c.mu.Unlock()

	c.buildCourse()
	res := c.Course()
	require.NotNil(t, res)
	assert.Equal(t, course.TypeClassic, res.Type)

	here, _ := c.Roster().Get("here")
	gone, _ := c.Roster().Get("gone")
	assert.Equal(t, res.Start, here.Pose)
	assert.Equal(t, LobbyPose, gone.Pose)
}

func TestHazardRespawnsAtCheckpoint(t *testing.T) {
	f := newFixture(t, testConfig())
	c := f.c
	ctx := context.Background()
	c.Join(ctx, "p1")
	c.mu.Lock()
	c.build = &course.BuildResult{Start: course.Pose{Pos: course.Vec3{Z: 5}}}
	c.mu.Unlock()
	c.phase.Store(int32(PhaseRun))

	c.handle(ctx, contact{kind: contactHazard, participant: "p1"})
	p, _ := c.Roster().Get("p1")
	assert.Equal(t, course.Pose{Pos: course.Vec3{Z: 5}}, p.Pose)

	cp := &course.Element{Base: course.Pose{Pos: course.Vec3{Z: 40}}}
	c.handle(ctx, contact{kind: contactCheckpoint, participant: "p1", element: cp})
	c.handle(ctx, contact{kind: contactImpulse, participant: "p1", impulse: course.Vec3{X: 4}})
	p, _ = c.Roster().Get("p1")
	assert.Equal(t, course.Vec3{X: 4}, p.Velocity)

	c.handle(ctx, contact{kind: contactHazard, participant: "p1"})
	p, _ = c.Roster().Get("p1")
	assert.Equal(t, course.Pose{Pos: course.Vec3{Y: 3, Z: 40}}, p.Pose)

	// Run 之外忽略
	c.phase.Store(int32(PhaseResults))
	c.handle(ctx, contact{kind: contactImpulse, participant: "p1", impulse: course.Vec3{X: 4}})
	p, _ = c.Roster().Get("p1")
	assert.Equal(t, course.Vec3{}, p.Velocity)
}

func TestContactQueueDropsWhenFull(t *testing.T) {
	c := NewController(testConfig(), course.NewArena(nil), course.NewRand(1), Deps{})
	sink := contactSink{c}
	for i := 0; i < eventQueueSize+10; i++ {
		sink.FinishReached("p1")
	}
	assert.Len(t, c.events, eventQueueSize)
}

func TestUpdateRound(t *testing.T) {
	c := NewController(testConfig(), course.NewArena(nil), course.NewRand(1), Deps{})

	r := c.Config().Round
	r.RunSeconds = 60
	require.NoError(t, c.UpdateRound(r))
	assert.Equal(t, 60, c.Config().Round.RunSeconds)

	r.LobbySeconds = -1
	err := c.UpdateRound(r)
	assert.Error(t, err)
	assert.Equal(t, 12, c.Config().Round.LobbySeconds)

	r.LobbySeconds = 12
	r.BallotSize = 9
	assert.Error(t, c.UpdateRound(r))
	assert.Equal(t, 3, c.Config().Round.BallotSize)

	require.NoError(t, c.UpdateCatalog([]string{course.TypeCannon}))
	assert.Equal(t, []string{course.TypeCannon}, c.Config().CourseTypes)
	assert.Equal(t, []string{course.TypeCannon}, c.assembler.Catalog())
}

func TestUpdateCatalogRejectsInvalid(t *testing.T) {
	c := NewController(testConfig(), course.NewArena(nil), course.NewRand(1), Deps{})
	want := testConfig().CourseTypes

	assert.Error(t, c.UpdateCatalog([]string{course.TypeMaze, course.TypeMaze, course.TypeMaze}))
	assert.Error(t, c.UpdateCatalog([]string{course.TypeMaze, "Lava"}))
	assert.Error(t, c.UpdateCatalog([]string{""}))
	assert.Equal(t, want, c.Config().CourseTypes)
	assert.Equal(t, want, c.assembler.Catalog())

	// 选票中的课程类型互不相同
	for i := 0; i < 50; i++ {
		b := DrawBallot(c.assembler.Catalog(), c.Config().Round.BallotSize, c.rng)
		require.Len(t, b, 3)
		assert.Len(t, map[string]bool{b[0]: true, b[1]: true, b[2]: true}, 3)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.c.Run(ctx) }()
	f.ticker.tick(t, 3)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, f.arena.Len())
}

func TestStatusDefaults(t *testing.T) {
	c := NewController(config.Default(), course.NewArena(nil), course.NewRand(1), Deps{})
	st := c.Status()
	assert.Equal(t, "lobby", st.Phase)
	assert.NotNil(t, st.Finishers)
	assert.Nil(t, c.Course())
}
