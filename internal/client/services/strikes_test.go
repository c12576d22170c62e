package services

import (
	"context"
	"sync"
	"testing"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var violation = models.OutcomeConsentViolation{Guidance: "Please step back."}

func TestStrikeMachine_EscalationTerminates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.consentAll()
	h.begin("kora", 0)

	eff, err := h.strikes.Apply(ctx, violation, CooldownAssign)
	require.NoError(t, err)
	assert.Equal(t, StrikeEffect{Strike: 1, Cooldown: 30}, eff)
	assert.Equal(t, 30, h.cooldown.Remaining())
	assert.Equal(t, 1, h.session.Current().Strikes)
	assert.Equal(t, int32(0), h.terminations.Load())

	h.cooldown.Start(0)
	eff, err = h.strikes.Apply(ctx, violation, CooldownAssign)
	require.NoError(t, err)
	assert.Equal(t, StrikeEffect{Strike: 2, Cooldown: 60}, eff)
	assert.Equal(t, 60, h.cooldown.Remaining())
	assert.Equal(t, int32(0), h.terminations.Load())

	h.cooldown.Start(0)
	eff, err = h.strikes.Apply(ctx, violation, CooldownAssign)
	require.NoError(t, err)
	assert.True(t, eff.Terminated)
	assert.Equal(t, 3, eff.Strike)
	assert.Equal(t, int32(1), h.terminations.Load())
	assert.Empty(t, h.keys())

	_, err = h.strikes.Apply(ctx, violation, CooldownAssign)
	require.ErrorIs(t, err, common.ErrTerminated)
	_, err = h.strikes.Apply(ctx, models.OutcomeOK{Response: "late"}, CooldownAssign)
	require.ErrorIs(t, err, common.ErrTerminated)
	assert.Equal(t, int32(1), h.terminations.Load())
}

func TestStrikeMachine_AllowlistedNeverWiped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.consentAll()
	h.allow("kora")
	h.begin("kora", 0)

	for i := 1; i <= 4; i++ {
		h.cooldown.Start(0)
		eff, err := h.strikes.Apply(ctx, violation, CooldownAssign)
		require.NoError(t, err)
		assert.Equal(t, i, eff.Strike)
		assert.False(t, eff.Terminated)
		assert.Equal(t, i >= 3, eff.LockedOut)
	}

	assert.Equal(t, int32(0), h.terminations.Load())
	assert.False(t, h.term.Terminated())
	stored, _ := h.stored()
	assert.Equal(t, 4, stored.Strikes)
	require.ErrorIs(t, h.strikes.Gate(), ErrLockedOut)
	assert.NotEmpty(t, h.notes.Messages())
}

func TestStrikeMachine_RecordsTimestamp(t *testing.T) {
	h := newHarness(t)
	h.begin("kora", 0)

	_, err := h.strikes.RecordViolation(context.Background(), CooldownAssign)
	require.NoError(t, err)
	u, sum := h.stored()
	require.NotNil(t, u.LastStrikeTimestamp)
	assert.True(t, u.LastStrikeTimestamp.Equal(baseTime))
	assert.Equal(t, models.Checksum(u), sum)
}

func TestStrikeMachine_Tampering(t *testing.T) {
	t.Run("regular user is wiped", func(t *testing.T) {
		h := newHarness(t)
		h.consentAll()
		h.begin("kora", 0)

		eff, err := h.strikes.Apply(context.Background(), models.OutcomeSuspectedTampering{}, CooldownAssign)
		require.NoError(t, err)
		assert.True(t, eff.Terminated)
		assert.Empty(t, h.keys())
		assert.Equal(t, "tampering suspected by entity", h.term.Reason())
	})

	t.Run("allowlisted user is warned", func(t *testing.T) {
		h := newHarness(t)
		h.consentAll()
		h.allow("kora")
		h.begin("kora", 0)

		eff, err := h.strikes.Apply(context.Background(), models.OutcomeSuspectedTampering{}, CooldownAssign)
		require.NoError(t, err)
		assert.Equal(t, StrikeEffect{TamperWarned: true}, eff)
		assert.False(t, h.term.Terminated())
		assert.Len(t, h.notes.Messages(), 1)
		assert.Equal(t, 0, h.session.Current().Strikes)
	})
}

func TestStrikeMachine_OKHasNoEffect(t *testing.T) {
	h := newHarness(t)
	h.begin("kora", 1)

	eff, err := h.strikes.Apply(context.Background(), models.OutcomeOK{Response: "hi"}, CooldownAssign)
	require.NoError(t, err)
	assert.Equal(t, StrikeEffect{}, eff)
	assert.Equal(t, 1, h.session.Current().Strikes)
	assert.Zero(t, h.cooldown.Remaining())
}

func TestStrikeMachine_Gate(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.strikes.Gate(), common.ErrNoSession)

	h.begin("kora", 0)
	require.NoError(t, h.strikes.Gate())

	h.cooldown.Start(5)
	err := h.strikes.Gate()
	require.ErrorIs(t, err, ErrCooldownActive)
	assert.Contains(t, err.Error(), "5s")

	h.cooldown.Start(0)
	require.NoError(t, h.term.Terminate(context.Background(), "test"))
	require.ErrorIs(t, h.strikes.Gate(), common.ErrTerminated)
}

func TestStrikeMachine_GroupModeNeverShortens(t *testing.T) {
	h := newHarness(t)
	h.begin("kora", 0)
	h.cooldown.Start(45)

	eff, err := h.strikes.RecordViolation(context.Background(), CooldownMax)
	require.NoError(t, err)
	assert.Equal(t, 30, eff.Cooldown)
	assert.Equal(t, 45, h.cooldown.Remaining())

	eff, err = h.strikes.RecordViolation(context.Background(), CooldownMax)
	require.NoError(t, err)
	assert.Equal(t, 60, eff.Cooldown)
	assert.Equal(t, 60, h.cooldown.Remaining())
}

func TestStrikeMachine_ConcurrentViolationsAreNumberedSerially(t *testing.T) {
	h := newHarness(t)
	h.allow("kora")
	h.begin("kora", 0)

	const n = 6
	got := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eff, err := h.strikes.RecordViolation(context.Background(), CooldownMax)
			assert.NoError(t, err)
			got[i] = eff.Strike
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, got)
	assert.Equal(t, n, h.session.Current().Strikes)
}
