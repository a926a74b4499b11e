package service

import (
	"testing"

	"github.com/frostu8/ring-channel/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDetermineVictor(t *testing.T) {
	tests := []struct {
		name         string
		participants []domain.Participant
		want         domain.Victor
	}{
		{
			name: "fastest finisher wins",
			participants: []domain.Participant{
				{Team: domain.TeamRed, FinishTime: ptr[int64](1200)},
				{Team: domain.TeamBlue, FinishTime: ptr[int64](1100)},
			},
			want: domain.Victor(domain.TeamBlue),
		},
		{
			name: "no contest is ignored even when fastest",
			participants: []domain.Participant{
				{Team: domain.TeamRed, FinishTime: ptr[int64](900), NoContest: true},
				{Team: domain.TeamBlue, FinishTime: ptr[int64](1100)},
			},
			want: domain.Victor(domain.TeamBlue),
		},
		{
			name: "teammates tied on time",
			participants: []domain.Participant{
				{Team: domain.TeamRed, FinishTime: ptr[int64](1000)},
				{Team: domain.TeamRed, FinishTime: ptr[int64](1000)},
				{Team: domain.TeamBlue, FinishTime: ptr[int64](1100)},
			},
			want: domain.Victor(domain.TeamRed),
		},
		{
			name: "tie between teams voids",
			participants: []domain.Participant{
				{Team: domain.TeamRed, FinishTime: ptr[int64](1000)},
				{Team: domain.TeamBlue, FinishTime: ptr[int64](1000)},
			},
			want: domain.VictorVoid,
		},
		{
			name: "nobody finished voids",
			participants: []domain.Participant{
				{Team: domain.TeamRed},
				{Team: domain.TeamBlue, FinishTime: ptr[int64](800), NoContest: true},
			},
			want: domain.VictorVoid,
		},
		{
			name: "later tie does not displace the leader",
			participants: []domain.Participant{
				{Team: domain.TeamRed, FinishTime: ptr[int64](900)},
				{Team: domain.TeamBlue, FinishTime: ptr[int64](1000)},
				{Team: domain.TeamRed, FinishTime: ptr[int64](1000)},
			},
			want: domain.Victor(domain.TeamRed),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineVictor(tt.participants))
		})
	}
}

func sumPayouts(payouts []domain.Payout) (payout, stake, delta int64) {
	for _, p := range payouts {
		payout += p.Payout
		stake += p.Stake
		delta += p.Delta
	}
	return
}

func TestComputePayoutsWinnerTakesLosingPool(t *testing.T) {
	wagers := []domain.Wager{
		{ID: 1, UserID: 1, Victor: domain.TeamRed, Mobiums: 100},
		{ID: 2, UserID: 2, Victor: domain.TeamBlue, Mobiums: 50},
	}

	payouts := ComputePayouts(domain.Victor(domain.TeamRed), wagers)
	require.Len(t, payouts, 2)

	assert.Equal(t, int64(150), payouts[0].Payout)
	assert.Equal(t, int64(50), payouts[0].Delta)
	assert.Equal(t, int64(0), payouts[1].Payout)
	assert.Equal(t, int64(-50), payouts[1].Delta)

	_, _, delta := sumPayouts(payouts)
	assert.Zero(t, delta)
}

func TestComputePayoutsRemainder(t *testing.T) {
	// 100 split 1:1:1 leaves one unit over; equal fractions go to the lowest id.
	wagers := []domain.Wager{
		{ID: 7, UserID: 1, Victor: domain.TeamBlue, Mobiums: 10},
		{ID: 3, UserID: 2, Victor: domain.TeamBlue, Mobiums: 10},
		{ID: 5, UserID: 3, Victor: domain.TeamBlue, Mobiums: 10},
		{ID: 9, UserID: 4, Victor: domain.TeamRed, Mobiums: 100},
	}

	payouts := ComputePayouts(domain.Victor(domain.TeamBlue), wagers)
	byID := make(map[int64]int64)
	for _, p := range payouts {
		byID[p.WagerID] = p.Payout
	}

	assert.Equal(t, int64(10+34), byID[3])
	assert.Equal(t, int64(10+33), byID[5])
	assert.Equal(t, int64(10+33), byID[7])
	assert.Equal(t, int64(0), byID[9])

	payout, stake, _ := sumPayouts(payouts)
	assert.Equal(t, stake, payout)
}

func TestComputePayoutsLargestFractionFirst(t *testing.T) {
	// Shares of 10 over stakes 1 and 2 are 3.33 and 6.67.
	wagers := []domain.Wager{
		{ID: 1, UserID: 1, Victor: domain.TeamRed, Mobiums: 1},
		{ID: 2, UserID: 2, Victor: domain.TeamRed, Mobiums: 2},
		{ID: 3, UserID: 3, Victor: domain.TeamBlue, Mobiums: 10},
	}

	payouts := ComputePayouts(domain.Victor(domain.TeamRed), wagers)
	assert.Equal(t, int64(1+3), payouts[0].Payout)
	assert.Equal(t, int64(2+7), payouts[1].Payout)
	assert.Equal(t, int64(0), payouts[2].Payout)
}

func TestComputePayoutsConservesTotal(t *testing.T) {
	stakes := []int64{7, 13, 1, 999, 42, 5, 31, 77, 2, 64}

	for _, victor := range []domain.Victor{domain.Victor(domain.TeamRed), domain.Victor(domain.TeamBlue), domain.VictorVoid} {
		wagers := make([]domain.Wager, len(stakes))
		for i, s := range stakes {
			wagers[i] = domain.Wager{ID: int64(i + 1), UserID: int64(i + 1), Victor: domain.Team(i % 2), Mobiums: s}
		}

		payouts := ComputePayouts(victor, wagers)
		payout, stake, delta := sumPayouts(payouts)
		assert.Equal(t, stake, payout, "victor %s", victor)
		assert.Zero(t, delta, "victor %s", victor)
		for _, p := range payouts {
			assert.GreaterOrEqual(t, p.Payout, int64(0))
		}
	}
}

func TestComputePayoutsRefunds(t *testing.T) {
	wagers := []domain.Wager{
		{ID: 1, UserID: 1, Victor: domain.TeamRed, Mobiums: 100},
		{ID: 2, UserID: 2, Victor: domain.TeamRed, Mobiums: 40},
	}

	t.Run("void", func(t *testing.T) {
		for _, p := range ComputePayouts(domain.VictorVoid, wagers) {
			assert.Equal(t, p.Stake, p.Payout)
			assert.Zero(t, p.Delta)
		}
	})

	t.Run("nobody backed the victor", func(t *testing.T) {
		for _, p := range ComputePayouts(domain.Victor(domain.TeamBlue), wagers) {
			assert.Equal(t, p.Stake, p.Payout)
			assert.Zero(t, p.Delta)
		}
	})

	t.Run("no wagers", func(t *testing.T) {
		assert.Empty(t, ComputePayouts(domain.Victor(domain.TeamRed), nil))
	})
}
