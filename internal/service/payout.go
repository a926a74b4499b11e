package service

import (
	"math/big"
	"sort"

	"github.com/frostu8/ring-channel/internal/domain"
)

// DetermineVictor picks the team of the fastest finisher among participants
// that are not no-contest. A tie between teams, or nobody finishing, voids the
// battle.
func DetermineVictor(participants []domain.Participant) domain.Victor {
	var best *int64
	teams := make(map[domain.Team]struct{}, 2)
	for _, p := range participants {
		if p.NoContest || p.FinishTime == nil {
			continue
		}
		switch {
		case best == nil || *p.FinishTime < *best:
			best = p.FinishTime
			clear(teams)
			teams[p.Team] = struct{}{}
		case *p.FinishTime == *best:
			teams[p.Team] = struct{}{}
		}
	}

	if len(teams) != 1 {
		return domain.VictorVoid
	}
	for team := range teams {
		return domain.Victor(team)
	}
	return domain.VictorVoid
}

// ComputePayouts resolves wagers pari-mutuel. Winners get their stake back
// plus a share of the losing pool proportional to their stake; losers get
// nothing. Shares are floored and the leftover units go one each to the
// winners with the largest fractional share, then the lowest wager id. A void
// battle, or one nobody backed, refunds every stake. The payouts always sum to
// the total staked.
func ComputePayouts(victor domain.Victor, wagers []domain.Wager) []domain.Payout {
	payouts := make([]domain.Payout, len(wagers))
	var winPool, losePool int64
	for i, w := range wagers {
		payouts[i] = domain.Payout{
			WagerID: w.ID,
			UserID:  w.UserID,
			Victor:  w.Victor,
			Stake:   w.Mobiums,
		}
		if !victor.IsVoid() && domain.Victor(w.Victor) == victor {
			winPool += w.Mobiums
		} else {
			losePool += w.Mobiums
		}
	}

	if victor.IsVoid() || winPool == 0 {
		for i := range payouts {
			payouts[i].Payout = payouts[i].Stake
		}
		return payouts
	}

	type share struct {
		index int
		frac  *big.Int
	}
	var (
		shares      []share
		distributed int64
		lose        = big.NewInt(losePool)
		win         = big.NewInt(winPool)
	)
	for i := range payouts {
		if domain.Victor(payouts[i].Victor) != victor {
			continue
		}
		whole, frac := new(big.Int).QuoRem(
			new(big.Int).Mul(big.NewInt(payouts[i].Stake), lose),
			win,
			new(big.Int),
		)
		payouts[i].Payout = payouts[i].Stake + whole.Int64()
		distributed += whole.Int64()
		shares = append(shares, share{index: i, frac: frac})
	}

	sort.SliceStable(shares, func(a, b int) bool {
		if c := shares[a].frac.Cmp(shares[b].frac); c != 0 {
			return c > 0
		}
		return payouts[shares[a].index].WagerID < payouts[shares[b].index].WagerID
	})
	for k := int64(0); k < losePool-distributed; k++ {
		payouts[shares[k%int64(len(shares))].index].Payout++
	}

	for i := range payouts {
		payouts[i].Delta = payouts[i].Payout - payouts[i].Stake
	}
	return payouts
}
