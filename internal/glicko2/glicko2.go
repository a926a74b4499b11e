// Package glicko2 implements the Glicko-2 rating system as described in
// http://www.glicko.net/glicko/glicko2.pdf, with support for partially
// elapsed rating periods.
package glicko2

import (
	"errors"
	"fmt"
	"math"
)

const (
	// Scale converts between the Glicko and Glicko-2 scales.
	Scale = 173.7178

	DefaultRating     = 1500.0
	DefaultDeviation  = 350.0
	DefaultVolatility = 0.06

	DefaultTau           = 0.5
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 100
)

const (
	Loss = 0.0
	Draw = 0.5
	Win  = 1.0
)

var ErrConvergence = errors.New("volatility did not converge")

type Rating struct {
	Rating     float64 `json:"rating"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
}

func NewRating() Rating {
	return Rating{
		Rating:     DefaultRating,
		Deviation:  DefaultDeviation,
		Volatility: DefaultVolatility,
	}
}

// Result is a single game against an opponent. Score is Win, Draw or Loss.
type Result struct {
	Opponent Rating
	Score    float64
}

type Calculator struct {
	Tau           float64
	MaxDeviation  float64
	Tolerance     float64
	MaxIterations int
}

func NewCalculator() Calculator {
	return Calculator{
		Tau:           DefaultTau,
		MaxDeviation:  DefaultDeviation,
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

// Rate returns the rating of a player after the given results.
//
// elapsed is the fraction of the rating period that has passed, where 1 is a
// full period. A player without results keeps their rating and volatility and
// only has their deviation grow, bounded by MaxDeviation.
func (c Calculator) Rate(current Rating, results []Result, elapsed float64) (Rating, error) {
	if elapsed < 0 {
		elapsed = 0
	}

	mu := (current.Rating - DefaultRating) / Scale
	phi := current.Deviation / Scale
	sigma := current.Volatility
	maxPhi := c.MaxDeviation / Scale

	if len(results) == 0 {
		return Rating{
			Rating:     current.Rating,
			Deviation:  math.Min(math.Sqrt(phi*phi+elapsed*sigma*sigma), maxPhi) * Scale,
			Volatility: sigma,
		}, nil
	}

	var vInv, improvement float64
	for _, res := range results {
		muJ := (res.Opponent.Rating - DefaultRating) / Scale
		g := gFactor(res.Opponent.Deviation / Scale)
		e := expected(mu, muJ, g)

		vInv += g * g * e * (1 - e)
		improvement += g * (res.Score - e)
	}
	v := 1 / vInv
	delta := v * improvement

	newSigma, err := c.volatility(phi, sigma, v, delta)
	if err != nil {
		return current, err
	}

	phiStar := math.Min(math.Sqrt(phi*phi+elapsed*newSigma*newSigma), maxPhi)
	newPhi := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	newMu := mu + newPhi*newPhi*improvement

	return Rating{
		Rating:     newMu*Scale + DefaultRating,
		Deviation:  newPhi * Scale,
		Volatility: newSigma,
	}, nil
}

// volatility solves for the new volatility using the Illinois algorithm.
func (c Calculator) volatility(phi, sigma, v, delta float64) (float64, error) {
	tau2 := c.Tau * c.Tau
	a := math.Log(sigma * sigma)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		d := phi*phi + v + ex
		return ex*(delta*delta-phi*phi-v-ex)/(2*d*d) - (x-a)/tau2
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for i := 0; f(a-k*c.Tau) < 0; i++ {
			if i >= c.MaxIterations {
				return 0, fmt.Errorf("failed to bracket volatility: %w", ErrConvergence)
			}
			k++
		}
		B = a - k*c.Tau
	}

	fA, fB := f(A), f(B)
	for i := 0; math.Abs(B-A) > c.Tolerance; i++ {
		if i >= c.MaxIterations {
			return 0, fmt.Errorf("failed to solve volatility after %d iterations: %w", i, ErrConvergence)
		}

		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}

	result := math.Exp(A / 2)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, ErrConvergence
	}
	return result, nil
}

func gFactor(phi float64) float64 {
	return 1 / math.Sqrt(1+3*phi*phi/(math.Pi*math.Pi))
}

func expected(mu, muJ, g float64) float64 {
	return 1 / (1 + math.Exp(-g*(mu-muJ)))
}
