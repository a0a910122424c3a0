// Package rating computes Elo updates after a match.
package rating

import "math"

const (
	DefaultRating = 1000
	Floor         = 800

	// Players below NoviceGames games move faster.
	NoviceGames  = 30
	KNovice      = 40
	KEstablished = 20

	// Applied when only one side of a match has a persistent profile.
	FallbackWin  = 10
	FallbackLoss = 5
)

// Player is the rating state one update needs.
type Player struct {
	Rating      int
	GamesPlayed int
}

// Expected is the probability that a player rated r beats one rated opp.
func Expected(r, opp int) float64 {
	return 1 / (1 + math.Pow(10, float64(opp-r)/400))
}

// KFactor is chosen by the player's own game count.
func KFactor(gamesPlayed int) int {
	if gamesPlayed < NoviceGames {
		return KNovice
	}
	return KEstablished
}

// Update returns the new ratings of the winner and the loser. The loser is
// floored at Floor; the winner is never floored.
func Update(winner, loser Player) (newWinner, newLoser int) {
	ew := Expected(winner.Rating, loser.Rating)
	el := Expected(loser.Rating, winner.Rating)
	newWinner = int(math.Round(float64(winner.Rating) + float64(KFactor(winner.GamesPlayed))*(1-ew)))
	newLoser = int(math.Round(float64(loser.Rating) + float64(KFactor(loser.GamesPlayed))*(0-el)))
	if newLoser < Floor {
		newLoser = Floor
	}
	return newWinner, newLoser
}

// WinAgainstUnrated is the winner's rating when the opponent has no profile.
func WinAgainstUnrated(r int) int { return r + FallbackWin }

// LossAgainstUnrated is the loser's rating when the opponent has no profile.
func LossAgainstUnrated(r int) int {
	if r-FallbackLoss < Floor {
		return Floor
	}
	return r - FallbackLoss
}

// Current is the latest entry of a rating history, or DefaultRating.
func Current(history []int) int {
	if len(history) == 0 {
		return DefaultRating
	}
	return history[len(history)-1]
}
