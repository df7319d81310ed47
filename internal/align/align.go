// Package align pairs source and target sentence lists, either by
// position (cheap, always available) or by a Needleman–Wunsch style
// dynamic program over embedding similarity.
package align

import (
	"fmt"
	"math"
)

// DefaultGap is the penalty for skipping a sentence on either side.
// Small and negative so pairing is preferred unless no candidate match
// beats a match-minus-two-gaps threshold.
const DefaultGap = -0.15

// PadIndex marks the missing side of a padded pair.
const PadIndex = -1

// Pair is one aligned source/target sentence pair. A padded side has an
// empty string and PadIndex.
type Pair struct {
	Source      string `json:"source"`
	Translated  string `json:"translated"`
	SourceIndex int    `json:"source_index"`
	TargetIndex int    `json:"target_index"`
	SegmentID   string `json:"segment_id,omitempty"`
}

// HasSource reports whether the pair carries a source sentence.
func (p Pair) HasSource() bool { return p.SourceIndex != PadIndex }

// HasTarget reports whether the pair carries a target sentence.
func (p Pair) HasTarget() bool { return p.TargetIndex != PadIndex }

// Greedy pairs element i of each list by index, padding the shorter
// side. It always returns max(len(source), len(target)) pairs.
func Greedy(source, target []string) []Pair {
	n := len(source)
	if len(target) > n {
		n = len(target)
	}
	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		p := Pair{SourceIndex: PadIndex, TargetIndex: PadIndex}
		if i < len(source) {
			p.Source = source[i]
			p.SourceIndex = i
		}
		if i < len(target) {
			p.Translated = target[i]
			p.TargetIndex = i
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// Similarity aligns source and target using a DP over the cosine
// similarity of per-sentence embedding vectors. srcVecs and tgtVecs
// must match the sentence lists element for element. A gap of 0 uses
// DefaultGap.
func Similarity(source, target []string, srcVecs, tgtVecs [][]float64, gap float64) ([]Pair, error) {
	if len(srcVecs) != len(source) {
		return nil, fmt.Errorf("align: %d source vectors for %d sentences", len(srcVecs), len(source))
	}
	if len(tgtVecs) != len(target) {
		return nil, fmt.Errorf("align: %d target vectors for %d sentences", len(tgtVecs), len(target))
	}
	if gap == 0 {
		gap = DefaultGap
	}

	n, m := len(source), len(target)
	sim := make([][]float64, n)
	for i := 0; i < n; i++ {
		sim[i] = make([]float64, m)
		for j := 0; j < m; j++ {
			sim[i][j] = cosine(srcVecs[i], tgtVecs[j])
		}
	}

	dp := make([][]float64, n+1)
	for i := range dp {
		dp[i] = make([]float64, m+1)
	}
	for i := 1; i <= n; i++ {
		dp[i][0] = float64(i) * gap
	}
	for j := 1; j <= m; j++ {
		dp[0][j] = float64(j) * gap
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			best := dp[i-1][j-1] + sim[i-1][j-1]
			if up := dp[i-1][j] + gap; up > best {
				best = up
			}
			if left := dp[i][j-1] + gap; left > best {
				best = left
			}
			dp[i][j] = best
		}
	}

	// Backtrack from (n, m). On ties prefer diagonal, then up, then
	// left, biasing toward pairing over skipping.
	var rev []Pair
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && eq(dp[i][j], dp[i-1][j-1]+sim[i-1][j-1]):
			rev = append(rev, Pair{
				Source:      source[i-1],
				Translated:  target[j-1],
				SourceIndex: i - 1,
				TargetIndex: j - 1,
			})
			i--
			j--
		case i > 0 && eq(dp[i][j], dp[i-1][j]+gap):
			rev = append(rev, Pair{
				Source:      source[i-1],
				SourceIndex: i - 1,
				TargetIndex: PadIndex,
			})
			i--
		default:
			rev = append(rev, Pair{
				Translated:  target[j-1],
				SourceIndex: PadIndex,
				TargetIndex: j - 1,
			})
			j--
		}
	}

	// Reverse into document order.
	pairs := make([]Pair, len(rev))
	for k, p := range rev {
		pairs[len(rev)-1-k] = p
	}
	return pairs, nil
}

// cosine returns the cosine similarity of a and b clamped to [-1, 1].
// Zero vectors and mismatched lengths score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for k := range a {
		dot += a[k] * b[k]
		na += a[k] * a[k]
		nb += b[k] * b[k]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

func eq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
