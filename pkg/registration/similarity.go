package registration

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SimilarityFunc reduces a joint histogram to a scalar alignment score;
// higher means better aligned.
type SimilarityFunc func(*JointHistogram) float64

// Built-in similarity measure names accepted by SetSimilarity.
const (
	SimilarityCorrelationRatio = "cr"
	SimilarityCorrelationCoeff = "cc"
	SimilarityMutualInfo       = "mi"
	SimilarityNormalizedMI     = "nmi"
)

var builtinSimilarities = map[string]SimilarityFunc{
	SimilarityCorrelationRatio: CorrelationRatio,
	SimilarityCorrelationCoeff: CorrelationCoefficient,
	SimilarityMutualInfo:       MutualInformation,
	SimilarityNormalizedMI:     NormalizedMutualInformation,
}

// CorrelationRatio measures the fraction of the reference-image intensity
// variance explained by the moving-image bin assignment: 1 minus the
// mass-weighted mean of the per-row conditional variances over the total
// variance. Returns 0 for a degenerate (empty or constant) histogram.
func CorrelationRatio(h *JointHistogram) float64 {
	total := 0.0
	mean := 0.0
	meanSq := 0.0
	unexplained := 0.0

	for i := 0; i < h.FromBins; i++ {
		row := h.Counts[i*h.ToBins : (i+1)*h.ToBins]
		rowMass := 0.0
		rowSum := 0.0
		rowSumSq := 0.0
		for j, c := range row {
			v := float64(j)
			rowMass += c
			rowSum += c * v
			rowSumSq += c * v * v
		}
		if rowMass > 0 {
			// Conditional variance of the reference intensity within
			// this moving-image bin, weighted by the row mass.
			unexplained += rowSumSq - rowSum*rowSum/rowMass
		}
		total += rowMass
		mean += rowSum
		meanSq += rowSumSq
	}
	if total <= 0 {
		return 0
	}
	variance := meanSq - mean*mean/total
	if variance <= 0 {
		return 0
	}
	return 1 - unexplained/variance
}

// CorrelationCoefficient returns the squared Pearson correlation between
// the moving and reference bin indices under the joint mass distribution.
func CorrelationCoefficient(h *JointHistogram) float64 {
	total := h.Total()
	if total <= 0 {
		return 0
	}
	var sumI, sumJ, sumII, sumJJ, sumIJ float64
	for i := 0; i < h.FromBins; i++ {
		row := h.Counts[i*h.ToBins : (i+1)*h.ToBins]
		fi := float64(i)
		for j, c := range row {
			if c == 0 {
				continue
			}
			fj := float64(j)
			sumI += c * fi
			sumJ += c * fj
			sumII += c * fi * fi
			sumJJ += c * fj * fj
			sumIJ += c * fi * fj
		}
	}
	varI := sumII/total - (sumI/total)*(sumI/total)
	varJ := sumJJ/total - (sumJ/total)*(sumJ/total)
	if varI <= 0 || varJ <= 0 {
		return 0
	}
	cov := sumIJ/total - (sumI/total)*(sumJ/total)
	return cov * cov / (varI * varJ)
}

// MutualInformation returns H(from) + H(to) - H(from,to) in nats.
func MutualInformation(h *JointHistogram) float64 {
	hFrom, hTo, hJoint, ok := entropies(h)
	if !ok {
		return 0
	}
	return hFrom + hTo - hJoint
}

// NormalizedMutualInformation returns (H(from) + H(to)) / H(from,to),
// or 0 when the joint entropy vanishes.
func NormalizedMutualInformation(h *JointHistogram) float64 {
	hFrom, hTo, hJoint, ok := entropies(h)
	if !ok || hJoint == 0 {
		return 0
	}
	return (hFrom + hTo) / hJoint
}

// entropies normalizes the histogram into probability distributions and
// returns the two marginal entropies and the joint entropy.
func entropies(h *JointHistogram) (hFrom, hTo, hJoint float64, ok bool) {
	total := h.Total()
	if total <= 0 {
		return 0, 0, 0, false
	}
	joint := make([]float64, len(h.Counts))
	for i, c := range h.Counts {
		joint[i] = c / total
	}
	fromMarginal := h.FromMarginal()
	toMarginal := h.ToMarginal()
	for i := range fromMarginal {
		fromMarginal[i] /= total
	}
	for i := range toMarginal {
		toMarginal[i] /= total
	}
	hFrom = stat.Entropy(fromMarginal)
	hTo = stat.Entropy(toMarginal)
	hJoint = stat.Entropy(joint)
	if math.IsNaN(hFrom) || math.IsNaN(hTo) || math.IsNaN(hJoint) {
		return 0, 0, 0, false
	}
	return hFrom, hTo, hJoint, true
}
