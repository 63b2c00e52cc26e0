package transcript

import "strings"

// WER is the word error rate of hypothesis against reference: substitutions,
// insertions and deletions over the reference length. Both sides are
// normalized first. An empty reference has a WER of 0.
func WER(reference, hypothesis string) float64 {
	ref := strings.Fields(Normalize(reference))
	hyp := strings.Fields(Normalize(hypothesis))

	if len(ref) == 0 {
		return 0
	}

	prev := make([]int, len(hyp)+1)
	curr := make([]int, len(hyp)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ref); i++ {
		curr[0] = i
		for j := 1; j <= len(hyp); j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return float64(prev[len(hyp)]) / float64(len(ref))
}

// Similarity is 1 - WER clamped to [0, 1]. An empty hypothesis scores 0.
func Similarity(expected, decoded string) float64 {
	if Normalize(decoded) == "" {
		return 0
	}

	return max(0, min(1, 1-WER(expected, decoded)))
}
