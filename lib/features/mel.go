package features

import "math"

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank returns [numMels][fftSize/2+1] triangular filters spaced
// evenly on the mel scale between lowFreq and highFreq.
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	step := (hzToMel(highFreq) - lowMel) / float64(numMels+1)

	bins := make([]int, numMels+2)
	for i := range bins {
		bin := int(math.Round(melToHz(lowMel+float64(i)*step) * float64(fftSize) / float64(sampleRate)))
		bins[i] = min(bin, halfFFT-1)
	}

	// Every filter spans at least one bin.
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}

	bank := make([][]float64, numMels)
	for m := range numMels {
		filter := make([]float64, halfFFT)
		left, center, right := bins[m], bins[m+1], bins[m+2]

		for k := left; k < center && k < halfFFT; k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k <= right && k < halfFFT; k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		bank[m] = filter
	}

	return bank
}

// dctMatrix returns the orthonormal DCT-II basis mapping numMels log
// energies to numCeps cepstra.
func dctMatrix(numCeps, numMels int) [][]float64 {
	m := make([][]float64, numCeps)
	scale0 := math.Sqrt(1 / float64(numMels))
	scale := math.Sqrt(2 / float64(numMels))

	for k := range numCeps {
		row := make([]float64, numMels)
		s := scale
		if k == 0 {
			s = scale0
		}
		for n := range numMels {
			row[n] = s * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(numMels))
		}
		m[k] = row
	}

	return m
}
