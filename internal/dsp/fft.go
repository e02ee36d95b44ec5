package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum returns the one-sided magnitude spectrum of a uniformly sampled
// real signal. A Hamming window is applied and magnitudes are normalized by the
// window sum. freqs are in Hz when sampleRate is in Hz.
func Spectrum(samples []float64, sampleRate float64) (freqs []float64, mags []float64) {
	n := len(samples)
	if n == 0 {
		return []float64{}, []float64{}
	}
	win := Hamming(n)
	windowed := ApplyWindow(samples, win)

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, windowed)

	sumWin := 0.0
	for _, v := range win {
		sumWin += v
	}

	freqs = make([]float64, len(coeff))
	mags = make([]float64, len(coeff))
	for i, c := range coeff {
		freqs[i] = fft.Freq(i) * sampleRate
		mags[i] = cmplx.Abs(c) / sumWin
	}
	return freqs, mags
}
