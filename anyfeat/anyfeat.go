// Package anyfeat prepares speech recognition inputs:
// log-mel filterbank features, normalization, token
// vocabularies, and a feature cache.
package anyfeat

// Config describes a log-mel filterbank.
type Config struct {
	SampleRate int `yaml:"sample_rate"`

	// FrameLength and FrameShift are in samples.
	FrameLength int `yaml:"frame_length"`
	FrameShift  int `yaml:"frame_shift"`

	// FFTSize must be a power of two no smaller than
	// FrameLength.
	FFTSize int `yaml:"fft_size"`

	NumMels  int     `yaml:"num_mels"`
	LowFreq  float64 `yaml:"low_freq"`
	HighFreq float64 `yaml:"high_freq"`

	// Preemphasis is the pre-emphasis coefficient.
	// Zero disables pre-emphasis.
	Preemphasis float64 `yaml:"preemphasis"`

	// LogFloor is the smallest filter energy before the
	// logarithm is taken.
	LogFloor float64 `yaml:"log_floor"`
}

// DefaultConfig returns the configuration for 80-channel
// features of 16kHz audio with 25ms frames every 10ms.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		FrameLength: 400,
		FrameShift:  160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    7600,
		Preemphasis: 0.97,
		LogFloor:    1e-10,
	}
}
