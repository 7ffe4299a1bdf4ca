package model

import "fmt"

const (
	// DefaultDemucsChannels is the initial hidden channel count of the
	// standard Demucs architecture.
	DefaultDemucsChannels = 64
	// DefaultHDemucsChannels is the initial hidden channel count of the
	// hybrid architecture.
	DefaultHDemucsChannels = 48

	demucsDepth       = 6
	demucsKernelSize  = 8
	demucsGrowth      = 2
	demucsLSTMLayers  = 2
	demucsAudioInputs = 2
)

// DemucsConfig configures a Demucs instance. Zero fields take the
// architecture defaults.
type DemucsConfig struct {
	Sources       []string
	Channels      int
	Depth         int
	AudioChannels int
}

func (c *DemucsConfig) applyDefaults() {
	if c.Channels == 0 {
		c.Channels = DefaultDemucsChannels
	}
	if c.Depth == 0 {
		c.Depth = demucsDepth
	}
	if c.AudioChannels == 0 {
		c.AudioChannels = demucsAudioInputs
	}
}

// Demucs is the time-domain U-Net architecture with a bidirectional LSTM
// bottleneck.
type Demucs struct {
	cfg      DemucsConfig
	params   map[string]*Tensor
	training bool
}

// NewDemucs constructs a Demucs model with freshly allocated, unloaded
// parameters. Construction is deterministic: the same config always yields
// the same parameter names and shapes.
func NewDemucs(cfg DemucsConfig) *Demucs {
	cfg.applyDefaults()
	d := &Demucs{cfg: cfg, params: make(map[string]*Tensor), training: true}

	in := cfg.AudioChannels
	ch := cfg.Channels
	for i := 0; i < cfg.Depth; i++ {
		d.params[fmt.Sprintf("encoder.%d.conv.weight", i)] = NewTensor(ch, in, demucsKernelSize)
		d.params[fmt.Sprintf("encoder.%d.conv.bias", i)] = NewTensor(ch)

		out := in
		if i == 0 {
			out = len(cfg.Sources) * cfg.AudioChannels
		}
		d.params[fmt.Sprintf("decoder.%d.conv_tr.weight", i)] = NewTensor(ch, out, demucsKernelSize)
		d.params[fmt.Sprintf("decoder.%d.conv_tr.bias", i)] = NewTensor(out)

		in = ch
		ch *= demucsGrowth
	}

	hidden := in
	for l := 0; l < demucsLSTMLayers; l++ {
		d.params[fmt.Sprintf("lstm.weight_ih_l%d", l)] = NewTensor(4*hidden, hidden)
		d.params[fmt.Sprintf("lstm.weight_hh_l%d", l)] = NewTensor(4*hidden, hidden)
		d.params[fmt.Sprintf("lstm.bias_ih_l%d", l)] = NewTensor(4 * hidden)
		d.params[fmt.Sprintf("lstm.bias_hh_l%d", l)] = NewTensor(4 * hidden)
	}

	return d
}

func (d *Demucs) Sources() []string            { return d.cfg.Sources }
func (d *Demucs) Parameters() map[string]*Tensor { return d.params }
func (d *Demucs) Eval()                        { d.training = false }
func (d *Demucs) Training() bool               { return d.training }

// Channels returns the configured initial hidden channel count.
func (d *Demucs) Channels() int { return d.cfg.Channels }

// HDemucsConfig configures an HDemucs instance. Zero fields take the
// architecture defaults.
type HDemucsConfig struct {
	Sources       []string
	Channels      int
	Depth         int
	AudioChannels int
}

func (c *HDemucsConfig) applyDefaults() {
	if c.Channels == 0 {
		c.Channels = DefaultHDemucsChannels
	}
	if c.Depth == 0 {
		c.Depth = demucsDepth
	}
	if c.AudioChannels == 0 {
		c.AudioChannels = demucsAudioInputs
	}
}

// HDemucs is the hybrid architecture with parallel spectral and temporal
// branches.
type HDemucs struct {
	cfg      HDemucsConfig
	params   map[string]*Tensor
	training bool
}

// NewHDemucs constructs an HDemucs model with freshly allocated, unloaded
// parameters.
func NewHDemucs(cfg HDemucsConfig) *HDemucs {
	cfg.applyDefaults()
	h := &HDemucs{cfg: cfg, params: make(map[string]*Tensor), training: true}

	// The spectral branch consumes complex-as-channels input, the temporal
	// branch raw audio. Both grow at the same rate and meet at the shared
	// bottleneck.
	freqIn := 2 * cfg.AudioChannels
	timeIn := cfg.AudioChannels
	ch := cfg.Channels
	for i := 0; i < cfg.Depth; i++ {
		h.params[fmt.Sprintf("freq_encoder.%d.conv.weight", i)] = NewTensor(ch, freqIn, demucsKernelSize, 1)
		h.params[fmt.Sprintf("freq_encoder.%d.conv.bias", i)] = NewTensor(ch)
		h.params[fmt.Sprintf("time_encoder.%d.conv.weight", i)] = NewTensor(ch, timeIn, demucsKernelSize)
		h.params[fmt.Sprintf("time_encoder.%d.conv.bias", i)] = NewTensor(ch)

		freqOut := freqIn
		timeOut := timeIn
		if i == 0 {
			freqOut = len(cfg.Sources) * 2 * cfg.AudioChannels
			timeOut = len(cfg.Sources) * cfg.AudioChannels
		}
		h.params[fmt.Sprintf("freq_decoder.%d.conv_tr.weight", i)] = NewTensor(ch, freqOut, demucsKernelSize, 1)
		h.params[fmt.Sprintf("freq_decoder.%d.conv_tr.bias", i)] = NewTensor(freqOut)
		h.params[fmt.Sprintf("time_decoder.%d.conv_tr.weight", i)] = NewTensor(ch, timeOut, demucsKernelSize)
		h.params[fmt.Sprintf("time_decoder.%d.conv_tr.bias", i)] = NewTensor(timeOut)

		freqIn = ch
		timeIn = ch
		ch *= demucsGrowth
	}

	bottleneck := freqIn
	h.params["bottleneck.weight"] = NewTensor(bottleneck, 2*bottleneck)
	h.params["bottleneck.bias"] = NewTensor(bottleneck)

	return h
}

func (h *HDemucs) Sources() []string              { return h.cfg.Sources }
func (h *HDemucs) Parameters() map[string]*Tensor { return h.params }
func (h *HDemucs) Eval()                          { h.training = false }
func (h *HDemucs) Training() bool                 { return h.training }

// Channels returns the configured initial hidden channel count.
func (h *HDemucs) Channels() int { return h.cfg.Channels }
