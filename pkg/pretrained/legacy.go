package pretrained

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stemsep/stemsep/pkg/artifact"
	"github.com/stemsep/stemsep/pkg/checkpoint"
	"github.com/stemsep/stemsep/pkg/fetch"
	"github.com/stemsep/stemsep/pkg/logging"
	"github.com/stemsep/stemsep/pkg/model"
	"github.com/stemsep/stemsep/pkg/quant"
)

const (
	// legacyRootURL is the artifact root of the fixed legacy model family.
	legacyRootURL = "https://dl.fbaipublicfiles.com/demucs/v3.0/"

	unittestChannels = 4
)

// defaultSignatures maps each legacy pretrained family to its content
// signature.
func defaultSignatures() map[string]string {
	return map[string]string{
		"demucs":           "e07c671f",
		"demucs48_hq":      "28a1282c",
		"demucs_extra":     "3646af93",
		"demucs_quantized": "07afea75",
		"tasnet":           "beb46fac",
		"tasnet_extra":     "df3777b2",
		"demucs_unittest":  "09ebc15f",
	}
}

// Legacy builds and loads the fixed family of pretrained architectures. The
// root URL and the signature table are injected at construction; defaults
// cover the published models.
type Legacy struct {
	rootURL    string
	locator    *artifact.Locator
	cache      *fetch.Cache
	signatures map[string]string
	log        logging.Logger
}

// LegacyOption configures a Legacy factory.
type LegacyOption func(*Legacy)

// WithLegacyRootURL overrides the artifact root URL.
func WithLegacyRootURL(url string) LegacyOption {
	return func(l *Legacy) {
		l.rootURL = url
	}
}

// WithLegacyCache sets the checkpoint cache used for downloads.
func WithLegacyCache(cache *fetch.Cache) LegacyOption {
	return func(l *Legacy) {
		l.cache = cache
	}
}

// WithSignatures replaces the signature table.
func WithSignatures(signatures map[string]string) LegacyOption {
	return func(l *Legacy) {
		l.signatures = make(map[string]string, len(signatures))
		for name, sig := range signatures {
			l.signatures[name] = sig
		}
	}
}

// WithLegacyLogger sets the logger to use.
func WithLegacyLogger(log logging.Logger) LegacyOption {
	return func(l *Legacy) {
		l.log = log
	}
}

// NewLegacy creates a legacy pretrained model factory.
func NewLegacy(opts ...LegacyOption) (*Legacy, error) {
	l := &Legacy{
		rootURL:    legacyRootURL,
		signatures: defaultSignatures(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logging.NewLogger("pretrained")
	}
	l.locator = artifact.NewLocator(l.rootURL)
	if l.cache == nil {
		cache, err := fetch.NewCache(fetch.WithLogger(l.log))
		if err != nil {
			return nil, err
		}
		l.cache = cache
	}
	return l, nil
}

// IsPretrained reports whether name denotes a known legacy pretrained model.
func (l *Legacy) IsPretrained(name string) bool {
	_, ok := l.signatures[name]
	return ok
}

// URL returns the artifact location of the named legacy pretrained model.
func (l *Legacy) URL(name string) (string, error) {
	sig, ok := l.signatures[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
	return l.locator.URL(name, sig), nil
}

// LoadPretrained builds and loads the named legacy pretrained model. The
// name set is closed; anything else is an invalid argument.
func (l *Legacy) LoadPretrained(ctx context.Context, name string) (model.Model, error) {
	switch name {
	case "demucs":
		return l.Demucs(ctx)
	case "demucs48_hq":
		return l.Demucs(ctx, WithHQ(), WithChannels(48))
	case "demucs_extra":
		return l.Demucs(ctx, WithExtra())
	case "demucs_quantized":
		return l.Demucs(ctx, WithQuantized())
	case "demucs_unittest":
		return l.Unittest(ctx)
	case "tasnet":
		return l.Tasnet(ctx)
	case "tasnet_extra":
		return l.Tasnet(ctx, WithExtra())
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
}

// buildOptions carries the variant selection for the generic builders.
type buildOptions struct {
	pretrained bool
	extra      bool
	quantized  bool
	hq         bool
	channels   int
}

// BuildOption selects a variant of a legacy architecture.
type BuildOption func(*buildOptions)

// WithoutPretrained skips loading pretrained weights. Incompatible with any
// variant selection.
func WithoutPretrained() BuildOption {
	return func(o *buildOptions) {
		o.pretrained = false
	}
}

// WithExtra selects the variant trained on extra data.
func WithExtra() BuildOption {
	return func(o *buildOptions) {
		o.extra = true
	}
}

// WithQuantized selects the diffq-compressed variant.
func WithQuantized() BuildOption {
	return func(o *buildOptions) {
		o.quantized = true
	}
}

// WithHQ selects the high quality variant.
func WithHQ() BuildOption {
	return func(o *buildOptions) {
		o.hq = true
	}
}

// WithChannels overrides the initial hidden channel count.
func WithChannels(channels int) BuildOption {
	return func(o *buildOptions) {
		o.channels = channels
	}
}

func newBuildOptions(opts []BuildOption) buildOptions {
	o := buildOptions{pretrained: true, channels: model.DefaultDemucsChannels}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// validate rejects impossible variant combinations. It runs before any
// model construction or network side effect.
func (o buildOptions) validate() error {
	if !o.pretrained && (o.extra || o.quantized || o.hq) {
		return ErrNotPretrained
	}
	variants := 0
	for _, set := range []bool{o.extra, o.quantized, o.hq} {
		if set {
			variants++
		}
	}
	if variants > 1 {
		return ErrConflictingVariants
	}
	return nil
}

// Demucs builds a Demucs model, loading the selected pretrained variant
// unless WithoutPretrained is given. The channel count is encoded into the
// artifact name only when it differs from the architecture default.
func (l *Legacy) Demucs(ctx context.Context, opts ...BuildOption) (model.Model, error) {
	o := newBuildOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}

	m := model.NewDemucs(model.DemucsConfig{Sources: Sources(), Channels: o.channels})
	if !o.pretrained {
		m.Eval()
		return m, nil
	}

	name := "demucs"
	if o.channels != model.DefaultDemucsChannels {
		name += strconv.Itoa(o.channels)
	}
	var quantizer *quant.DiffQuantizer
	if o.quantized {
		quantizer = quant.NewDiffQuantizer(m, quant.DefaultGroupSize, quant.DefaultMinSize)
		name += "_quantized"
	}
	if o.extra {
		name += "_extra"
	}
	if o.hq {
		name += "_hq"
	}

	if err := l.loadState(ctx, name, m, quantizer); err != nil {
		return nil, err
	}
	m.Eval()
	return m, nil
}

// Tasnet builds a ConvTasNet model. Only the extra variant exists for this
// architecture.
func (l *Legacy) Tasnet(ctx context.Context, opts ...BuildOption) (model.Model, error) {
	o := newBuildOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.quantized || o.hq {
		return nil, fmt.Errorf("%w: tasnet has no quantized or hq variant", ErrUnsupportedVariant)
	}

	m := model.NewConvTasNet(model.ConvTasNetConfig{Sources: Sources(), X: 10})
	if !o.pretrained {
		m.Eval()
		return m, nil
	}

	name := "tasnet"
	if o.extra {
		name = "tasnet_extra"
	}
	if err := l.loadState(ctx, name, m, nil); err != nil {
		return nil, err
	}
	m.Eval()
	return m, nil
}

// Unittest builds the small fixed test model, loading its weights unless
// WithoutPretrained is given.
func (l *Legacy) Unittest(ctx context.Context, opts ...BuildOption) (model.Model, error) {
	o := newBuildOptions(opts)
	if o.extra || o.quantized || o.hq {
		return nil, fmt.Errorf("%w: the unittest model has no variants", ErrUnsupportedVariant)
	}

	m := model.NewDemucs(model.DemucsConfig{Sources: Sources(), Channels: unittestChannels})
	if o.pretrained {
		if err := l.loadState(ctx, "demucs_unittest", m, nil); err != nil {
			return nil, err
		}
	}
	m.Eval()
	return m, nil
}

// loadState fetches the named artifact through the verifying cache and
// applies it to the model, decompressing through quantizer when given and
// detaching it afterwards.
func (l *Legacy) loadState(ctx context.Context, name string, m model.Model, quantizer *quant.DiffQuantizer) error {
	url, err := l.URL(name)
	if err != nil {
		return err
	}
	l.log.Debugf("loading state for %s", name)
	path, err := l.cache.Fetch(ctx, url)
	if err != nil {
		return err
	}
	state, err := checkpoint.Read(path)
	if err != nil {
		return err
	}
	if err := checkpoint.Apply(m, state, quantizer); err != nil {
		return err
	}
	if quantizer != nil {
		quantizer.Detach()
	}
	return nil
}
