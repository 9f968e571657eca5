package assetcache

import "github.com/pkg/errors"

// AssetCacheConfig holds the four required capacity thresholds that
// govern an AssetCache's behavior. All four fields are mandatory; use
// NewConfigBuilder to construct one so a missing field is caught at
// construction time rather than silently defaulting to zero.
type AssetCacheConfig struct {
	// MaxBytesCost bounds the bytes LRU.
	MaxBytesCost uint64
	// MaxDecodedCost bounds the decoded LRU.
	MaxDecodedCost uint64
	// MaxSingleObjectBytesCost: objects whose reader-reported size
	// exceeds this are never inserted into the bytes LRU; the reader is
	// piped directly to the decoder instead.
	MaxSingleObjectBytesCost uint64
	// MaxSingleObjectDecodedCost: decoded values whose estimated cost
	// exceeds this are never inserted into the decoded LRU; they are
	// still published into the weak-reference table and returned to the
	// caller.
	MaxSingleObjectDecodedCost uint64
}

type configField int

const (
	fieldMaxBytesCost configField = iota
	fieldMaxDecodedCost
	fieldMaxSingleObjectBytesCost
	fieldMaxSingleObjectDecodedCost
	numConfigFields
)

func (f configField) String() string {
	switch f {
	case fieldMaxBytesCost:
		return "MaxBytesCost"
	case fieldMaxDecodedCost:
		return "MaxDecodedCost"
	case fieldMaxSingleObjectBytesCost:
		return "MaxSingleObjectBytesCost"
	case fieldMaxSingleObjectDecodedCost:
		return "MaxSingleObjectDecodedCost"
	default:
		return "unknown"
	}
}

// ConfigBuilder builds an AssetCacheConfig, failing at Build time if any
// of the four required fields was never set. A bitmask tracks which
// setters have run rather than relying on functional options, since
// those default silently to the zero value when omitted — exactly the
// failure mode this type exists to prevent.
type ConfigBuilder struct {
	cfg AssetCacheConfig
	set [numConfigFields]bool
}

// NewConfigBuilder returns an empty builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithMaxBytesCost(v uint64) *ConfigBuilder {
	b.cfg.MaxBytesCost = v
	b.set[fieldMaxBytesCost] = true
	return b
}

func (b *ConfigBuilder) WithMaxDecodedCost(v uint64) *ConfigBuilder {
	b.cfg.MaxDecodedCost = v
	b.set[fieldMaxDecodedCost] = true
	return b
}

func (b *ConfigBuilder) WithMaxSingleObjectBytesCost(v uint64) *ConfigBuilder {
	b.cfg.MaxSingleObjectBytesCost = v
	b.set[fieldMaxSingleObjectBytesCost] = true
	return b
}

func (b *ConfigBuilder) WithMaxSingleObjectDecodedCost(v uint64) *ConfigBuilder {
	b.cfg.MaxSingleObjectDecodedCost = v
	b.set[fieldMaxSingleObjectDecodedCost] = true
	return b
}

// Build returns the assembled config, or an error naming the first
// required field that was never set.
func (b *ConfigBuilder) Build() (AssetCacheConfig, error) {
	for f := configField(0); f < numConfigFields; f++ {
		if !b.set[f] {
			return AssetCacheConfig{}, errors.Errorf("assetcache: config field %s was never set", f)
		}
	}
	return b.cfg, nil
}
