package config

// ConfigFileName is the tuning file looked up by FindConfig.
const ConfigFileName = "funcell.yaml"

// ConfigFileNames are all recognized tuning file names, in lookup order.
var ConfigFileNames = []string{"funcell.yaml", "funcell.yml"}

// Quote escalation
const (
	// QuoteShift is the kind byte increment for one in-cell quote level.
	QuoteShift = 64

	// MaxInlineQuoteDepth is the deepest quoting the kind byte can count.
	// base < 64, so base + 3*64 still fits in a byte.
	MaxInlineQuoteDepth = 3
)

// Characters and tokens
const (
	MaxCodepoint = 0x10FFFF

	// TokenInlineBytes is how much UTF-8 a token may hold before it is
	// promoted to a string series. One payload word minus the length byte.
	TokenInlineBytes = 7
)

// Defaults for Tuning
const (
	DefaultBallast            = 3_000_000
	DefaultInlineQuoteMax     = MaxInlineQuoteDepth
	DefaultMaxSeriesBias      = 0xFFFF
	DefaultBiasCeilingPercent = 50
	DefaultMaxSeriesUnits     = 64 << 20
	DefaultDataStackInitial   = 256
	DefaultDataStackMax       = 1024 * 1024
	DefaultMaxFrameDepth      = 4096
)
