package file

import "github.com/klauspost/compress/zstd"

type options struct {
	level zstd.EncoderLevel
}

// Option configures Open.
type Option func(*options)

func defaultOptions() *options {
	return &options{level: zstd.SpeedDefault}
}

// WithCompressionLevel sets the at-rest compression level: 1 fastest,
// 2 default, 3 better compression. Other values fall back to the default.
func WithCompressionLevel(n int) Option {
	return func(o *options) {
		switch n {
		case 1:
			o.level = zstd.SpeedFastest
		case 2:
			o.level = zstd.SpeedDefault
		case 3:
			o.level = zstd.SpeedBetterCompression
		default:
			o.level = zstd.SpeedDefault
		}
	}
}
