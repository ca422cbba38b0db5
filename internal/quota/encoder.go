package quota

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// Encoder counts tokens in a chunk of text.
type Encoder interface {
	Count(text string) int
}

// tiktokenEncoder wraps a cl100k_base (or other named) BPE encoding.
type tiktokenEncoder struct {
	tke *tiktoken.Tiktoken
}

// byteCountEncoder is the fallback used when the named encoding can't be
// loaded; counts raw UTF-8 bytes, which inflates token metrics relative
// to the real BPE count but keeps the quota enforceable.
type byteCountEncoder struct{}

func (e byteCountEncoder) Count(text string) int { return len(text) }

// NewEncoder loads the named tiktoken encoding, falling back to a byte
// count encoder (with a warning) if the encoding can't be resolved.
func NewEncoder(encodingName string) Encoder {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	tke, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		log.Warn().Err(err).Str("encoding", encodingName).
			Msg("tiktoken encoding unavailable, using byte-count fallback; token metrics may be inflated")
		return byteCountEncoder{}
	}
	return &tiktokenEncoder{tke: tke}
}

func (e *tiktokenEncoder) Count(text string) int {
	return len(e.tke.Encode(text, nil, nil))
}
