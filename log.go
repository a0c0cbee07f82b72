package cfg

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StderrHandler is the default diagnostic handler used by a Config: the
// zerolog analogue of the tokenizer/parser's original bare fmt.Fprintf
// stderr callback. Configured via the Diagnostics option.
var StderrHandler = func(loc Location, msg string) {
	log.Warn().Str("loc", loc.String()).Msg(msg)
}

// debugEvent emits a zerolog debug event for a single evaluator notice,
// used by the Config fields WithDebugLog enables.
func debugEvent(kind string, loc Location, msg string) {
	log.Debug().Str("kind", kind).Str("loc", loc.String()).Msg(msg)
}

// EnableDebugLog switches the global zerolog logger to console-writer,
// debug-level output. Intended for local development, not production use.
func EnableDebugLog() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
