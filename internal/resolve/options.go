package resolve

import (
	"log/slog"
)

const (
	DefaultMapHintExtension  = "x-type-label"
	DefaultMapHintValue      = "map"
	DefaultMetaHintExtension = "x-meta"
)

// Settings is the configuration surface of the resolver. It is plain data so
// the core stays independent of any particular API document.
type Settings struct {
	// ObjectSchemas lists top-level names treated as objects when they carry
	// no type keyword.
	ObjectSchemas []string
	// MapHintExtension and MapHintValue mark an object as an open map.
	MapHintExtension string
	MapHintValue     string
	// MetaHintExtension marks a property-less object as an untyped blob.
	MetaHintExtension string
	// SkipErrors makes ResolveAll record failures and continue.
	SkipErrors bool
	Logger     *slog.Logger
}

type Option func(*Settings)

func WithObjectSchemas(names ...string) Option {
	return func(s *Settings) { s.ObjectSchemas = append(s.ObjectSchemas, names...) }
}

func WithMapHint(extension, value string) Option {
	return func(s *Settings) {
		s.MapHintExtension = extension
		s.MapHintValue = value
	}
}

func WithMetaHint(extension string) Option {
	return func(s *Settings) { s.MetaHintExtension = extension }
}

func WithSkipErrors(skip bool) Option {
	return func(s *Settings) { s.SkipErrors = skip }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) { s.Logger = l }
}

func defaultSettings() Settings {
	return Settings{
		MapHintExtension:  DefaultMapHintExtension,
		MapHintValue:      DefaultMapHintValue,
		MetaHintExtension: DefaultMetaHintExtension,
	}
}

func (s Settings) objectSchema(name string) bool {
	for _, n := range s.ObjectSchemas {
		if n == name {
			return true
		}
	}
	return false
}
