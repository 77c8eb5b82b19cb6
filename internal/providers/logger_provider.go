package providers

import (
	"fmt"
	"os"
	"path/filepath"
	"podcache/internal/structures"

	"github.com/rs/zerolog"
)

type TypeEnum int

const (
	TypeApp TypeEnum = iota
	TypeGet
	TypePost
	TypeDownload
	TypeCleanup
)

// Logger is the logging facade used everywhere in the daemon. The TypeEnum
// tag routes entries either to the application log or the access log.
type Logger interface {
	Errorf(t TypeEnum, format string, args ...interface{})
	Warnf(t TypeEnum, format string, args ...interface{})
	Infof(t TypeEnum, format string, args ...interface{})
	Debugf(t TypeEnum, format string, args ...interface{})
	Fatalf(t TypeEnum, format string, args ...interface{})
	Close()
}

type LogProvider struct {
	app     zerolog.Logger
	access  zerolog.Logger
	appFile *os.File
	accFile *os.File
}

func GetLogTypeByRequestType(method string) TypeEnum {
	if method == "POST" {
		return TypePost
	}
	return TypeGet
}

func typeLabel(t TypeEnum) string {
	switch t {
	case TypeGet:
		return "get"
	case TypePost:
		return "post"
	case TypeDownload:
		return "download"
	case TypeCleanup:
		return "cleanup"
	default:
		return "app"
	}
}

func NewLogProvider(conf *structures.Config) (Logger, error) {
	level, err := zerolog.ParseLevel(conf.Logger.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", conf.Logger.Level, err)
	}

	mode := os.FileMode(conf.Logger.Mode)
	appFile, err := os.OpenFile(filepath.Join(conf.Logger.Dir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		return nil, fmt.Errorf("cannot open app log: %w", err)
	}
	accFile, err := os.OpenFile(filepath.Join(conf.Logger.Dir, "access.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		appFile.Close()
		return nil, fmt.Errorf("cannot open access log: %w", err)
	}

	lp := &LogProvider{
		appFile: appFile,
		accFile: accFile,
	}

	if conf.Debug {
		console := zerolog.ConsoleWriter{Out: os.Stderr}
		lp.app = zerolog.New(zerolog.MultiLevelWriter(appFile, console)).Level(level).With().Timestamp().Logger()
		lp.access = zerolog.New(zerolog.MultiLevelWriter(accFile, console)).Level(level).With().Timestamp().Logger()
	} else {
		lp.app = zerolog.New(appFile).Level(level).With().Timestamp().Logger()
		lp.access = zerolog.New(accFile).Level(level).With().Timestamp().Logger()
	}

	return lp, nil
}

func (l *LogProvider) pick(t TypeEnum) *zerolog.Logger {
	if t == TypeGet || t == TypePost {
		return &l.access
	}
	return &l.app
}

func (l *LogProvider) Errorf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Error().Str("type", typeLabel(t)).Msgf(format, args...)
}

func (l *LogProvider) Warnf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Warn().Str("type", typeLabel(t)).Msgf(format, args...)
}

func (l *LogProvider) Infof(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Info().Str("type", typeLabel(t)).Msgf(format, args...)
}

func (l *LogProvider) Debugf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Debug().Str("type", typeLabel(t)).Msgf(format, args...)
}

func (l *LogProvider) Fatalf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Fatal().Str("type", typeLabel(t)).Msgf(format, args...)
}

func (l *LogProvider) Close() {
	l.appFile.Close()
	l.accFile.Close()
}
