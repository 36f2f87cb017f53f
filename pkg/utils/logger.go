// Package utils содержит небольшие не-доменные хелперы, общие для всех
// пакетов: логирование, округление лотов, работа с временными диапазонами
// и валидация пользовательского ввода.
package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig описывает, как должен быть сконструирован Logger.
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json, text
	Output      string // путь к файлу; пусто или "stdout"/"stderr" — консоль
	Development bool
}

// Logger оборачивает *zap.Logger и держит рядом sugar-вариант для printf-style
// вызовов (Debugf/Infof/...), не пересоздавая его на каждый вызов.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// parseLevel переводит произвольную пользовательскую строку в zapcore.Level,
// откатываясь на InfoLevel для неизвестных значений.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func resolveWriteSyncer(output string) zapcore.WriteSyncer {
	switch output {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zapcore.AddSync(os.Stderr)
		}
		return zapcore.AddSync(f)
	}
}

// InitLogger строит новый Logger по конфигурации. Никогда не паникует и не
// возвращает nil — невалидные поля откатываются на безопасные значения по
// умолчанию (info/json/stdout).
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "text" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, resolveWriteSyncer(cfg.Output), level)

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// GetGlobalLogger возвращает уже инициализированный глобальный логгер,
// лениво создавая логгер по умолчанию при первом обращении.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L — краткий алиас GetGlobalLogger, удобный в местах вызова.
func L() *Logger {
	return GetGlobalLogger()
}

// InitGlobalLogger создаёт логгер по конфигурации и немедленно делает его
// глобальным.
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger заменяет глобальный логгер произвольным экземпляром
// (используется в тестах для перехвата вывода).
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// With возвращает дочерний Logger с добавленными структурированными полями.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent помечает все последующие записи именем подсистемы
// (scheduler, executor, queue, ...).
func (l *Logger) WithComponent(component string) *Logger {
	return l.With(Component(component))
}

// WithExchange помечает все последующие записи биржей-адресатом.
func (l *Logger) WithExchange(exchange string) *Logger {
	return l.With(Exchange(exchange))
}

// WithSymbol помечает все последующие записи торговым инструментом.
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithPairID помечает все последующие записи числовым идентификатором
// подписки/сделки.
func (l *Logger) WithPairID(pairID int) *Logger {
	return l.With(PairID(pairID))
}

// Sugar возвращает printf-style обёртку над тем же ядром.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// Глобальные функции логирования — используют GetGlobalLogger() и потому
// безопасны для вызова ещё до явного InitGlobalLogger.

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Error(msg, fields...) }

func Debugf(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Debugf(template, args...)
}
func Infof(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Infof(template, args...)
}
func Warnf(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Warnf(template, args...)
}
func Errorf(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Errorf(template, args...)
}

// Конструкторы полей для доменной области копи-трейдинга. Имена ключей
// стабильны — на них полагаются дашборды логов и grep-запросы в проде.

func Exchange(v string) zap.Field    { return zap.String("exchange", v) }
func Symbol(v string) zap.Field      { return zap.String("symbol", v) }
func PairID(v int) zap.Field         { return zap.Int("pair_id", v) }
func OrderID(v string) zap.Field     { return zap.String("order_id", v) }
func Price(v float64) zap.Field      { return zap.Float64("price", v) }
func Volume(v float64) zap.Field     { return zap.Float64("volume", v) }
func Spread(v float64) zap.Field     { return zap.Float64("spread", v) }
func PNL(v float64) zap.Field        { return zap.Float64("pnl", v) }
func Side(v string) zap.Field        { return zap.String("side", v) }
func State(v string) zap.Field       { return zap.String("state", v) }
func Latency(msec float64) zap.Field { return zap.Float64("latency_ms", msec) }
func RequestID(v string) zap.Field   { return zap.String("request_id", v) }
func UserID(v int) zap.Field         { return zap.Int("user_id", v) }
func Component(v string) zap.Field   { return zap.String("component", v) }

// Переэкспорт стандартных конструкторов zap, чтобы вызывающему коду не нужно
// было импортировать go.uber.org/zap напрямую ради базовых типов полей.

func String(key, val string) zap.Field          { return zap.String(key, val) }
func Int(key string, val int) zap.Field         { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field     { return zap.Int64(key, val) }
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }
func Bool(key string, val bool) zap.Field       { return zap.Bool(key, val) }
func Err(err error) zap.Field                   { return zap.Error(err) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }

// fieldsToInterface уплощает zap.Field'ы в чередующиеся key/value,
// сохраняя исходный порядок, для адаптеров сторонних sugar-API, которым
// нужен variadic interface{}, а не []zap.Field.
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		for k, v := range enc.Fields {
			result = append(result, k, v)
		}
	}
	return result
}
