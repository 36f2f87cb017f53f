package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"copytrader/internal/api/handlers"
	"copytrader/internal/api/middleware"
	"copytrader/internal/repository"
	"copytrader/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Whales    *repository.WhaleRepository
	Follows   *repository.WhaleFollowRepository
	Positions *repository.PositionRepository
	Hub       *websocket.Hub
	APIToken  string // SecurityConfig.APIToken, see middleware.NewAuth
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /whales/ (маршрута со списком всех китов нет)
//	│   ├── POST / - добавить кита под наблюдение
//	│   └── GET /{id} - получить кита
//	├── /follows/
//	│   ├── POST / - подписаться на копирование
//	│   ├── GET /{id} - получить подписку
//	│   ├── PATCH /{id}/sizing - изменить сайзинг
//	│   └── DELETE /{id} - отписаться
//	└── /users/{userID}/
//	    ├── GET /follows - подписки пользователя
//	    └── GET /positions - открытые позиции пользователя
//
// /ws/
//
//	└── /stream - WebSocket для real-time обновлений
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для защищенных маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	var whaleHandler *handlers.WhaleHandler
	if deps != nil && deps.Whales != nil {
		whaleHandler = handlers.NewWhaleHandler(deps.Whales)
	}

	var followHandler *handlers.FollowHandler
	if deps != nil && deps.Follows != nil {
		followHandler = handlers.NewFollowHandler(deps.Follows)
	}

	var positionHandler *handlers.PositionHandler
	if deps != nil && deps.Positions != nil {
		positionHandler = handlers.NewPositionHandler(deps.Positions)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Применяем auth middleware ко всему API. С пустым APIToken (локальный
	// запуск без него в конфигурации) middleware пропускает все запросы.
	var apiToken string
	if deps != nil {
		apiToken = deps.APIToken
	}
	api.Use(middleware.NewAuth(apiToken))

	// Whale routes
	if whaleHandler != nil {
		api.HandleFunc("/whales", whaleHandler.CreateWhale).Methods("POST")
		api.HandleFunc("/whales/{id}", whaleHandler.GetWhale).Methods("GET")
	}

	// Follow routes
	if followHandler != nil {
		api.HandleFunc("/follows", followHandler.CreateFollow).Methods("POST")
		api.HandleFunc("/follows/{id}", followHandler.GetFollow).Methods("GET")
		api.HandleFunc("/follows/{id}/sizing", followHandler.UpdateSizing).Methods("PATCH")
		api.HandleFunc("/follows/{id}", followHandler.DeleteFollow).Methods("DELETE")
		api.HandleFunc("/users/{userID}/follows", followHandler.GetUserFollows).Methods("GET")
	}

	// Position routes
	if positionHandler != nil {
		api.HandleFunc("/users/{userID}/positions", positionHandler.GetOpenPositions).Methods("GET")
	}

	// WebSocket route для real-time обновлений
	if deps != nil && deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		}).Methods("GET")
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// ============================================================
	// Prometheus metrics endpoint
	// ============================================================
	// GET /metrics - экспорт метрик для Prometheus
	// Используется для мониторинга производительности торгового ядра
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// ============================================================
	// pprof endpoints для профилирования
	// ============================================================
	// ВАЖНО: В production должны быть защищены авторизацией!
	// Используются для анализа производительности и отладки:
	// - /debug/pprof/         - индекс всех профилей
	// - /debug/pprof/profile  - CPU профиль (30 сек по умолчанию)
	// - /debug/pprof/heap     - профиль памяти
	// - /debug/pprof/goroutine - список горутин
	// - /debug/pprof/trace    - execution trace
	//
	// Пример использования:
	// go tool pprof http://localhost:8080/debug/pprof/profile
	// go tool pprof http://localhost:8080/debug/pprof/heap

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)

	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)

	// Handlers для специфичных профилей
	debug.HandleFunc("/heap", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("heap").ServeHTTP(w, r)
	})
	debug.HandleFunc("/goroutine", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("goroutine").ServeHTTP(w, r)
	})
	debug.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("block").ServeHTTP(w, r)
	})
	debug.HandleFunc("/threadcreate", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("threadcreate").ServeHTTP(w, r)
	})
	debug.HandleFunc("/mutex", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("mutex").ServeHTTP(w, r)
	})
	debug.HandleFunc("/allocs", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("allocs").ServeHTTP(w, r)
	})

	// Runtime stats endpoint (дополнительно)
	runtimeStats := router.PathPrefix("/debug/runtime").Subrouter()
	runtimeStats.Use(middleware.DebugAuth)
	runtimeStats.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{`))
		w.Write([]byte(`"goroutines":` + itoa(runtime.NumGoroutine()) + `,`))
		w.Write([]byte(`"heap_alloc_mb":` + ftoa(float64(m.HeapAlloc)/1024/1024) + `,`))
		w.Write([]byte(`"heap_sys_mb":` + ftoa(float64(m.HeapSys)/1024/1024) + `,`))
		w.Write([]byte(`"num_gc":` + itoa(int(m.NumGC)) + `,`))
		w.Write([]byte(`"gc_pause_total_ms":` + ftoa(float64(m.PauseTotalNs)/1e6)))
		w.Write([]byte(`}`))
	}).Methods("GET")

	return router
}

// Вспомогательные функции для JSON без fmt
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}

func ftoa(f float64) string {
	// Простое форматирование с 2 знаками после запятой
	i := int(f * 100)
	whole := i / 100
	frac := i % 100
	if frac < 0 {
		frac = -frac
	}
	fracStr := itoa(frac)
	if len(fracStr) == 1 {
		fracStr = "0" + fracStr
	}
	return itoa(whole) + "." + fracStr
}
