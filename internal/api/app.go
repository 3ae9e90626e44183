package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/isqad/melody"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lumilive/seminar/internal/coordinator"
	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/eventbus"
)

// AppOptions is options of the application
type AppOptions struct {
	Env     core.Environment
	Address string

	Dispatcher       *coordinator.Dispatcher
	EventsSubscriber eventbus.Subscriber

	// AuthServiceAddr is the firebase token verification service. An
	// empty value lets every connection in as a guest.
	AuthServiceAddr string

	websocket *melody.Melody
	hub       *hub
}

// App is the websocket-facing application of the coordinator
type App struct {
	AppOptions
}

func New(options AppOptions) *App {
	options.websocket = melody.New()
	options.websocket.Config.MaxMessageSize = 200 * 1024 // 200K
	options.hub = newHub(options.EventsSubscriber)

	app := &App{
		options,
	}

	// room channel subscriptions follow roster membership
	app.Dispatcher.OnJoined(app.hub.joinRoom)
	app.Dispatcher.OnKicked(func(connID core.ConnectionID, roomID core.RoomID) {
		app.hub.leaveRoom(connID)
	})

	return app
}

func (app *App) Start() error {
	quit := make(chan os.Signal, 1)
	done := make(chan struct{}, 1)

	app.initLogger()
	router := app.initRouter()

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	server := &http.Server{
		Addr:              app.Address,
		Handler:           router,
		ReadHeaderTimeout: 1 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Warn().Msg("received signal to terminate the server")
		log.Info().Msg("all services are stopped")
		close(done)
	})

	// Shutdown the HTTP server
	go func() {
		<-quit
		log.Warn().Msg("the server is going shutting down")

		// Wait 20 seconds for close http connections
		waitIdleConnCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(waitIdleConnCtx); err != nil {
			log.Fatal().Err(err).Msg("can't gracefully shutdown the server")
		}
	}()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server has been closed immediatelly")
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}

func (app *App) initLogger() {
	cw := zerolog.NewConsoleWriter()
	log.Logger = log.Output(cw)

	level := zerolog.InfoLevel

	if app.Env.IsDevelopment() {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)
}

// initRouter is function for construct http router
func (app *App) initRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	app.websocket.HandleConnect(ConnectHandler(app.hub))
	app.websocket.HandleDisconnect(DisconnectHandler(app.hub, app.Dispatcher))
	app.websocket.HandleMessage(HandleMessage(app.Dispatcher))
	app.websocket.HandleError(func(s *melody.Session, err error) {
		log.Error().Err(err).Str("service", "api").Msg("error in websocket session")
	})

	auth := NewFirebaseAuth()
	auth.Addr = app.AuthServiceAddr
	auth.AllowGuests = app.AuthServiceAddr == ""

	r.With(auth.Middleware()).Get("/ws", WebsocketsHandler(app.websocket))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
