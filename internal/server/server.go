package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/StudyMentor/internal/adapter/utils"
	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/handlers"
	"github.com/akolanti/StudyMentor/internal/middleware"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

var (
	server  *http.Server
	_logger *logger_i.Logger
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

type Routes struct {
	Handlers *handlers.Handlers
	Chain    *middleware.Chain
	MCP      http.Handler
}

// RegisterRoutes mounts every endpoint. Health stays public; everything else needs a token.
func RegisterRoutes(r chi.Router, routes Routes) {
	h, c := routes.Handlers, routes.Chain

	r.Get("/", c.Public(h.GetHandler))
	r.Post("/upload/pdf", c.Wrap(h.UploadPDFHandler))
	r.Post("/upload/image", c.Wrap(h.UploadImageHandler))
	r.Post("/feedback", c.Wrap(h.FeedbackHandler))
	r.Post("/search", c.Wrap(h.SearchHandler))
	r.Post("/jobs/quiz", c.Wrap(h.PostQuizJobHandler))
	r.Get("/status/{id}", c.Wrap(h.GetStatusHandler))
	r.Post("/auth/email", c.Wrap(h.SendCodeHandler))
	r.Post("/auth/num", c.Wrap(h.VerifyCodeHandler))
	if routes.MCP != nil {
		r.Handle("/mcp", c.Handler(routes.MCP))
	}
}

func CreateServer(listenAddr string, routes Routes) {
	_logger = logger_i.NewLogger("Server")

	r := utils.GetRouter()
	RegisterRoutes(r.Router, routes)

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      r.Router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err, "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		server.SetKeepAlivesEnabled(false)

		if err := server.Shutdown(ctx); err != nil {
			_logger.Error("Could not shutdown gracefully", "error", err)
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}
