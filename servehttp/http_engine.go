package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"worklog/common"

	"github.com/gin-gonic/gin"
)

// StartHTTPServer serves the engine until SIGINT/SIGTERM, then shuts down
// gracefully with a short drain window.
func StartHTTPServer(engine *gin.Engine) {
	addr := os.Getenv("SERVICE_LISTEN")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// will call os.Exit(1)
			common.Log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 send syscall.SIGINT
	// kill -9 send syscall.SIGKILL, can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	common.Log.Warnln("shutdown signal has been received, the service will exit in 3 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// graceful shutdown http.Server
	if err := srv.Shutdown(ctx); err != nil {
		common.Log.Fatalf("http server shutdown failed: %v", err)
	}
	common.Log.Warnln("http server is shutdown gracefully, new request will be rejected")

	<-ctx.Done()
	common.Log.Warnln("service exiting")
}
