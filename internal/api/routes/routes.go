package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/scribe/internal/api/handlers"
	"github.com/yoockh/scribe/internal/api/middleware"
	"github.com/yoockh/scribe/internal/metrics"
	"github.com/yoockh/scribe/internal/services"
)

type Deps struct {
	Log      *logrus.Logger
	Metrics  *metrics.Metrics
	Sessions services.SessionService

	Pages          *handlers.PageHandler
	Auth           *handlers.AuthHandler
	Transcriptions *handlers.TranscriptionHandler
	Files          *handlers.FileHandler

	// MaxUploadBytes bounds multipart memory; larger parts spill to disk.
	MaxUploadBytes int64
}

// NewRouter builds the engine with templates, validators and all routes.
func NewRouter(d Deps) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}
	tmpl, err := handlers.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log, d.Metrics))

	RegisterRoutes(r, d)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	app := r.Group("/")
	app.Use(middleware.Session(d.Sessions, d.Log))

	app.GET("/", d.Pages.Index)
	app.GET("/register", d.Auth.RegisterPage)
	app.POST("/register", d.Auth.Register)
	app.GET("/login", d.Auth.LoginPage)
	app.POST("/login", d.Auth.Login)

	app.POST("/transcribe", limitBody(d.MaxUploadBytes), d.Transcriptions.Transcribe)
	app.POST("/download-text", d.Transcriptions.DownloadText)
	app.GET("/uploads/:name", d.Files.Upload)

	// Protected routes (session)
	auth := app.Group("/")
	auth.Use(middleware.RequireSession())

	auth.GET("/logout", d.Auth.Logout)
	auth.GET("/my", d.Transcriptions.List)
	auth.GET("/download/:id", d.Transcriptions.Download)
}

// limitBody caps the request body a little above the upload limit so
// multipart framing still fits.
func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+1<<20)
		}
		c.Next()
	}
}
