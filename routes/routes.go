package routes

import (
	"cheerful-reminder-backend/config"
	"cheerful-reminder-backend/controllers"
	"cheerful-reminder-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handlers struct {
	Scan      *controllers.ScanController
	Reminders *controllers.ReminderController
	Quotes    *controllers.QuoteController
}

type RouterConfig struct {
	JWTSecret      string
	ScanKeyHash    string
	AllowedOrigins []string
}

func SetupRouter(cfg RouterConfig, h Handlers, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.AllowedOrigins) == 0 || utils.Contains(cfg.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	r.Use(cors.New(corsConfig))

	r.Use(config.PerformanceLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	functions := r.Group("/functions/v1", utils.ScanKeyMiddleware(cfg.ScanKeyHash))
	{
		functions.POST("/check-reminders", h.Scan.CheckReminders)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(cfg.JWTSecret))
	{
		reminders := api.Group("/reminders")
		{
			reminders.POST("", h.Reminders.CreateReminder)
			reminders.GET("", h.Reminders.GetReminders)
			reminders.GET("/upcoming", h.Reminders.GetUpcomingReminders)
			reminders.POST("/test-email", h.Reminders.SendTestEmail)
			reminders.GET("/:id", h.Reminders.GetReminder)
			reminders.PUT("/:id", h.Reminders.UpdateReminder)
			reminders.PATCH("/:id/archive", h.Reminders.ArchiveReminder)
			reminders.DELETE("/:id", h.Reminders.DeleteReminder)
		}

		api.POST("/quotes", h.Quotes.GenerateQuote)
	}

	return r
}
