package common

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// Tests never go through main, so the logger has to exist before InitLogger
// is called with the real environment.
func init() {
	InitLogger(os.Getenv("APP_ENV"))
}

func InitLogger(env string) {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)

	if env == ProdEnv {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Log = logger.WithFields(logrus.Fields{
		"service":        "inkwell",
		"is_development": env != ProdEnv,
	})
}

// RequestLogger replaces gin's default logger so request lines end up in the
// same stream as application logs.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := Log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if user := CurrentUser(c.Request.Context()); user != nil {
			entry = entry.WithField("user_id", user.ID)
		}
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
			return
		}
		entry.Info("request")
	}
}
