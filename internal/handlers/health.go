package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	appErrors "github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

// Health reports readiness, including database connectivity.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok", "database": "ok"}

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(requestContext(c))
			}
			if err != nil {
				response.Error(c, appErrors.Wrap(err, "database unavailable"))
				return
			}
		}

		response.Success(c, http.StatusOK, status)
	}
}
