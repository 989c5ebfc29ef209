package router

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"job-recommender/internal/api/handler"
)

// HeaderAdminKey 管理接口鉴权头
const HeaderAdminKey = "X-Admin-Key"

var errInvalidAdminKey = errors.New("invalid admin key")

// RegisterRoutes 注册 API 路由，adminKey 为空时管理接口不鉴权
func RegisterRoutes(h *server.Hertz, recommendHandler *handler.RecommendHandler, adminKey string) {
	h.Use(handler.RequestID())

	h.GET("/", recommendHandler.HandleHealth)
	h.GET("/health", recommendHandler.HandleHealth)

	h.POST("/recommendations", recommendHandler.HandleRecommendations)
	h.GET("/algorithm", recommendHandler.HandleAlgorithmInfo)

	user := h.Group("/user/:user_id")
	user.GET("/profile", recommendHandler.HandleUserProfile)
	user.GET("/applications", recommendHandler.HandleApplications)

	jobs := h.Group("/jobs")
	jobs.GET("/active/count", recommendHandler.HandleActiveJobsCount)
	jobs.GET("/:job_id", recommendHandler.HandleJobDetails)

	if adminKey != "" {
		h.POST("/retrain", adminAuth(adminKey), recommendHandler.HandleRetrain)
	} else {
		h.POST("/retrain", recommendHandler.HandleRetrain)
	}
}

func adminAuth(adminKey string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAdminKey, ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1 {
				return true, nil
			}
			return false, errInvalidAdminKey
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{
				"success":     false,
				"error":       "Unauthorized",
				"status_code": consts.StatusUnauthorized,
			})
		}),
	)
}
