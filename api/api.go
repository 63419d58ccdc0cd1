/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nordlion/nordlion"
	"github.com/nordlion/nordlion/api/middleware"
	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/internal/apierror"
)

type Api struct {
	nordlion *nordlion.NordLion
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/identities", a.CreateIdentity)
	router.GET("/identities/:id", a.GetIdentity)
	router.PUT("/identities/:id", a.UpdateIdentity)
	router.DELETE("/identities/:id", a.DeleteIdentity)
	router.GET("/identities", a.GetAllIdentities)
	router.GET("/identities/:id/kyc", a.GetKYCByIdentity)

	router.POST("/kyc", a.SubmitKYC)
	router.GET("/kyc", a.GetAllKYC)
	router.GET("/kyc/tiers", a.GetTiers)
	router.GET("/kyc/providers", a.GetScreeningProviders)
	router.POST("/kyc/can-transact", a.CanTransact)
	router.POST("/kyc/sweep", a.RequestExpirySweep)
	router.GET("/kyc/:id", a.GetKYC)
	router.PUT("/kyc/:id/review", a.ReviewKYC)
	router.PUT("/kyc/:id/compliance", a.UpdateCompliance)
	router.POST("/kyc/:id/screen", a.ScreenKYC)

	return a.router
}

func NewAPI(n *nordlion.NordLion) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf.RateLimit))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware(conf.Server.SecretKey))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Api{nordlion: n, router: r}
}

// respondError writes err with the HTTP status of its APIError code. Errors
// without a code are reported as 500 without leaking their text.
func respondError(c *gin.Context, err error) {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": apiErr.Message, "code": apiErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": apierror.ErrInternalServer})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apierror.ErrInvalidInput})
}
