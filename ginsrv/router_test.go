package ginsrv

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingRoutes struct{}

func (pingRoutes) Register(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func TestSetupRouter_MiddlewareOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var order []string
	mark := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Next()
		}
	}

	r := SetupRouter(
		[]Route{{
			Method:  http.MethodGet,
			Path:    "/healthz",
			Handler: func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) },
		}},
		mark("inner"),
		mark("outer"),
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "outer,inner", strings.Join(order, ","))
}

func TestMount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Mount(r, "/api", pingRoutes{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
