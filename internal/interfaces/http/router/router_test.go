package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api/v1", r.BasePath())
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	a := NewDomainGroup("a", "/a").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "a") })
	b := NewDomainGroup("b", "/b").POST("/ping", func(c *gin.Context) { c.String(http.StatusCreated, "b") })

	NewRouter(engine).Register(a, b).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/a/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", w.Body.String())

	w = serve(engine, http.MethodPost, "/api/v1/b/ping")
	assert.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/b/ping").Code)
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("admin", "/admin")
		assert.Equal(t, "admin", g.Name())
		assert.Equal(t, "/admin", g.Prefix())
	})

	t.Run("middleware applies to subgroups", func(t *testing.T) {
		engine := gin.New()
		var order []string

		g := NewDomainGroup("admin", "/admin").Use(func(c *gin.Context) {
			order = append(order, "admin")
			c.Next()
		})
		g.GET("/self", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.Group("wms", "/wms").
			Use(func(c *gin.Context) {
				order = append(order, "wms")
				c.Next()
			}).
			GET("/runs", func(c *gin.Context) { c.Status(http.StatusOK) })

		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/admin/wms/runs").Code)
		assert.Equal(t, []string{"admin", "wms"}, order)

		order = nil
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/admin/self").Code)
		assert.Equal(t, []string{"admin"}, order)
	})

	t.Run("guard aborts before handler", func(t *testing.T) {
		engine := gin.New()
		called := false
		NewDomainGroup("locked", "/locked").
			Use(func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }).
			GET("", func(c *gin.Context) { called = true }).
			RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodGet, "/api/v1/locked").Code)
		assert.False(t, called)
	})
}
