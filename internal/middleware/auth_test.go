package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/medhq/hospital-api/internal/middleware"
	"github.com/medhq/hospital-api/internal/model"
)

func roleRouter(actor *model.Actor, allowed ...model.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if actor != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextActor, actor)
			c.Next()
		})
	}
	r.POST("/guarded", middleware.RequireRole(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireRole(t *testing.T) {
	staffRoles := []model.Role{model.RoleAdmin, model.RoleNurse, model.RoleDoctor}

	tests := []struct {
		name     string
		actor    *model.Actor
		wantCode int
	}{
		{"unauthenticated", nil, http.StatusUnauthorized},
		{"patient rejected", &model.Actor{ID: uuid.New(), Role: model.RolePatient}, http.StatusForbidden},
		{"nurse allowed", &model.Actor{ID: uuid.New(), Role: model.RoleNurse}, http.StatusNoContent},
		{"admin allowed", &model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := roleRouter(tt.actor, staffRoles...)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
