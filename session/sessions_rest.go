package session

import (
	"net/http"
	"time"
	"worklog/bizerror"
	"worklog/domain/employee"
	"worklog/persistence"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// loginLimiter throttles login attempts globally to blunt token guessing.
var loginLimiter = rate.NewLimiter(rate.Every(time.Second), 10)

func RegisterSessionsRestAPI(r *gin.Engine) {
	g := r.Group("/v1/sessions")
	g.POST("", handleLogin)
	g.DELETE("", handleLogout)
}

func RegisterSessionRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/session", middleWares...)
	g.GET("", handleDetailSession)
}

func handleLogin(c *gin.Context) {
	if !loginLimiter.Allow() {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	login := LoginRequest{}
	if err := c.ShouldBindBodyWith(&login, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	db := persistence.ActiveDataSourceManager.GormDB(c.Request.Context())
	emp, err := employee.FindByEmpIdFunc(login.EmpID, db)
	if err != nil {
		panic(err)
	}
	if emp == nil {
		panic(bizerror.ErrUnauthenticated)
	}

	token := uuid.New().String()
	s := Session{
		Token:       token,
		Identity:    Identity{ID: emp.ID, EmpID: emp.EmpID, Name: emp.Name},
		SigningTime: time.Now(),
	}
	TokenCache.Set(token, &s, cache.DefaultExpiration)

	c.SetCookie(KeySecToken, token, int(TokenExpiration/time.Second), "/", "", false, false)
	c.JSON(http.StatusOK, &s)
}

func handleLogout(c *gin.Context) {
	token, _ := c.Cookie(KeySecToken) // ErrNoCookie
	if token != "" {
		TokenCache.Delete(token)
	}
	c.SetCookie(KeySecToken, "", -1, "/", "", false, false)
	c.AbortWithStatus(http.StatusNoContent)
}

func handleDetailSession(c *gin.Context) {
	s := ExtractSessionFromGinContext(c)
	if s.Token == "" {
		panic(bizerror.ErrUnauthenticated)
	}

	ttl := TokenExpiration - time.Now().Sub(s.SigningTime)
	if ttl <= 0 {
		panic(bizerror.ErrUnauthenticated)
	}
	TokenCache.Set(s.Token, s, ttl)
	c.JSON(http.StatusOK, s)
}
