package router

import "github.com/gin-gonic/gin"

// Module is a feature that registers its routes under /api.
type Module interface {
	Name() string
	Register(rg *gin.RouterGroup)
}
