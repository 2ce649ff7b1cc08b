package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"permitbot/internal/middleware"
	"permitbot/internal/services"
)

// tolerant of int / int64 / float64 / string
func getIntFromCtx(c *gin.Context, key string) (int, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
	}
	return 0, false
}

func operatorFromCtx(c *gin.Context) services.Operator {
	roleID, _ := getIntFromCtx(c, middleware.CtxRoleID)
	return services.Operator{
		Source:   services.SourceHTTP,
		Username: c.GetString(middleware.CtxUsername),
		RoleID:   roleID,
	}
}
