package tasks

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/task-forge/internal/apperr"
	"github.com/yourusername/task-forge/internal/auth"
)

// Service はハンドラーが利用するタスク操作です。
type Service interface {
	Create(owner, description string) (Task, error)
	ListByOwner(owner string) []Task
	Get(owner string, id int64) (Task, error)
	Update(owner string, id int64, update Update) (Task, error)
	Delete(owner string, id int64) error
}

type createRequest struct {
	Description string `json:"description" binding:"required"`
}

type updateRequest struct {
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// CreateHandler は POST /tasks のハンドラーを返します。
func CreateHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := requireOwner(c)
		if !ok {
			return
		}

		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("description を JSON で送ってください。"))
			return
		}

		task, err := svc.Create(owner, req.Description)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

// ListHandler は GET /tasks のハンドラーを返します。
func ListHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := requireOwner(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.ListByOwner(owner))
	}
}

// GetHandler は GET /tasks/:id のハンドラーを返します。
func GetHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, id, ok := ownerAndID(c)
		if !ok {
			return
		}

		task, err := svc.Get(owner, id)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// UpdateHandler は PUT /tasks/:id のハンドラーを返します。
func UpdateHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, id, ok := ownerAndID(c)
		if !ok {
			return
		}

		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("description または completed を JSON で送ってください。"))
			return
		}

		task, err := svc.Update(owner, id, Update{
			Description: req.Description,
			Completed:   req.Completed,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// DeleteHandler は DELETE /tasks/:id のハンドラーを返します。
func DeleteHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, id, ok := ownerAndID(c)
		if !ok {
			return
		}

		if err := svc.Delete(owner, id); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// RegisterRoutes は認証済みグループにタスク API を登録します。
func RegisterRoutes(group *gin.RouterGroup, svc Service) {
	group.POST("/tasks", CreateHandler(svc))
	group.GET("/tasks", ListHandler(svc))
	group.GET("/tasks/:id", GetHandler(svc))
	group.PUT("/tasks/:id", UpdateHandler(svc))
	group.DELETE("/tasks/:id", DeleteHandler(svc))
}

func requireOwner(c *gin.Context) (string, bool) {
	owner, ok := auth.CurrentUser(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("UNAUTHORIZED", "ログインが必要です。"))
		return "", false
	}
	return owner, true
}

func ownerAndID(c *gin.Context) (string, int64, bool) {
	owner, ok := requireOwner(c)
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apperr.Respond(c, apperr.Validation("タスクIDは整数で指定してください。"))
		return "", 0, false
	}
	return owner, id, true
}
