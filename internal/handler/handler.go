package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-api/internal/models"
)

// pageParams reads the common page/limit query parameters.
func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return page, size
}

func pagination(page, size, total int) *models.Pagination {
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
