package app

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// PaginationConfig pagination configuration // 分页配置
type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultPaginationConfig default pagination configuration // 默认分页配置
var DefaultPaginationConfig = PaginationConfig{
	DefaultPageSize: 50,
	MaxPageSize:     500,
}

func queryInt(c *gin.Context, key string) int {
	s, ok := c.GetQuery(key)
	if !ok {
		s = c.PostForm(key)
	}
	n, _ := strconv.Atoi(s)
	return n
}

func GetPage(c *gin.Context) int {
	if page := queryInt(c, "page"); page > 0 {
		return page
	}
	return 1
}

// GetPageSizeWithConfig 获取分页大小（使用注入的配置）
func GetPageSizeWithConfig(c *gin.Context, cfg PaginationConfig) int {
	pageSize := queryInt(c, "pageSize")
	if pageSize <= 0 {
		return cfg.DefaultPageSize
	}
	if pageSize > cfg.MaxPageSize {
		return cfg.MaxPageSize
	}
	return pageSize
}

// GetPageSize 获取分页大小（使用默认配置）
func GetPageSize(c *gin.Context) int {
	return GetPageSizeWithConfig(c, DefaultPaginationConfig)
}

func GetPageOffset(page, pageSize int) int {
	if page > 0 {
		return (page - 1) * pageSize
	}
	return 0
}

// NewPager 根据请求参数生成翻页信息
func NewPager(c *gin.Context, totalRows int) *Pager {
	return &Pager{
		Page:      GetPage(c),
		PageSize:  GetPageSize(c),
		TotalRows: totalRows,
	}
}

// PageWindow returns the [start, end) slice bounds of the requested page over total items
func PageWindow(c *gin.Context, total int) (start, end int) {
	size := GetPageSize(c)
	start = GetPageOffset(GetPage(c), size)
	if start > total {
		start = total
	}
	end = start + size
	if end > total {
		end = total
	}
	return start, end
}
