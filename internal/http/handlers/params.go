package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
)

func requestDBC(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errs.ErrInvalidArgument, name)
	}
	return id, nil
}

func queryPage(c *gin.Context) (repos.Page, error) {
	var p repos.Page
	var err error
	if p.Offset, err = queryInt(c, "offset"); err != nil {
		return p, err
	}
	if p.Limit, err = queryInt(c, "limit"); err != nil {
		return p, err
	}
	if p.Offset < 0 || p.Limit < 0 {
		return p, fmt.Errorf("%w: offset and limit must not be negative", errs.ErrInvalidArgument)
	}
	return p, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errs.ErrInvalidArgument, key)
	}
	return n, nil
}

// queryEnum parses an optional filter value. Unknown values are rejected
// rather than coerced.
func queryEnum[T ~string](c *gin.Context, key string, allowed []T) (*T, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, ok := contracts.Parse(raw, allowed)
	if !ok {
		return nil, fmt.Errorf("%w: unknown %s %q", errs.ErrInvalidArgument, key, raw)
	}
	return &v, nil
}

func queryUUID(c *gin.Context, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", errs.ErrInvalidArgument, key)
	}
	return &id, nil
}
