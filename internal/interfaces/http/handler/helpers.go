package handler

import (
	"strconv"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// parseAmount parses a decimal amount sent as a JSON string
func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, shared.NewDomainError(dto.ErrCodeInvalidInput, "Invalid decimal for "+field+": "+raw)
	}
	if err := dues.CheckAmountScale(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// parseOptionalAmount is parseAmount for an omitted-or-set field
func parseOptionalAmount(field string, raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := parseAmount(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseUUIDParam reads a uuid path parameter
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, shared.NewDomainError(dto.ErrCodeInvalidInput, "Invalid "+name+": "+c.Param(name))
	}
	return id, nil
}

// parseOptionalUUIDQuery reads an optional uuid query parameter
func parseOptionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.NewDomainError(dto.ErrCodeInvalidInput, "Invalid "+name+": "+raw)
	}
	return &id, nil
}

// parseOptionalIntQuery reads an optional integer query parameter
func parseOptionalIntQuery(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, shared.NewDomainError(dto.ErrCodeInvalidInput, "Invalid "+name+": "+raw)
	}
	return &n, nil
}

// parseUUIDs parses a list of uuid strings
func parseUUIDs(field string, raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, shared.NewDomainError(dto.ErrCodeInvalidInput, "Invalid "+field+": "+s)
		}
		out = append(out, id)
	}
	return out, nil
}

// parseOptionalTimeQuery reads an optional RFC 3339 or YYYY-MM-DD query parameter
func parseOptionalTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, shared.NewDomainError(dto.ErrCodeInvalidInput, "Invalid "+name+": "+raw)
	}
	return &t, nil
}
