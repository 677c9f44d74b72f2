package health

import (
	"context"
	"time"
)

// FuncChecker оборачивает функцию проверки. Некритичная ошибка даёт degraded.
type FuncChecker struct {
	name     string
	fn       func(ctx context.Context) error
	critical bool
}

// NewFuncChecker создаёт критичную проверку.
func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn, critical: true}
}

// NewOptionalChecker создаёт проверку, чей отказ не делает сервис unhealthy.
func NewOptionalChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

// Check выполняет проверку
func (c *FuncChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := c.fn(ctx)
	result := Check{Name: c.name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = StatusUnhealthy
		if !c.critical {
			result.Status = StatusDegraded
		}
		result.Message = err.Error()
	}
	return result
}

// CatalogStats: то, что проверке каталога нужно от кэша.
type CatalogStats interface {
	Ready() bool
}

// CatalogChecker сообщает degraded, пока не загружен ни один снимок каталога.
type CatalogChecker struct {
	catalog CatalogStats
}

// NewCatalogChecker создаёт проверку каталога.
func NewCatalogChecker(catalog CatalogStats) *CatalogChecker {
	return &CatalogChecker{catalog: catalog}
}

func (c *CatalogChecker) Check(context.Context) Check {
	if c.catalog == nil || !c.catalog.Ready() {
		return Check{Name: "catalog", Status: StatusDegraded, Message: "catalog not loaded"}
	}
	return Check{Name: "catalog", Status: StatusHealthy}
}
