// Package redis implementa la caché de lectura del catálogo sobre Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

var _ ports.CatalogCache = (*CatalogCache)(nil)

const (
	productPrefix     = "catalog:product:"
	institutionPrefix = "catalog:institution:"
)

// Connect abre el cliente y verifica la conexión.
func Connect(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse Redis URL: %w", err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second

	client := goredis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("conectar a Redis: %w", err)
	}
	return client, nil
}

// CatalogCache productos por clave CNIS e instituciones por CLUES, serializados en JSON.
// Cualquier fallo de Redis se registra y se trata como ausencia.
type CatalogCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewCatalogCache ttl <= 0 usa 10 minutos.
func NewCatalogCache(client goredis.UniversalClient, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CatalogCache{client: client, ttl: ttl, log: log.WithComponent("redis")}
}

func (c *CatalogCache) GetProduct(ctx context.Context, key string) (*entity.Product, bool) {
	var p entity.Product
	if !c.get(ctx, productPrefix+key, &p) {
		return nil, false
	}
	return &p, true
}

func (c *CatalogCache) SetProduct(ctx context.Context, p *entity.Product) {
	c.set(ctx, productPrefix+p.Key, p)
}

func (c *CatalogCache) DeleteProduct(ctx context.Context, key string) {
	if err := c.client.Del(ctx, productPrefix+key).Err(); err != nil {
		c.log.Warn().Err(err).Str("clave", key).Msg("no se pudo invalidar producto en caché")
	}
}

func (c *CatalogCache) GetInstitution(ctx context.Context, clue string) (*entity.Institution, bool) {
	var inst entity.Institution
	if !c.get(ctx, institutionPrefix+clue, &inst) {
		return nil, false
	}
	return &inst, true
}

func (c *CatalogCache) SetInstitution(ctx context.Context, inst *entity.Institution) {
	c.set(ctx, institutionPrefix+inst.Clue, inst)
}

func (c *CatalogCache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("lectura de caché fallida")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("entrada de caché corrupta")
		return false
	}
	return true
}

func (c *CatalogCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("escritura de caché fallida")
	}
}
