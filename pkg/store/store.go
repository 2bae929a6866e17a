// Package store хранит параметры, которые сервер согласовал с клиентом
// и которые должны пережить перезапуск: минимальные интервалы обновления,
// entity-tag последней публикации и последний опубликованный документ.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Ключи реестра
const (
	KeyPublishMinExpire   = "presence.publish.min_expire"
	KeySubscribeMinExpire = "presence.subscribe.min_expire"
	KeyWinfoMinExpire     = "presence.winfo.min_expire"
	KeyRegisterMinExpire  = "register.min_expire"
	KeyPublishETag        = "presence.publish.etag"
	KeyPublishETagExpiry  = "presence.publish.etag_expiry"
	KeyLastDocument       = "presence.last_document"
)

// Registry key/value хранилище строк
type Registry interface {
	// Get возвращает значение и признак его наличия
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetInt читает целое значение. Отсутствующий ключ дает 0.
func GetInt(ctx context.Context, r Registry, key string) (int, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("registry %s: %w", key, err)
	}
	return n, nil
}

// SetInt сохраняет целое значение
func SetInt(ctx context.Context, r Registry, key string, value int) error {
	return r.Set(ctx, key, strconv.Itoa(value))
}

// GetTime читает момент времени, сохраненный в unix секундах
func GetTime(ctx context.Context, r Registry, key string) (time.Time, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("registry %s: %w", key, err)
	}
	return time.Unix(sec, 0), nil
}

// SetTime сохраняет момент времени в unix секундах
func SetTime(ctx context.Context, r Registry, key string, t time.Time) error {
	return r.Set(ctx, key, strconv.FormatInt(t.Unix(), 10))
}
