package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const jarOpTimeout = 2 * time.Second

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RedisJar is an [http.CookieJar] that mirrors the cookies visible to one
// target URL (the refresh endpoint) into Redis, next to the [RedisStore]
// slot of the same name. A new process using the same slot starts with
// those cookies, so the refresh credential survives process restarts.
//
// Redis is read lazily on first use; write failures do not fail the request
// that set the cookie and are reported by [RedisJar.Err].
type RedisJar struct {
	inner  *cookiejar.Jar
	redis  redis.UniversalClient
	key    string
	ttl    time.Duration
	target *url.URL

	loadOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewRedisJar returns a jar persisting the cookies sent to target.
func NewRedisJar(rdb redis.UniversalClient, prefix, name string, target *url.URL, ttl time.Duration) (*RedisJar, error) {
	if rdb == nil || target == nil {
		return nil, errors.New("redis jar needs a client and a target url")
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &RedisJar{
		inner:  inner,
		redis:  rdb,
		key:    slotKey(prefix, name, "cookies"),
		ttl:    ttl,
		target: target,
	}, nil
}

// SetCookies implements [http.CookieJar].
func (j *RedisJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.loadOnce.Do(j.load)
	j.inner.SetCookies(u, cookies)
	j.persist()
}

// Cookies implements [http.CookieJar].
func (j *RedisJar) Cookies(u *url.URL) []*http.Cookie {
	j.loadOnce.Do(j.load)
	return j.inner.Cookies(u)
}

// Err returns the last Redis failure, or nil.
func (j *RedisJar) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *RedisJar) fail(err error) {
	j.err = fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func (j *RedisJar) load() {
	ctx, cancel := context.WithTimeout(context.Background(), jarOpTimeout)
	defer cancel()

	data, err := j.redis.Get(ctx, j.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			j.mu.Lock()
			j.fail(err)
			j.mu.Unlock()
		}
		return
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		j.mu.Lock()
		j.err = fmt.Errorf("decode stored cookies: %w", err)
		j.mu.Unlock()
		return
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	j.inner.SetCookies(j.target, cookies)
}

// persist writes the cookies currently sent to the target, or deletes the
// key when there are none left.
func (j *RedisJar) persist() {
	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), jarOpTimeout)
	defer cancel()

	current := j.inner.Cookies(j.target)
	if len(current) == 0 {
		if err := j.redis.Del(ctx, j.key).Err(); err != nil {
			j.fail(err)
		}
		return
	}

	stored := make([]storedCookie, 0, len(current))
	for _, c := range current {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		j.err = err
		return
	}
	if err := j.redis.Set(ctx, j.key, data, j.ttl).Err(); err != nil {
		j.fail(err)
	}
}
