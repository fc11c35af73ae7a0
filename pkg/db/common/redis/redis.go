package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/rueidis"
)

// redis: STRING KEY "vulstrack#lock#<name>" VALUE: <owner> PX <expiration>, extended while <owner> holds it

const keyPrefix = "vulstrack#lock"

var lockScript = rueidis.NewLuaScript(`local v = redis.call("GET", KEYS[1])
if v == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
if v then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1`)

var unlockScript = rueidis.NewLuaScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Connection is a lock store shared by every vulstrack server of a deployment.
type Connection struct {
	Config *rueidis.ClientOption

	conn rueidis.Client
}

func (c *Connection) Open() error {
	if c.Config == nil {
		return errors.New("connection config is not set")
	}

	client, err := rueidis.NewClient(*c.Config)
	if err != nil {
		return errors.WithStack(err)
	}
	c.conn = client
	return nil
}

func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	c.conn.Close()
	return nil
}

// Lock acquires name for owner until expiration. A lock already held by owner
// is extended. It reports false when another owner holds the lock.
func (c *Connection) Lock(ctx context.Context, name, owner string, expiration time.Duration) (bool, error) {
	if c.conn == nil {
		return false, errors.New("connection is not opened")
	}
	if expiration <= 0 {
		return false, errors.Errorf("unexpected lock expiration. expected: > 0, actual: %s", expiration)
	}

	key := fmt.Sprintf("%s#%s", keyPrefix, name)
	n, err := lockScript.Exec(ctx, c.conn, []string{key}, []string{owner, strconv.FormatInt(expiration.Milliseconds(), 10)}).AsInt64()
	if err != nil {
		return false, errors.Wrapf(err, "lock %s", key)
	}
	return n == 1, nil
}

// Unlock releases name if owner still holds it.
func (c *Connection) Unlock(ctx context.Context, name, owner string) error {
	if c.conn == nil {
		return errors.New("connection is not opened")
	}

	key := fmt.Sprintf("%s#%s", keyPrefix, name)
	if err := unlockScript.Exec(ctx, c.conn, []string{key}, []string{owner}).Error(); err != nil {
		return errors.Wrapf(err, "unlock %s", key)
	}
	return nil
}
