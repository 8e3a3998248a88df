package redis

import goredis "github.com/redis/go-redis/v9"

// KEYS[1] lock key, ARGV[1] token.
var compareAndDelete = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// KEYS[1] data key, ARGV[1] expiration ms, ARGV[2] threshold ms.
var touch = goredis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 and ttl < tonumber(ARGV[2]) then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	return 1
end
return 0
`)
