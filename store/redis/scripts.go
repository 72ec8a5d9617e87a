package redis

import goredis "github.com/redis/go-redis/v9"

// Script replies: 1 applied, 0 rejected by the state check, -1 no such job.

// claimScript moves a pending job under its attempt budget to running.
// KEYS: job, pending, running. ARGV: id, worker, now, now in ms.
var claimScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return -1 end
if status ~= 'pending' then return 0 end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts'))
local maxAttempts = tonumber(redis.call('HGET', KEYS[1], 'max_attempts'))
if attempts >= maxAttempts then return 0 end
redis.call('HSET', KEYS[1],
	'status', 'running',
	'attempts', attempts + 1,
	'worker_id', ARGV[2],
	'started_at', ARGV[3],
	'heartbeat_at', ARGV[3],
	'updated_at', ARGV[3])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
return 1
`)

// transitionScript sets status to ARGV[3] when the current status is one
// of the comma separated ARGV[2]. Remaining ARGV are field/value pairs;
// an empty value deletes the field.
// KEYS: job, pending, running.
var transitionScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return -1 end
local allowed = false
for s in string.gmatch(ARGV[2], '[^,]+') do
	if s == status then allowed = true end
end
if not allowed then return 0 end
redis.call('HSET', KEYS[1], 'status', ARGV[3])
for i = 4, #ARGV, 2 do
	if ARGV[i + 1] == '' then
		redis.call('HDEL', KEYS[1], ARGV[i])
	else
		redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
	end
end
redis.call('ZREM', KEYS[3], ARGV[1])
if ARGV[3] == 'pending' then
	local priority = tonumber(redis.call('HGET', KEYS[1], 'priority'))
	redis.call('ZADD', KEYS[2], -priority, ARGV[1])
else
	redis.call('ZREM', KEYS[2], ARGV[1])
end
return 1
`)

// heartbeatScript refreshes a running job owned by ARGV[2].
// KEYS: job, running. ARGV: id, worker, now, now in ms.
var heartbeatScript = goredis.NewScript(`
local vals = redis.call('HMGET', KEYS[1], 'status', 'worker_id')
if not vals[1] then return -1 end
if vals[1] ~= 'running' or vals[2] ~= ARGV[2] then return 0 end
redis.call('HSET', KEYS[1], 'heartbeat_at', ARGV[3], 'updated_at', ARGV[3])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
return 1
`)
