package redis

import (
	"context"
	"fmt"
	"time"
)

// Script names registered by RegisterSeatScripts
const (
	ScriptHoldSeats    = "hold_seats"
	ScriptReleaseSeats = "release_seats"
)

// HoldSeatsScript marks every seat key as held by a holder, or none of them.
// The holder key is a sorted set of seat keys scored by hold expiry in ms,
// so lapsed holds drop out before the per-holder limit is counted.
//
// KEYS: seat hold keys, then the holder's set key last
// ARGV[1]: holder id, ARGV[2]: ttl seconds, ARGV[3]: max seats per holder (0 = unlimited)
const HoldSeatsScript = `
local holder = ARGV[1]
local ttl = tonumber(ARGV[2])
local max_per_holder = tonumber(ARGV[3]) or 0
local holder_key = KEYS[#KEYS]
local seat_count = #KEYS - 1

if seat_count <= 0 then
    return {0, "NO_SEATS"}
end

local now = redis.call("TIME")
local now_ms = tonumber(now[1]) * 1000 + math.floor(tonumber(now[2]) / 1000)
redis.call("ZREMRANGEBYSCORE", holder_key, "-inf", now_ms)

for i = 1, seat_count do
    local owner = redis.call("GET", KEYS[i])
    if owner and owner ~= holder then
        return {0, "SEAT_HELD", KEYS[i]}
    end
end

if max_per_holder > 0 then
    local current = redis.call("ZCARD", holder_key)
    local added = 0
    for i = 1, seat_count do
        if not redis.call("ZSCORE", holder_key, KEYS[i]) then
            added = added + 1
        end
    end
    if current + added > max_per_holder then
        return {0, "HOLDER_LIMIT_EXCEEDED", tostring(current + added)}
    end
end

local expires_ms = now_ms + ttl * 1000
for i = 1, seat_count do
    redis.call("SET", KEYS[i], holder, "EX", ttl)
    redis.call("ZADD", holder_key, expires_ms, KEYS[i])
end
redis.call("EXPIRE", holder_key, ttl + 60)

return {1, "OK", tostring(seat_count)}
`

// ReleaseSeatsScript drops the holds owned by a holder. Holds owned by others are left alone.
//
// KEYS: seat hold keys, then the holder's set key last
// ARGV[1]: holder id
const ReleaseSeatsScript = `
local holder = ARGV[1]
local holder_key = KEYS[#KEYS]
local released = 0

for i = 1, #KEYS - 1 do
    if redis.call("GET", KEYS[i]) == holder then
        redis.call("DEL", KEYS[i])
        released = released + 1
    end
    redis.call("ZREM", holder_key, KEYS[i])
end

if redis.call("ZCARD", holder_key) == 0 then
    redis.call("DEL", holder_key)
end

return {1, "OK", tostring(released)}
`

// SeatHoldKey is the Redis key for a single seat hold
func SeatHoldKey(floorPlanID, seatID string) string {
	return "seat:hold:" + floorPlanID + ":" + seatID
}

// HolderKey is the Redis sorted set of seat keys held by a holder on a floor plan
func HolderKey(floorPlanID, holder string) string {
	return "seat:holder:" + floorPlanID + ":" + holder
}

// RegisterSeatScripts loads the seat hold scripts
func (c *Client) RegisterSeatScripts(ctx context.Context) error {
	if _, err := c.LoadScript(ctx, ScriptHoldSeats, HoldSeatsScript); err != nil {
		return err
	}
	if _, err := c.LoadScript(ctx, ScriptReleaseSeats, ReleaseSeatsScript); err != nil {
		return err
	}
	return nil
}

// HoldResult is the outcome of a hold or release script
type HoldResult struct {
	OK     bool
	Code   string
	Detail string
}

// HoldSeats holds seatIDs for holder, all-or-nothing
func (c *Client) HoldSeats(ctx context.Context, floorPlanID, holder string, seatIDs []string, ttl time.Duration, maxPerHolder int) (*HoldResult, error) {
	keys := seatKeys(floorPlanID, holder, seatIDs)
	res, err := c.EvalShaByName(ctx, ScriptHoldSeats, keys, holder, int(ttl.Seconds()), maxPerHolder).Slice()
	if err != nil {
		return nil, fmt.Errorf("hold seats: %w", err)
	}
	return parseHoldResult(res)
}

// ReleaseSeats drops holder's holds on seatIDs
func (c *Client) ReleaseSeats(ctx context.Context, floorPlanID, holder string, seatIDs []string) (*HoldResult, error) {
	keys := seatKeys(floorPlanID, holder, seatIDs)
	res, err := c.EvalShaByName(ctx, ScriptReleaseSeats, keys, holder).Slice()
	if err != nil {
		return nil, fmt.Errorf("release seats: %w", err)
	}
	return parseHoldResult(res)
}

// SeatHolders returns the current holder for each seat that is held
func (c *Client) SeatHolders(ctx context.Context, floorPlanID string, seatIDs []string) (map[string]string, error) {
	if len(seatIDs) == 0 {
		return map[string]string{}, nil
	}
	keys := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		keys[i] = SeatHoldKey(floorPlanID, id)
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read seat holds: %w", err)
	}

	holders := make(map[string]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			holders[seatIDs[i]] = s
		}
	}
	return holders, nil
}

// seatKeys builds the script keys with repeated seats dropped
func seatKeys(floorPlanID, holder string, seatIDs []string) []string {
	keys := make([]string, 0, len(seatIDs)+1)
	seen := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, SeatHoldKey(floorPlanID, id))
	}
	return append(keys, HolderKey(floorPlanID, holder))
}

func parseHoldResult(res []any) (*HoldResult, error) {
	if len(res) < 2 {
		return nil, fmt.Errorf("unexpected script result length %d", len(res))
	}
	ok, _ := res[0].(int64)
	out := &HoldResult{OK: ok == 1}
	out.Code, _ = res[1].(string)
	if len(res) > 2 {
		out.Detail, _ = res[2].(string)
	}
	return out, nil
}
