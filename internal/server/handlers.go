package server

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eternalApril/minikv/internal/resp"
	"github.com/eternalApril/minikv/internal/storage"
)

var (
	errSyntax     = resp.MakeError("ERR syntax error")
	errNotInteger = resp.MakeError("ERR value is not an integer or out of range")

	// expiration instants are kept as unix nanoseconds, with room for millisecond truncation
	minExpireAt = time.Unix(0, math.MinInt64).Add(time.Second)
	maxExpireAt = time.Unix(0, math.MaxInt64)
)

func invalidExpireTime(name string) resp.Value {
	return resp.MakeError(fmt.Sprintf("ERR invalid expire time in '%s' command", strings.ToLower(name)))
}

// parseInt parses a decimal argument
func parseInt(b []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	return n, err == nil
}

// expireAfter converts a relative TTL in seconds into an absolute instant.
// It fails when the instant cannot be represented
func expireAfter(now time.Time, seconds int64) (time.Time, bool) {
	const maxSeconds = math.MaxInt64 / int64(time.Second)
	if seconds > maxSeconds || seconds < -maxSeconds {
		return time.Time{}, false
	}

	return checkExpireAt(now.Add(time.Duration(seconds) * time.Second))
}

func checkExpireAt(at time.Time) (time.Time, bool) {
	if at.Before(minExpireAt) || at.After(maxExpireAt) {
		return time.Time{}, false
	}
	return at, true
}

// logAbsolute truncates at to milliseconds, the resolution of the logged instant,
// so that a replay rebuilds exactly the same expiration
func logAbsolute(at time.Time) (time.Time, []byte) {
	ms := at.UnixMilli()
	return time.UnixMilli(ms), strconv.AppendInt(nil, ms, 10)
}

// ping returns PONG, or echoes its single argument
func ping(ctx *execContext) resp.Value {
	if len(ctx.args) == 0 {
		return resp.MakeSimpleString("PONG")
	}
	return resp.MakeBulkBytes(ctx.args[0])
}

func echo(ctx *execContext) resp.Value {
	return resp.MakeBulkBytes(ctx.args[0])
}

// set handles SET key value [EX seconds | PXAT unix-time-milliseconds]
func set(ctx *execContext) resp.Value {
	key, value := string(ctx.args[0]), string(ctx.args[1])

	var expireAt time.Time
	logged := ctx.request()

	if len(ctx.args) == 4 {
		option := string(ctx.args[2])
		n, ok := parseInt(ctx.args[3])
		if !ok {
			if strings.EqualFold(option, "EX") || strings.EqualFold(option, "PXAT") {
				return invalidExpireTime(ctx.name)
			}
			return errSyntax
		}

		switch {
		case strings.EqualFold(option, "EX"):
			if expireAt, ok = expireAfter(ctx.now, n); !ok {
				return invalidExpireTime(ctx.name)
			}
			if ctx.engine.absoluteExpiry {
				var ms []byte
				expireAt, ms = logAbsolute(expireAt)
				logged = resp.Request{[]byte("SET"), ctx.args[0], ctx.args[1], []byte("PXAT"), ms}
			}

		case strings.EqualFold(option, "PXAT"):
			if expireAt, ok = checkExpireAt(time.UnixMilli(n)); !ok {
				return invalidExpireTime(ctx.name)
			}

		default:
			return errSyntax
		}
	}

	if err := ctx.persist(logged); err != nil {
		return resp.MakeError(err.Error())
	}

	ctx.storage.Set(key, value, expireAt)
	return resp.MakeOK()
}

func get(ctx *execContext) resp.Value {
	val, ok := ctx.storage.Get(string(ctx.args[0]))
	if !ok {
		return resp.MakeNilBulkString()
	}

	return resp.MakeBulkString(val)
}

// del removes every given key and returns how many existed
func del(ctx *execContext) resp.Value {
	if err := ctx.persist(ctx.request()); err != nil {
		return resp.MakeError(err.Error())
	}

	var deleted int64
	for _, key := range ctx.args {
		if ctx.storage.Delete(string(key)) {
			deleted++
		}
	}

	return resp.MakeInteger(deleted)
}

func mset(ctx *execContext) resp.Value {
	if err := ctx.persist(ctx.request()); err != nil {
		return resp.MakeError(err.Error())
	}

	for i := 0; i < len(ctx.args); i += 2 {
		ctx.storage.Set(string(ctx.args[i]), string(ctx.args[i+1]), time.Time{})
	}

	return resp.MakeOK()
}

func mget(ctx *execContext) resp.Value {
	values := make([]resp.Value, len(ctx.args))
	for i, key := range ctx.args {
		if val, ok := ctx.storage.Get(string(key)); ok {
			values[i] = resp.MakeBulkString(val)
		} else {
			values[i] = resp.MakeNilBulkString()
		}
	}

	return resp.MakeArray(values)
}

// expire handles EXPIRE key seconds
func expire(ctx *execContext) resp.Value {
	seconds, ok := parseInt(ctx.args[1])
	if !ok {
		return invalidExpireTime(ctx.name)
	}

	expireAt, ok := expireAfter(ctx.now, seconds)
	if !ok {
		return invalidExpireTime(ctx.name)
	}

	logged := ctx.request()
	if ctx.engine.absoluteExpiry {
		var ms []byte
		expireAt, ms = logAbsolute(expireAt)
		logged = resp.Request{[]byte("PEXPIREAT"), ctx.args[0], ms}
	}

	return applyExpire(ctx, logged, expireAt)
}

// pexpireat handles PEXPIREAT key unix-time-milliseconds
func pexpireat(ctx *execContext) resp.Value {
	ms, ok := parseInt(ctx.args[1])
	if !ok {
		return errNotInteger
	}

	expireAt, ok := checkExpireAt(time.UnixMilli(ms))
	if !ok {
		return invalidExpireTime(ctx.name)
	}

	return applyExpire(ctx, ctx.request(), expireAt)
}

func applyExpire(ctx *execContext, logged resp.Request, expireAt time.Time) resp.Value {
	if err := ctx.persist(logged); err != nil {
		return resp.MakeError(err.Error())
	}

	if ctx.storage.Expire(string(ctx.args[0]), expireAt) {
		return resp.MakeInteger(1)
	}
	return resp.MakeInteger(0)
}

// ttl returns the remaining seconds, -1 for a key without expiration and -2 for a missing key
func ttl(ctx *execContext) resp.Value {
	remaining, status := ctx.storage.Expiry(string(ctx.args[0]))

	switch status {
	case storage.ExpNotFound:
		return resp.MakeInteger(-2)
	case storage.ExpNoTimeout:
		return resp.MakeInteger(-1)
	}

	seconds := int64(remaining / time.Second)
	if seconds < 0 {
		return resp.MakeInteger(-2)
	}

	return resp.MakeInteger(seconds)
}

func flushdb(ctx *execContext) resp.Value {
	if err := ctx.persist(ctx.request()); err != nil {
		return resp.MakeError(err.Error())
	}

	ctx.storage.Flush()
	return resp.MakeOK()
}

// cmd handles COMMAND, COMMAND COUNT and COMMAND DOCS [name...]
func cmd(ctx *execContext) resp.Value {
	if len(ctx.args) == 0 {
		return getAllCommands()
	}

	switch strings.ToUpper(string(ctx.args[0])) {
	case "COUNT":
		return resp.MakeInteger(int64(len(commandRegistry)))
	case "DOCS":
		return getCommandsDocs(ctx.args[1:])
	}

	return resp.MakeError("ERR unknown subcommand '" + string(ctx.args[0]) + "'. Try COMMAND HELP.")
}
