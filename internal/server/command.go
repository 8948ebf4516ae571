package server

import (
	"fmt"
	"time"

	"github.com/eternalApril/minikv/internal/resp"
	"github.com/eternalApril/minikv/internal/storage"
)

// execContext carries everything a single command execution needs
type execContext struct {
	name    string   // command name, uppercase
	args    [][]byte // arguments without the command name
	storage storage.Storage
	now     time.Time
	engine  *Engine
}

// command executes one request against the storage and builds the reply.
// Mutating commands must call execContext.persist after validating their arguments
// and before touching the storage
type command interface {
	execute(ctx *execContext) resp.Value
}

type commandFunc func(ctx *execContext) resp.Value

func (c commandFunc) execute(ctx *execContext) resp.Value {
	return c(ctx)
}

// request rebuilds the request as received, with the name normalized
func (ctx *execContext) request() resp.Request {
	req := make(resp.Request, 0, 1+len(ctx.args))
	req = append(req, []byte(ctx.name))
	return append(req, ctx.args...)
}

// persist appends req to the durability log ahead of the mutation it describes.
// Nothing is written while replaying or when no log is configured
func (ctx *execContext) persist(req resp.Request) error {
	e := ctx.engine
	if e.aof == nil || e.replaying {
		return nil
	}

	if err := e.aof.Append(resp.EncodeRequest(req)); err != nil {
		return fmt.Errorf("ERR durability log unavailable: %w", err)
	}

	return nil
}

// argCheck validates the number of arguments that follow the command name
type argCheck func(n int) bool

func oneOf(values ...int) argCheck {
	return func(n int) bool {
		for _, v := range values {
			if n == v {
				return true
			}
		}
		return false
	}
}

// pairs accepts a non-empty list of key/value pairs
func pairs() argCheck {
	return func(n int) bool { return n >= 2 && n%2 == 0 }
}
