package server

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eternalApril/minikv/internal/config"
	"github.com/eternalApril/minikv/internal/persistence"
	"github.com/eternalApril/minikv/internal/resp"
	"github.com/eternalApril/minikv/internal/storage"
)

// appendLog is the write side of the durability log
type appendLog interface {
	Append(payload []byte) error
	Close() error
}

// registeredCommand pairs a handler with its metadata from commandRegistry
type registeredCommand struct {
	commandMetadata
	handler command
}

// Engine coordinates the execution of commands against the storage and the durability log.
// Commands flagged "write" run exclusively so that the log order matches the order in which
// mutations become visible; other commands share the lock
type Engine struct {
	commands map[string]registeredCommand // Registry of available commands (the key is the command name in uppercase)
	storage  storage.Storage              // Interface to the underlying KV storage
	mu       sync.RWMutex                 // Serializes writes, together with their log appends
	stopOnce sync.Once                    // Ensures that the stop happens only once
	logger   *zap.Logger
	now      func() time.Time

	aof            appendLog // nil when persistence is disabled
	absoluteExpiry bool      // log relative expirations as absolute instants
	replaying      bool      // suppresses logging while the AOF is replayed, guarded by mu
}

// NewEngine initializes the engine and registers the commands.
// If the AOF is enabled in the config, it is opened and replayed before NewEngine returns;
// a replay failure is returned as an error
func NewEngine(s storage.Storage, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	engine := &Engine{
		commands:       make(map[string]registeredCommand),
		storage:        s,
		logger:         logger,
		now:            time.Now,
		absoluteExpiry: cfg.Persistence.AOF.AbsoluteExpiry,
	}
	engine.registerBasicCommand()

	if cfg.Persistence.AOF.Enabled {
		aof, err := persistence.NewAOF(
			cfg.Persistence.AOF.Filename,
			cfg.Persistence.AOF.Fsync,
			logger,
		)
		if err != nil {
			return nil, err
		}
		logger.Info("AOF opened",
			zap.String("file", aof.Filename()),
			zap.String("fsync", cfg.Persistence.AOF.Fsync),
		)

		cmds, err := aof.Load(cfg.Persistence.AOF.LoadTruncated)
		if err != nil {
			aof.Close() //nolint:errcheck
			return nil, errors.Wrap(err, "restore aof")
		}

		engine.aof = aof
		engine.Replay(cmds)
	}

	return engine, nil
}

// Replay executes the requests in order without writing them to the log again
func (e *Engine) Replay(cmds []resp.Request) {
	e.logger.Info("Restoring AOF...", zap.Int("commands", len(cmds)))

	e.setReplaying(true)
	defer e.setReplaying(false)

	failed := 0
	for _, req := range cmds {
		res := e.Handle(req)
		if res.Type == resp.TypeError {
			failed++
			e.logger.Warn("replayed command failed",
				zap.Int("args_count", len(req)),
				zap.ByteString("error", res.String),
			)
		}
	}

	e.logger.Info("AOF restore finished", zap.Int("failed", failed))
}

func (e *Engine) setReplaying(v bool) {
	e.mu.Lock()
	e.replaying = v
	e.mu.Unlock()
}

// register adds a new command to the engine. The command name is uppercase
// and must be described in commandRegistry
func (e *Engine) register(name string, cmd command) {
	name = strings.ToUpper(name)

	meta, ok := commandRegistry[name]
	if !ok {
		panic("no metadata for command " + name)
	}

	e.commands[name] = registeredCommand{commandMetadata: meta, handler: cmd}
}

// registerBasicCommand fills the registry with standard commands
func (e *Engine) registerBasicCommand() {
	e.register("PING", commandFunc(ping))
	e.register("ECHO", commandFunc(echo))
	e.register("GET", commandFunc(get))
	e.register("SET", commandFunc(set))
	e.register("DEL", commandFunc(del))
	e.register("MSET", commandFunc(mset))
	e.register("MGET", commandFunc(mget))
	e.register("EXPIRE", commandFunc(expire))
	e.register("PEXPIREAT", commandFunc(pexpireat))
	e.register("TTL", commandFunc(ttl))
	e.register("FLUSHDB", commandFunc(flushdb))
	e.register("COMMAND", commandFunc(cmd))
}

// Handle executes a single request and returns the reply.
// Semantic errors are returned as RESP errors, Handle never fails otherwise
func (e *Engine) Handle(req resp.Request) resp.Value {
	if len(req) == 0 {
		return resp.MakeError("ERR empty command")
	}

	name := strings.ToUpper(string(req[0]))
	args := req[1:]

	if e.logger.Core().Enabled(zap.DebugLevel) {
		// Log the command name and number of args
		e.logger.Debug("executing command",
			zap.String("cmd", name),
			zap.Int("args_count", len(args)),
		)
	}

	entry, ok := e.commands[name]
	if !ok {
		return resp.MakeErrorUnknownCommand(name)
	}

	if !entry.acceptsArgs(len(args)) {
		return resp.MakeErrorWrongNumberOfArguments(name)
	}

	if entry.isWrite() {
		e.mu.Lock()
		defer e.mu.Unlock()
	} else {
		e.mu.RLock()
		defer e.mu.RUnlock()
	}

	ctx := &execContext{
		name:    name,
		args:    args,
		storage: e.storage,
		now:     e.now(),
		engine:  e,
	}

	return entry.handler.execute(ctx)
}

// Shutdown shuts down the engine and releases the AOF. Errors are logged only
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		if e.aof == nil {
			return
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		if err := e.aof.Close(); err != nil {
			e.logger.Warn("AOF close failed", zap.Error(err))
			return
		}
		e.logger.Info("AOF closed")
	})
}
