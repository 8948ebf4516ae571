package server

import (
	"sort"
	"strings"

	"github.com/eternalApril/minikv/internal/resp"
)

type commandMetadata struct {
	arity    int      // Arity includes the command name itself, negative means "at least"
	accepts  argCheck // Exact check of the argument count when arity alone is not enough
	flags    []string // readonly, write, fast, denyoom, etc
	firstKey int      // 1-based index of the first key
	lastKey  int      // 1-based index of the last key
	step     int      // Step count for finding keys
}

// isWrite reports whether the command mutates the storage and must go through the durability log
func (m commandMetadata) isWrite() bool {
	for _, f := range m.flags {
		if f == "write" {
			return true
		}
	}
	return false
}

// acceptsArgs checks the number of arguments that follow the command name
func (m commandMetadata) acceptsArgs(n int) bool {
	if m.accepts != nil {
		return m.accepts(n)
	}
	if m.arity < 0 {
		return n+1 >= -m.arity
	}
	return n+1 == m.arity
}

var (
	commandRegistry = map[string]commandMetadata{
		"PING":      {-1, oneOf(0, 1), []string{"fast", "stale"}, 0, 0, 0},
		"ECHO":      {2, nil, []string{"fast"}, 0, 0, 0},
		"GET":       {2, nil, []string{"readonly", "fast"}, 1, 1, 1},
		"SET":       {-3, oneOf(2, 4), []string{"write", "denyoom"}, 1, 1, 1},
		"DEL":       {-2, nil, []string{"write"}, 1, -1, 1},
		"MSET":      {-3, pairs(), []string{"write", "denyoom"}, 1, -1, 2},
		"MGET":      {-2, nil, []string{"readonly", "fast"}, 1, -1, 1},
		"EXPIRE":    {3, nil, []string{"write", "fast"}, 1, 1, 1},
		"PEXPIREAT": {3, nil, []string{"write", "fast"}, 1, 1, 1},
		"TTL":       {2, nil, []string{"readonly", "fast"}, 1, 1, 1},
		"FLUSHDB":   {1, nil, []string{"write"}, 0, 0, 0},
		"COMMAND":   {-1, nil, []string{"random", "loading", "stale"}, 0, 0, 0},
	}
)

// commandDoc stores a description for the command
type commandDoc struct {
	summary    string
	complexity string
	group      string
	since      string
}

// commandDocsRegistry documentation registry
var commandDocsRegistry = map[string]commandDoc{
	"PING": {
		summary:    "Ping the server.",
		complexity: "O(1)",
		group:      "connection",
		since:      "1.0.0",
	},
	"ECHO": {
		summary:    "Return the given string.",
		complexity: "O(1)",
		group:      "connection",
		since:      "1.0.0",
	},
	"GET": {
		summary:    "Get the value of a key.",
		complexity: "O(1)",
		group:      "string",
		since:      "1.0.0",
	},
	"SET": {
		summary:    "Set the string value of a key, optionally with an expiration.",
		complexity: "O(1)",
		group:      "string",
		since:      "1.0.0",
	},
	"DEL": {
		summary:    "Delete a key.",
		complexity: "O(N) where N is the number of keys that will be removed.",
		group:      "generic",
		since:      "1.0.0",
	},
	"MSET": {
		summary:    "Set multiple keys to multiple values.",
		complexity: "O(N) where N is the number of keys to set.",
		group:      "string",
		since:      "1.0.0",
	},
	"MGET": {
		summary:    "Get the values of all the given keys.",
		complexity: "O(N) where N is the number of keys to retrieve.",
		group:      "string",
		since:      "1.0.0",
	},
	"EXPIRE": {
		summary:    "Set a key's time to live in seconds.",
		complexity: "O(1)",
		group:      "generic",
		since:      "1.0.0",
	},
	"PEXPIREAT": {
		summary:    "Set the expiration of a key as a UNIX timestamp in milliseconds.",
		complexity: "O(1)",
		group:      "generic",
		since:      "1.0.0",
	},
	"TTL": {
		summary:    "Get the time to live for a key in seconds.",
		complexity: "O(1)",
		group:      "generic",
		since:      "1.0.0",
	},
	"FLUSHDB": {
		summary:    "Remove all keys.",
		complexity: "O(N) where N is the total number of keys.",
		group:      "server",
		since:      "1.0.0",
	},
	"COMMAND": {
		summary:    "Get array of command details.",
		complexity: "O(N) where N is the number of commands to look up.",
		group:      "server",
		since:      "1.0.0",
	},
}

func makeFlagsArray(flags []string) resp.Value {
	vals := make([]resp.Value, len(flags))
	for i, f := range flags {
		vals[i] = resp.MakeSimpleString(f)
	}
	return resp.MakeArray(vals)
}

func makeInfoCmdArray(name string) []resp.Value {
	meta := commandRegistry[name]
	return []resp.Value{
		resp.MakeBulkString(strings.ToLower(name)),
		resp.MakeInteger(int64(meta.arity)),
		makeFlagsArray(meta.flags),
		resp.MakeInteger(int64(meta.firstKey)),
		resp.MakeInteger(int64(meta.lastKey)),
		resp.MakeInteger(int64(meta.step)),
	}
}

// sortedCommandNames returns the registered names in a stable order
func sortedCommandNames() []string {
	names := make([]string, 0, len(commandRegistry))
	for name := range commandRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getAllCommands() resp.Value {
	cmdArray := make([]resp.Value, 0, len(commandRegistry))
	for _, name := range sortedCommandNames() {
		details := makeInfoCmdArray(name)
		cmdArray = append(cmdArray, resp.MakeArray(details))
	}
	return resp.MakeArray(cmdArray)
}

// getCommandsDocs returns documentation for specified commands or all commands
// Format: [Name, [Summary, val, Since, val...], Name, [...]]
func getCommandsDocs(args [][]byte) resp.Value {
	var targets []string

	if len(args) == 0 {
		targets = sortedCommandNames()
	} else {
		targets = make([]string, 0, len(args))
		for _, arg := range args {
			targets = append(targets, strings.ToUpper(string(arg)))
		}
	}

	result := make([]resp.Value, 0, len(targets)*2)

	for _, name := range targets {
		doc, ok := commandDocsRegistry[name]
		if !ok {
			continue
		}

		result = append(result, resp.MakeBulkString(strings.ToLower(name)))

		props := []resp.Value{
			resp.MakeBulkString("summary"),
			resp.MakeBulkString(doc.summary),
			resp.MakeBulkString("since"),
			resp.MakeBulkString(doc.since),
			resp.MakeBulkString("group"),
			resp.MakeBulkString(doc.group),
			resp.MakeBulkString("complexity"),
			resp.MakeBulkString(doc.complexity),
		}

		result = append(result, resp.MakeArray(props))
	}

	return resp.MakeArray(result)
}
