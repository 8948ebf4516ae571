package resp

// Reply type prefixes, the first byte of every encoded value
const (
	TypeSimpleString byte = '+'
	TypeError        byte = '-'
	TypeInteger      byte = ':'
	TypeBulkString   byte = '$'
	TypeArray        byte = '*'
)

// Value is a single reply sent to the client
type Value struct {
	String  []byte  // SimpleString, Error, BulkString
	Array   []Value // elements of an Array, each a BulkString
	Integer int64   // Integer
	Type    byte
	IsNull  bool // for nil BulkString
}

// Request is a decoded client request: the command name followed by its arguments
type Request [][]byte
