package idbtypes

// TransactionMode is the isolation mode a transaction was created with.
type TransactionMode string

const (
	ModeReadOnly      TransactionMode = "readonly"
	ModeReadWrite     TransactionMode = "readwrite"
	ModeVersionChange TransactionMode = "versionchange"
)

// TransactionState is the transaction lifecycle state (spec §4.5).
type TransactionState string

const (
	StateActive     TransactionState = "active"
	StateInactive   TransactionState = "inactive"
	StateCommitting TransactionState = "committing"
	StateFinished   TransactionState = "finished"
)

// Durability is a hint passed through to the storage driver; the engine
// does not change behavior based on it beyond recording it.
type Durability string

const (
	DurabilityDefault Durability = "default"
	DurabilityStrict  Durability = "strict"
	DurabilityRelaxed Durability = "relaxed"
)

// CursorDirection is one of the four iteration orders (spec §4.8).
type CursorDirection string

const (
	DirectionNext        CursorDirection = "next"
	DirectionNextUnique  CursorDirection = "nextunique"
	DirectionPrev        CursorDirection = "prev"
	DirectionPrevUnique  CursorDirection = "prevunique"
)

// Unique reports whether the direction collapses runs of equal index key.
func (d CursorDirection) Unique() bool {
	return d == DirectionNextUnique || d == DirectionPrevUnique
}

// Forward reports whether the direction iterates in ascending key order.
func (d CursorDirection) Forward() bool {
	return d == DirectionNext || d == DirectionNextUnique
}

// DatabaseInfo is a (name, version) pair as returned by list_databases.
type DatabaseInfo struct {
	Name    string
	Version uint64
}

// StoreMeta is the catalog record for one object store.
type StoreMeta struct {
	ID             uint64
	Name           string
	KeyPath        []string // nil = out-of-line keys; len==1 may still be a "sequence" if declared as such
	KeyPathIsArray bool     // true if the store was created with an explicit sequence key path
	AutoIncrement  bool
	CurrentKey     float64 // key generator value, spec ceiling 2^53
}

// IndexMeta is the catalog record for one secondary index.
type IndexMeta struct {
	ID         uint64
	StoreID    uint64
	Name       string
	KeyPath    []string
	IsArray    bool
	Unique     bool
	MultiEntry bool
}

// RequestSource identifies what kind of object issued a request.
type RequestSource string

const (
	SourceObjectStore RequestSource = "objectstore"
	SourceIndex       RequestSource = "index"
	SourceCursor      RequestSource = "cursor"
	SourceFactory     RequestSource = "factory"
)
