// Package schema describes every table the economy keeps in the partitioned
// store. The set of tables is closed: TableID enumerates them and Definition
// is the single source of their key layout, shared by provisioning and by the
// repositories that read and write items.
package schema

import "fmt"

// AttributeType is the scalar type of a key attribute
type AttributeType string

const (
	AttributeTypeString AttributeType = "S"
	AttributeTypeNumber AttributeType = "N"
)

// Attribute names used as keys
const (
	AttrGuildID     = "guildId"
	AttrName        = "name"
	AttrUserID      = "userId"
	AttrTimestamp   = "timestamp"
	AttrCharacterID = "characterId"
	AttrID          = "id"
)

// IDIndex is the secondary index mapping a global numeric id to the full record
const IDIndex = "IdIndex"

// SequencePartition is the reserved characters-table partition holding the id
// counters of every numbered table. Guild ids are numeric snowflakes so they
// never collide.
const SequencePartition = "#sequence"

// Attribute is a typed key attribute
type Attribute struct {
	Name string
	Type AttributeType
}

// Index is a global secondary index. Projection is always ALL.
type Index struct {
	Name         string
	PartitionKey Attribute
}

// Table is the static description of one table
type Table struct {
	ID           TableID
	Name         string
	PartitionKey Attribute
	SortKey      *Attribute
	Indexes      []Index
	// Protected tables are never deleted by provisioning
	Protected bool
}

// HasIndex reports whether the table declares the named index
func (t Table) HasIndex(name string) bool {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

// AttributeDefinitions returns every attribute that takes part in a key of the
// table or of one of its indexes, without duplicates, in declaration order.
func (t Table) AttributeDefinitions() []Attribute {
	seen := make(map[string]bool)
	var attrs []Attribute
	add := func(a Attribute) {
		if !seen[a.Name] {
			seen[a.Name] = true
			attrs = append(attrs, a)
		}
	}

	add(t.PartitionKey)
	if t.SortKey != nil {
		add(*t.SortKey)
	}
	for _, idx := range t.Indexes {
		add(idx.PartitionKey)
	}
	return attrs
}

// TableID enumerates the tables of the economy
type TableID int

const (
	Currencies TableID = iota
	Wallets
	GuildSettings
	Transactions
	Characters
)

// All returns every table id in provisioning order
func All() []TableID {
	return []TableID{Currencies, Wallets, GuildSettings, Transactions, Characters}
}

// String returns the unprefixed table name
func (id TableID) String() string {
	switch id {
	case Currencies:
		return "currencies"
	case Wallets:
		return "user_wallets"
	case GuildSettings:
		return "guild_settings"
	case Transactions:
		return "transactions"
	case Characters:
		return "characters"
	default:
		return fmt.Sprintf("table(%d)", int(id))
	}
}

var (
	guildKey = Attribute{Name: AttrGuildID, Type: AttributeTypeString}
	idIndex  = Index{Name: IDIndex, PartitionKey: Attribute{Name: AttrID, Type: AttributeTypeNumber}}
)

func sortKey(name string) *Attribute {
	return &Attribute{Name: name, Type: AttributeTypeString}
}

// Definition returns the table description with the given name prefix applied.
// It panics on an id outside the enumeration.
func (id TableID) Definition(prefix string) Table {
	t := Table{
		ID:           id,
		Name:         prefix + id.String(),
		PartitionKey: guildKey,
	}

	switch id {
	case Currencies:
		t.SortKey = sortKey(AttrName)
		t.Indexes = []Index{idIndex}
	case Wallets:
		t.SortKey = sortKey(AttrUserID)
		t.Indexes = []Index{idIndex}
	case GuildSettings:
	case Transactions:
		t.SortKey = sortKey(AttrTimestamp)
		t.Indexes = []Index{idIndex}
	case Characters:
		t.SortKey = sortKey(AttrCharacterID)
		t.Indexes = []Index{idIndex}
		t.Protected = true
	default:
		panic(fmt.Sprintf("schema: unknown table id %d", int(id)))
	}

	return t
}

// Catalog resolves table ids to prefixed definitions
type Catalog struct {
	prefix string
}

// NewCatalog creates a catalog whose table names carry the given prefix
func NewCatalog(prefix string) *Catalog {
	return &Catalog{prefix: prefix}
}

// Table returns the definition of a single table
func (c *Catalog) Table(id TableID) Table {
	return id.Definition(c.prefix)
}

// Name returns the prefixed name of a table
func (c *Catalog) Name(id TableID) string {
	return c.prefix + id.String()
}

// Tables returns every definition in provisioning order
func (c *Catalog) Tables() []Table {
	ids := All()
	tables := make([]Table, 0, len(ids))
	for _, id := range ids {
		tables = append(tables, c.Table(id))
	}
	return tables
}
