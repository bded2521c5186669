package ir

import (
	"fmt"
	"strings"
)

const (
	ColumnInt = iota
	ColumnBool
	ColumnForeignKey
)

func columnTypeToName(i int) string {
	switch i {
	case ColumnInt:
		return "int"
	case ColumnBool:
		return "bool"
	case ColumnForeignKey:
		return "fk"
	default:
		return "unknown"
	}
}

// Column of a relational IR table. Membership in its owning table is fixed
// once the table is constructed, ie a column object never migrates between
// tables.
type Column struct {
	name  string
	ty    int
	ref   *Table // foreign key target, only for ColumnForeignKey
	owner *Table // set by NewTable
}

func NewColumn(name string, ty int) *Column {
	return &Column{
		name: name,
		ty:   ty,
	}
}

// NewForeignKeyColumn creates a column whose values reference rows of the
// table |ref|. The lowering treats a foreign key column marked as variable
// inside a generator as the per row decision column.
func NewForeignKeyColumn(name string, ref *Table) *Column {
	return &Column{
		name: name,
		ty:   ColumnForeignKey,
		ref:  ref,
	}
}

func (self *Column) Name() string  { return self.name }
func (self *Column) Type() int     { return self.ty }
func (self *Column) Ref() *Table   { return self.ref }
func (self *Column) Owner() *Table { return self.owner }

// PrimaryKey is an ordered sequence of column references which jointly
// identify a row. Single column access goes through
// TableRowGenerator.UniquePrimaryKeyColumn, multi column keys must be
// handled through the composite path, never silently narrowed.
type PrimaryKey struct {
	columns []*Column
}

func (self *PrimaryKey) Columns() []*Column { return self.columns }
func (self *PrimaryKey) Arity() int         { return len(self.columns) }

// Table is an immutable description of one relational input, along with its
// integer valued row content. The content is owned by the external data
// layer, we just keep a read only view of it.
type Table struct {
	name    string
	columns []*Column
	pk      *PrimaryKey
	rows    [][]int64 // row major, each row has len(columns) cells
	colIdx  map[string]int
}

// NewTable builds a table from its column list, optional primary key column
// names and row content. The column objects become owned by the returned
// table.
func NewTable(
	name string,
	columns []*Column,
	pkName []string,
	rows [][]int64,
) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name must not be empty")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: at least one column is required", name)
	}

	out := &Table{
		name:    name,
		columns: columns,
		rows:    rows,
		colIdx:  make(map[string]int),
	}

	for idx, c := range columns {
		if c.owner != nil {
			return nil, fmt.Errorf(
				"table %s: column %s already belongs to table %s",
				name,
				c.name,
				c.owner.name,
			)
		}
		if _, ok := out.colIdx[c.name]; ok {
			return nil, fmt.Errorf("table %s: duplicated column %s", name, c.name)
		}
		c.owner = out
		out.colIdx[c.name] = idx
	}

	for ridx, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf(
				"table %s: row %d has %d cells, want %d",
				name,
				ridx,
				len(r),
				len(columns),
			)
		}
	}

	if len(pkName) != 0 {
		pk := &PrimaryKey{}
		for _, n := range pkName {
			c := out.Column(n)
			if c == nil {
				return nil, fmt.Errorf("table %s: unknown primary key column %s", name, n)
			}
			pk.columns = append(pk.columns, c)
		}
		out.pk = pk
	}

	return out, nil
}

func (self *Table) Name() string        { return self.name }
func (self *Table) Columns() []*Column  { return self.columns }
func (self *Table) PrimaryKey() *PrimaryKey {
	return self.pk
}

func (self *Table) NumRows() int { return len(self.rows) }

func (self *Table) Column(name string) *Column {
	idx, ok := self.colIdx[name]
	if !ok {
		return nil
	}
	return self.columns[idx]
}

func (self *Table) ColumnIndex(c *Column) int {
	idx, ok := self.colIdx[c.name]
	if !ok || self.columns[idx] != c {
		return -1
	}
	return idx
}

// Value reads one cell. The column must belong to this table.
func (self *Table) Value(row int, c *Column) int64 {
	idx := self.ColumnIndex(c)
	if idx < 0 {
		panic(fmt.Sprintf("column %s does not belong to table %s", c.name, self.name))
	}
	return self.rows[row][idx]
}

// ColumnValues returns the full column vector, in row order.
func (self *Table) ColumnValues(c *Column) []int64 {
	idx := self.ColumnIndex(c)
	if idx < 0 {
		panic(fmt.Sprintf("column %s does not belong to table %s", c.name, self.name))
	}
	out := make([]int64, len(self.rows))
	for i, r := range self.rows {
		out[i] = r[idx]
	}
	return out
}

// RowKey renders the identity of one row. With a single column primary key
// this is just that key's value, otherwise we fall back to the full row
// tuple, which is always unique enough for reporting purpose.
func (self *Table) RowKey(row int) string {
	if self.pk != nil && self.pk.Arity() == 1 {
		return fmt.Sprintf("%d", self.Value(row, self.pk.columns[0]))
	}
	buf := &strings.Builder{}
	buf.WriteString("(")
	for i, v := range self.rows[row] {
		if i != 0 {
			buf.WriteString(",")
		}
		buf.WriteString(fmt.Sprintf("%d", v))
	}
	buf.WriteString(")")
	return buf.String()
}
