package ir

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestNewTable(t *testing.T) {
	assert := assert.New(t)

	{
		tab, err := NewTable(
			"nodes",
			[]*Column{
				NewColumn("id", ColumnInt),
				NewColumn("cap", ColumnInt),
			},
			[]string{"id"},
			[][]int64{{0, 4}, {1, 3}},
		)
		assert.Nil(err)
		assert.Equal("nodes", tab.Name())
		assert.Equal(2, tab.NumRows())
		assert.Equal(int64(3), tab.Value(1, tab.Column("cap")))
		assert.Equal([]int64{4, 3}, tab.ColumnValues(tab.Column("cap")))
	}

	// shape errors
	{
		_, err := NewTable("t", nil, nil, nil)
		assert.NotNil(err)
	}
	{
		_, err := NewTable(
			"t",
			[]*Column{NewColumn("a", ColumnInt), NewColumn("a", ColumnInt)},
			nil,
			nil,
		)
		assert.NotNil(err)
	}
	{
		_, err := NewTable(
			"t",
			[]*Column{NewColumn("a", ColumnInt)},
			nil,
			[][]int64{{1, 2}},
		)
		assert.NotNil(err)
	}
	{
		_, err := NewTable(
			"t",
			[]*Column{NewColumn("a", ColumnInt)},
			[]string{"nope"},
			nil,
		)
		assert.NotNil(err)
	}

	// a column cannot belong to two tables
	{
		c := NewColumn("a", ColumnInt)
		_, err := NewTable("t1", []*Column{c}, nil, nil)
		assert.Nil(err)
		_, err = NewTable("t2", []*Column{c}, nil, nil)
		assert.NotNil(err)
	}
}

func TestRowKey(t *testing.T) {
	assert := assert.New(t)

	// single column key: just the key value
	{
		tab, err := NewTable(
			"tasks",
			[]*Column{
				NewColumn("id", ColumnInt),
				NewColumn("dem", ColumnInt),
			},
			[]string{"id"},
			[][]int64{{100, 2}, {200, 3}},
		)
		assert.Nil(err)
		assert.Equal("100", tab.RowKey(0))
		assert.Equal("200", tab.RowKey(1))
	}

	// no key: full row tuple
	{
		tab, err := NewTable(
			"tasks",
			[]*Column{
				NewColumn("a", ColumnInt),
				NewColumn("b", ColumnInt),
			},
			nil,
			[][]int64{{1, 2}},
		)
		assert.Nil(err)
		assert.Equal("(1,2)", tab.RowKey(0))
	}

	// composite key: also the full row tuple, never silently narrowed
	{
		tab, err := NewTable(
			"tasks",
			[]*Column{
				NewColumn("a", ColumnInt),
				NewColumn("b", ColumnInt),
			},
			[]string{"a", "b"},
			[][]int64{{7, 8}},
		)
		assert.Nil(err)
		assert.Equal("(7,8)", tab.RowKey(0))
	}
}

func TestUniquePrimaryKeyColumn(t *testing.T) {
	assert := assert.New(t)

	mkGen := func(pk []string) *TableRowGenerator {
		nodes, err := NewTable(
			"nodes",
			[]*Column{NewColumn("id", ColumnInt)},
			[]string{"id"},
			[][]int64{{0}},
		)
		assert.Nil(err)
		tab, err := NewTable(
			"tasks",
			[]*Column{
				NewColumn("a", ColumnInt),
				NewColumn("b", ColumnInt),
				NewForeignKeyColumn("node", nodes),
			},
			pk,
			[][]int64{{1, 2, 0}},
		)
		assert.Nil(err)
		gen, err := NewTableRowGenerator(tab, tab.Column("node"))
		assert.Nil(err)
		return gen
	}

	// arity 1: present
	{
		c, ok := mkGen([]string{"a"}).UniquePrimaryKeyColumn()
		assert.True(ok)
		assert.Equal("a", c.Name())
	}

	// arity 2: absent
	{
		_, ok := mkGen([]string{"a", "b"}).UniquePrimaryKeyColumn()
		assert.False(ok)
	}

	// no key at all: absent
	{
		_, ok := mkGen(nil).UniquePrimaryKeyColumn()
		assert.False(ok)
	}
}
