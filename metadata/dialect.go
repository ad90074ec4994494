package metadata

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/sqlgate/sqlgate/database/types"
)

// Constraint types reported by DescribeTable.
const (
	ConstraintPrimaryKey = "PRIMARY KEY"
	ConstraintForeignKey = "FOREIGN KEY"
)

// catalogQuery builds one query about table in database.
type catalogQuery func(sb squirrel.StatementBuilderType, database, table string) squirrel.SelectBuilder

// dialect builds the catalog queries of one database family. Column queries
// select name, data type, size, nullable flag, default and position. Index
// queries select index name, unique flag and column, one row per indexed
// column in key order. Constraint queries select name, type, column,
// referenced table and referenced column, primary keys first.
type dialect struct {
	sb squirrel.StatementBuilderType
	// fold normalizes a table name to the catalog's stored case.
	fold        func(string) string
	tables      func(sb squirrel.StatementBuilderType, database string) squirrel.SelectBuilder
	columns     catalogQuery
	primaryKey  catalogQuery
	indexes     catalogQuery
	constraints catalogQuery
	comment     catalogQuery
}

func dialectFor(kind types.Kind) (*dialect, error) {
	switch kind {
	case types.MySQL:
		d := informationSchema(squirrel.Question, func(col, database string) squirrel.Sqlizer {
			return squirrel.Eq{col: database}
		})
		d.indexes = mysqlIndexes
		d.constraints = mysqlConstraints
		d.comment = mysqlComment
		return d, nil
	case types.PostgreSQL, types.KingBase:
		d := informationSchema(squirrel.Dollar, func(col, _ string) squirrel.Sqlizer {
			return squirrel.Expr(col + " = current_schema()")
		})
		d.indexes = postgresIndexes
		d.comment = postgresComment
		return d, nil
	case types.SQLServer:
		d := informationSchema(squirrel.AtP, func(col, _ string) squirrel.Sqlizer {
			return squirrel.Expr(col + " = SCHEMA_NAME()")
		})
		d.indexes = sqlServerIndexes
		d.comment = sqlServerComment
		return d, nil
	case types.Oracle:
		return oracleDialect(), nil
	default:
		_, err := kind.Spec()
		return nil, err
	}
}

type schemaFilter func(col, database string) squirrel.Sqlizer

func identity(s string) string { return s }

var keyConstraintTypes = []string{ConstraintPrimaryKey, ConstraintForeignKey}

// informationSchema serves the families that expose the ANSI catalog views.
// Index and comment queries are family specific and set by the caller.
func informationSchema(ph squirrel.PlaceholderFormat, schema schemaFilter) *dialect {
	return &dialect{
		sb:   squirrel.StatementBuilder.PlaceholderFormat(ph),
		fold: identity,
		tables: func(sb squirrel.StatementBuilderType, database string) squirrel.SelectBuilder {
			return sb.Select("table_name").
				From("information_schema.tables").
				Where(schema("table_schema", database)).
				Where(squirrel.Eq{"table_type": "BASE TABLE"}).
				OrderBy("table_name")
		},
		columns: func(sb squirrel.StatementBuilderType, database, table string) squirrel.SelectBuilder {
			return sb.Select("column_name", "data_type", "character_maximum_length",
				"is_nullable", "column_default", "ordinal_position").
				From("information_schema.columns").
				Where(schema("table_schema", database)).
				Where(squirrel.Eq{"table_name": table}).
				OrderBy("ordinal_position")
		},
		primaryKey: func(sb squirrel.StatementBuilderType, database, table string) squirrel.SelectBuilder {
			return sb.Select("kcu.column_name").
				From("information_schema.table_constraints tc").
				Join("information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name" +
					" AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name").
				Where(squirrel.Eq{"tc.constraint_type": "PRIMARY KEY"}).
				Where(schema("tc.table_schema", database)).
				Where(squirrel.Eq{"tc.table_name": table}).
				OrderBy("kcu.ordinal_position")
		},
		constraints: func(sb squirrel.StatementBuilderType, database, table string) squirrel.SelectBuilder {
			return sb.Select("tc.constraint_name", "tc.constraint_type", "kcu.column_name", "rk.table_name", "rk.column_name").
				From("information_schema.table_constraints tc").
				Join("information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name" +
					" AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name").
				LeftJoin("information_schema.referential_constraints rc ON rc.constraint_schema = tc.constraint_schema" +
					" AND rc.constraint_name = tc.constraint_name").
				LeftJoin("information_schema.key_column_usage rk ON rk.constraint_schema = rc.unique_constraint_schema" +
					" AND rk.constraint_name = rc.unique_constraint_name" +
					" AND rk.ordinal_position = kcu.position_in_unique_constraint").
				Where(squirrel.Eq{"tc.constraint_type": keyConstraintTypes}).
				Where(schema("tc.table_schema", database)).
				Where(squirrel.Eq{"tc.table_name": table}).
				OrderBy("tc.constraint_type DESC", "tc.constraint_name", "kcu.ordinal_position")
		},
	}
}

func mysqlIndexes(sb squirrel.StatementBuilderType, database, table string) squirrel.SelectBuilder {
	return sb.Select("index_name", "non_unique = 0", "column_name").
		From("information_schema.statistics").
		Where(squirrel.Eq{"table_schema": database}).
		Where(squirrel.Eq{"table_name": table}).
		OrderBy("index_name", "seq_in_index")
}

// mysqlConstraints reads references from key_column_usage directly; MySQL
// names every primary key PRIMARY, so the ANSI join is ambiguous there.
func mysqlConstraints(sb squirrel.StatementBuilderType, database, table string) squirrel.SelectBuilder {
	return sb.Select("kcu.constraint_name", "tc.constraint_type", "kcu.column_name",
		"kcu.referenced_table_name", "kcu.referenced_column_name").
		From("information_schema.key_column_usage kcu").
		Join("information_schema.table_constraints tc ON tc.constraint_schema = kcu.constraint_schema" +
			" AND tc.table_name = kcu.table_name AND tc.constraint_name = kcu.constraint_name").
		Where(squirrel.Eq{"tc.constraint_type": keyConstraintTypes}).
		Where(squirrel.Eq{"kcu.table_schema": database}).
		Where(squirrel.Eq{"kcu.table_name": table}).
		OrderBy("tc.constraint_type DESC", "kcu.constraint_name", "kcu.ordinal_position")
}

func postgresIndexes(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
	return sb.Select("i.relname", "ix.indisunique", "a.attname").
		From("pg_index ix").
		Join("pg_class i ON i.oid = ix.indexrelid").
		Join("pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = ANY(ix.indkey)").
		Where(squirrel.Expr("ix.indrelid = to_regclass(?)", table)).
		OrderBy("i.relname", "array_position(ix.indkey::int2[], a.attnum)")
}

func sqlServerIndexes(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
	return sb.Select("i.name", "i.is_unique", "c.name").
		From("sys.indexes i").
		Join("sys.tables t ON t.object_id = i.object_id").
		Join("sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id").
		Join("sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id").
		Where(squirrel.Expr("t.schema_id = SCHEMA_ID()")).
		Where(squirrel.Eq{"t.name": table}).
		Where(squirrel.NotEq{"i.name": nil}).
		Where(squirrel.Eq{"ic.is_included_column": 0}).
		OrderBy("i.name", "ic.key_ordinal")
}

func mysqlComment(sb squirrel.StatementBuilderType, database, table string) squirrel.SelectBuilder {
	return sb.Select("table_comment").
		From("information_schema.tables").
		Where(squirrel.Eq{"table_schema": database}).
		Where(squirrel.Eq{"table_name": table})
}

func postgresComment(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
	return sb.Select().Column(squirrel.Expr("obj_description(to_regclass(?), 'pg_class')", table))
}

func sqlServerComment(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
	return sb.Select("CAST(ep.value AS NVARCHAR(4000))").
		From("sys.tables t").
		Join("sys.extended_properties ep ON ep.major_id = t.object_id AND ep.minor_id = 0 AND ep.name = 'MS_Description'").
		Where(squirrel.Expr("t.schema_id = SCHEMA_ID()")).
		Where(squirrel.Eq{"t.name": table})
}

// oracleDialect reads the current user's dictionary views. Unquoted Oracle
// identifiers are stored upper case.
func oracleDialect() *dialect {
	return &dialect{
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Colon),
		fold: strings.ToUpper,
		tables: func(sb squirrel.StatementBuilderType, _ string) squirrel.SelectBuilder {
			return sb.Select("table_name").From("user_tables").OrderBy("table_name")
		},
		columns: func(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
			return sb.Select("column_name", "data_type", "data_length", "nullable", "data_default", "column_id").
				From("user_tab_columns").
				Where(squirrel.Eq{"table_name": table}).
				OrderBy("column_id")
		},
		primaryKey: func(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
			return sb.Select("cc.column_name").
				From("user_constraints c").
				Join("user_cons_columns cc ON c.constraint_name = cc.constraint_name").
				Where(squirrel.Eq{"c.constraint_type": "P"}).
				Where(squirrel.Eq{"c.table_name": table}).
				OrderBy("cc.position")
		},
		indexes: func(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
			return sb.Select("i.index_name", "CASE WHEN i.uniqueness = 'UNIQUE' THEN 1 ELSE 0 END", "ic.column_name").
				From("user_indexes i").
				Join("user_ind_columns ic ON ic.index_name = i.index_name").
				Where(squirrel.Eq{"i.table_name": table}).
				OrderBy("i.index_name", "ic.column_position")
		},
		constraints: func(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
			return sb.Select("c.constraint_name",
				"CASE c.constraint_type WHEN 'P' THEN 'PRIMARY KEY' ELSE 'FOREIGN KEY' END",
				"cc.column_name", "rc.table_name", "rc.column_name").
				From("user_constraints c").
				Join("user_cons_columns cc ON cc.constraint_name = c.constraint_name").
				LeftJoin("user_cons_columns rc ON rc.constraint_name = c.r_constraint_name AND rc.position = cc.position").
				Where(squirrel.Eq{"c.constraint_type": []string{"P", "R"}}).
				Where(squirrel.Eq{"c.table_name": table}).
				OrderBy("c.constraint_type", "c.constraint_name", "cc.position")
		},
		comment: func(sb squirrel.StatementBuilderType, _, table string) squirrel.SelectBuilder {
			return sb.Select("comments").
				From("user_tab_comments").
				Where(squirrel.Eq{"table_name": table})
		},
	}
}
