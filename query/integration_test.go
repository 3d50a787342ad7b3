package query

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hatlonely/tql/dialect"
	"github.com/hatlonely/tql/expr"
	"github.com/hatlonely/tql/translator"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// shipperQuery 覆盖连接、投影、条件组合、排序和分页
func shipperQuery(t *testing.T, name string) *Builder {
	b := newBuilder(name)
	require.NoError(t, joinShipperType(b, WithDestColumns(expr.Column[ShipperType]("Name"))))
	require.NoError(t, b.Select(expr.Columns[Shipper]("CompanyName", "Phone")))
	require.NoError(t, b.Where(expr.For[Shipper](func(s *expr.Parameter) expr.Expr {
		return expr.StartsWith(s.Col("CompanyName"), expr.Val("Fed"))
	})))
	require.NoError(t, b.Or(shipperTypeID(7)))
	require.NoError(t, b.And(expr.For[ShipperType](func(t *expr.Parameter) expr.Expr {
		return expr.Ne(t.Col("Name"), expr.Null())
	})))
	require.NoError(t, b.OrderByDescending(expr.Column[Shipper]("CompanyName")))
	require.NoError(t, b.Limit(5, 10))
	return b
}

func TestGoldenSQL(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, name := range []string{"sqlite", "postgres", "mysql", "sqlserver"} {
		t.Run(name, func(t *testing.T) {
			sql, args, err := shipperQuery(t, name).ToSQL()
			require.NoError(t, err)
			assert.Equal(t, []any{"Fed", 7}, args)
			g.Assert(t, "shipper_"+name, []byte(sql))
		})
	}
}

func TestSQLPassesThroughDriver(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	query, args, err := shipperQuery(t, "postgres").ToSQL()
	require.NoError(t, err)

	mock.ExpectQuery(query).
		WithArgs("Fed", 7).
		WillReturnRows(sqlmock.NewRows([]string{"Name", "CompanyName", "Phone"}).AddRow("air", "Fedex", nil))

	rows, err := db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var typeName, company string
	var phone sql.NullString
	require.NoError(t, rows.Scan(&typeName, &company, &phone))
	assert.Equal(t, "air", typeName)
	assert.Equal(t, "Fedex", company)
	assert.False(t, phone.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type shipperRow struct {
	Name        string
	CompanyName string
	Phone       *string
}

func TestSQLiteExecution(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:query_test?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE "Region" ("Id" INTEGER PRIMARY KEY, "Name" TEXT)`,
		`CREATE TABLE "ShipperType" ("Id" INTEGER PRIMARY KEY, "Name" TEXT, "RegionId" INTEGER)`,
		`CREATE TABLE "Shipper" ("Id" INTEGER PRIMARY KEY, "CompanyName" TEXT, "Phone" TEXT, "ShipperTypeId" INTEGER)`,
		`INSERT INTO "ShipperType" ("Id", "Name") VALUES (7, 'air'), (8, 'sea'), (9, NULL)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	for i := 0; i < 30; i++ {
		require.NoError(t, db.Exec(`INSERT INTO "Shipper" ("CompanyName", "Phone", "ShipperTypeId") VALUES (?, ?, ?)`,
			fmt.Sprintf("Fed%02d", i), nil, 7+i%3).Error)
	}
	require.NoError(t, db.Exec(`INSERT INTO "Shipper" ("CompanyName", "Phone", "ShipperTypeId") VALUES ('Acme', '555', 7)`).Error)

	b := shipperQuery(t, "sqlite")
	query, args, err := b.ToSQL()
	require.NoError(t, err)

	var rows []shipperRow
	require.NoError(t, db.Raw(query, args...).Scan(&rows).Error)
	require.Len(t, rows, 10)
	assert.Equal(t, "Fed21", rows[0].CompanyName)
	for _, row := range rows {
		assert.NotEqual(t, "", row.Name)
		assert.Nil(t, row.Phone)
	}

	countSQL, countArgs, err := b.Count()
	require.NoError(t, err)
	var total int64
	require.NoError(t, db.Raw(countSQL, countArgs...).Scan(&total).Error)
	assert.Equal(t, int64(21), total)

	distinct := newBuilder("sqlite")
	distinct.SelectDistinct()
	require.NoError(t, distinct.Select(expr.Column[Shipper]("ShipperTypeId")))
	countSQL, countArgs, err = distinct.Count()
	require.NoError(t, err)
	require.NoError(t, db.Raw(countSQL, countArgs...).Scan(&total).Error)
	assert.Equal(t, int64(3), total)

	aliased := newBuilder("sqlite")
	require.NoError(t, joinShipperType(aliased))
	require.NoError(t, aliased.Join(JoinLeft, expr.Column[Shipper]("ShipperTypeId"), expr.Column[ShipperType]("Id"), WithAlias("t2")))
	require.NoError(t, aliased.Where(expr.For[ShipperType](func(t *expr.Parameter) expr.Expr {
		return expr.Eq(t.Col("Name"), expr.Val("air"))
	})))
	countSQL, countArgs, err = aliased.Count()
	require.NoError(t, err)
	require.NoError(t, db.Raw(countSQL, countArgs...).Scan(&total).Error)
	assert.Equal(t, int64(11), total)
}

func TestConcurrentBuilders(t *testing.T) {
	tr := translator.New(newRegistry(), dialect.MustNew("sqlserver"))
	want, _, err := func() (string, []any, error) {
		b, err := NewT[Shipper](tr)
		require.NoError(t, err)
		require.NoError(t, joinShipperType(b))
		require.NoError(t, b.Where(shipperTypeID(7)))
		return b.ToSQL()
	}()
	require.NoError(t, err)

	var eg errgroup.Group
	results := make([]string, 32)
	for i := range results {
		i := i
		eg.Go(func() error {
			b, err := NewT[Shipper](tr)
			if err != nil {
				return err
			}
			if err := joinShipperType(b); err != nil {
				return err
			}
			if err := b.Where(shipperTypeID(7)); err != nil {
				return err
			}
			sql, _, err := b.ToSQL()
			results[i] = sql
			return err
		})
	}
	require.NoError(t, eg.Wait())
	for _, sql := range results {
		assert.Equal(t, want, sql)
	}
}
