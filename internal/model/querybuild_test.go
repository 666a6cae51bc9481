package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFilterKey(t *testing.T) {
	useTestRegistry(t)
	book := Registry["Book"]

	cases := []struct {
		key    string
		path   []string
		column string
		op     string
	}{
		{"title", nil, "title", "eq"},
		{"title__icontains", nil, "title", "icontains"},
		{"published__year", nil, "published", "year"},
		{"authors__name", []string{"authors"}, "name", "eq"},
		{"authors__name__icontains", []string{"authors"}, "name", "icontains"},
		{"authors__favourite_book__title", []string{"authors", "favourite_book"}, "title", "eq"},
		{"reviews__source", []string{"reviews"}, "source", "eq"},
	}
	for _, c := range cases {
		path, column, op, err := book.parseFilterKey(c.key)
		if err != nil {
			t.Fatalf("parse %q: %v", c.key, err)
		}
		if diff := cmp.Diff(c.path, path); diff != "" {
			t.Fatalf("parse %q path (-want +got):\n%s", c.key, diff)
		}
		if column != c.column || op != c.op {
			t.Fatalf("parse %q: got (%s, %s), want (%s, %s)", c.key, column, op, c.column, c.op)
		}
	}

	bad := []string{
		"nope",
		"nope__name",
		"authors__nope",
		"authors__name__nope",
	}
	for _, key := range bad {
		if _, _, _, err := book.parseFilterKey(key); err == nil {
			t.Fatalf("parse %q must fail", key)
		}
	}

	// polymorphic relations cannot be traversed
	if _, _, _, err := Registry["Review"].parseFilterKey("content_object__title"); err == nil {
		t.Fatal("traversing a polymorphic relation must fail")
	}
}

func TestDetectJoins(t *testing.T) {
	useTestRegistry(t)

	cases := []struct {
		name  string
		model string
		paths [][]string
		want  []joinSpec
	}{
		{
			name:  "belongs_to",
			model: "Author",
			paths: [][]string{{"favourite_book"}},
			want: []joinSpec{
				{Table: "books", Alias: "t0", On: "main.favourite_book_id = t0.id"},
			},
		},
		{
			name:  "has_many",
			model: "Book",
			paths: [][]string{{"favourite_of"}},
			want: []joinSpec{
				{Table: "authors", Alias: "t0", On: "t0.favourite_book_id = main.id", Distinct: true},
			},
		},
		{
			name:  "many_to_many",
			model: "Book",
			paths: [][]string{{"authors"}},
			want: []joinSpec{
				{Table: "book_authors", Alias: "t0", On: "t0.book_id = main.id"},
				{Table: "authors", Alias: "t1", On: "t0.author_id = t1.id", Distinct: true},
			},
		},
		{
			name:  "generic",
			model: "Book",
			paths: [][]string{{"reviews"}},
			want: []joinSpec{
				{Table: "reviews", Alias: "t0", On: "t0.content_type = 'book' AND t0.object_id = main.id", Distinct: true},
			},
		},
		{
			name:  "shared prefix joins once",
			model: "Book",
			paths: [][]string{{"authors"}, {"authors", "favourite_book"}},
			want: []joinSpec{
				{Table: "book_authors", Alias: "t0", On: "t0.book_id = main.id"},
				{Table: "authors", Alias: "t1", On: "t0.author_id = t1.id", Distinct: true},
				{Table: "books", Alias: "t2", On: "t1.favourite_book_id = t2.id"},
			},
		},
	}
	for _, c := range cases {
		joins, _, err := Registry[c.model].detectJoins(c.paths)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if diff := cmp.Diff(c.want, joins); diff != "" {
			t.Fatalf("%s joins (-want +got):\n%s", c.name, diff)
		}
	}
}

func TestBuildSelectQuery(t *testing.T) {
	useTestRegistry(t)

	cases := []struct {
		name     string
		model    string
		filters  []filter
		excludes []filter
		orderBy  []string
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "plain filter",
			model:   "Book",
			filters: []filter{{Key: "title", Value: "Pro Django"}},
			wantSQL: `SELECT main.id, main.title, main.published FROM books AS main WHERE (main.title = $1)`,
			wantArgs: []any{
				"Pro Django",
			},
		},
		{
			name:     "operators",
			model:    "Book",
			filters:  []filter{{Key: "title__icontains", Value: "django"}, {Key: "published__year", Value: 2009}},
			wantSQL:  `SELECT main.id, main.title, main.published FROM books AS main WHERE (main.title ILIKE $1 AND EXTRACT(YEAR FROM main.published) = $2)`,
			wantArgs: []any{"%django%", 2009},
		},
		{
			name:     "iexact",
			model:    "Book",
			filters:  []filter{{Key: "title__iexact", Value: "pro django"}},
			wantSQL:  `SELECT main.id, main.title, main.published FROM books AS main WHERE (LOWER(main.title) = LOWER($1))`,
			wantArgs: []any{"pro django"},
		},
		{
			name:     "exclude",
			model:    "Book",
			filters:  []filter{{Key: "published__year", Value: 2009}},
			excludes: []filter{{Key: "title", Value: "Pro Django"}},
			wantSQL:  `SELECT main.id, main.title, main.published FROM books AS main WHERE (EXTRACT(YEAR FROM main.published) = $1 AND NOT (main.title = $2))`,
			wantArgs: []any{2009, "Pro Django"},
		},
		{
			name:     "order by descending",
			model:    "Book",
			orderBy:  []string{"-published", "title"},
			wantSQL:  `SELECT main.id, main.title, main.published FROM books AS main ORDER BY main.published DESC, main.title`,
			wantArgs: nil,
		},
		{
			name:     "belongs_to join",
			model:    "Author",
			filters:  []filter{{Key: "favourite_book__title", Value: "Pro Django"}},
			wantSQL:  `SELECT main.id, main.name, main.favourite_book_id FROM authors AS main LEFT JOIN books AS t0 ON main.favourite_book_id = t0.id WHERE (t0.title = $1)`,
			wantArgs: []any{"Pro Django"},
		},
		{
			name:     "many_to_many join is distinct",
			model:    "Book",
			filters:  []filter{{Key: "authors__name", Value: "Marty Alchin"}},
			wantSQL:  `SELECT DISTINCT main.id, main.title, main.published FROM books AS main LEFT JOIN book_authors AS t0 ON t0.book_id = main.id LEFT JOIN authors AS t1 ON t0.author_id = t1.id WHERE (t1.name = $1)`,
			wantArgs: []any{"Marty Alchin"},
		},
		{
			name:     "generic join carries the type label",
			model:    "Article",
			filters:  []filter{{Key: "reviews__source", Value: "Python Weekly"}},
			wantSQL:  `SELECT DISTINCT main.id, main.headline, main.published FROM articles AS main LEFT JOIN reviews AS t0 ON t0.content_type = 'article' AND t0.object_id = main.id WHERE (t0.source = $1)`,
			wantArgs: []any{"Python Weekly"},
		},
	}
	for _, c := range cases {
		sb, err := Registry[c.model].buildSelectQuery(c.filters, c.excludes, c.orderBy, 0, 0, nil, nil)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		sqlStr, args, err := sb.ToSql()
		if err != nil {
			t.Fatalf("%s: ToSql: %v", c.name, err)
		}
		if sqlStr != c.wantSQL {
			t.Fatalf("%s SQL:\n got %s\nwant %s", c.name, sqlStr, c.wantSQL)
		}
		if c.wantArgs == nil {
			if len(args) != 0 {
				t.Fatalf("%s args: got %v, want none", c.name, args)
			}
		} else if diff := cmp.Diff(c.wantArgs, args); diff != "" {
			t.Fatalf("%s args (-want +got):\n%s", c.name, diff)
		}
	}
}

func TestBuildSelectQueryLimitOffset(t *testing.T) {
	useTestRegistry(t)

	sb, err := Registry["Book"].buildSelectQuery(nil, nil, nil, 5, 10, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sqlStr, _, err := sb.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	want := `SELECT main.id, main.title, main.published FROM books AS main LIMIT 5 OFFSET 10`
	if sqlStr != want {
		t.Fatalf("SQL:\n got %s\nwant %s", sqlStr, want)
	}
}

func TestBuildCountQuery(t *testing.T) {
	useTestRegistry(t)

	// plain count
	sb, err := Registry["Book"].buildCountQuery(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sqlStr, _, err := sb.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if want := `SELECT COUNT(*) FROM books AS main`; sqlStr != want {
		t.Fatalf("SQL:\n got %s\nwant %s", sqlStr, want)
	}

	// a to-many join switches to a distinct count
	sb, err = Registry["Book"].buildCountQuery([]filter{{Key: "authors__name", Value: "x"}}, nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sqlStr, _, err = sb.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	want := `SELECT COUNT(DISTINCT main.id) FROM books AS main LEFT JOIN book_authors AS t0 ON t0.book_id = main.id LEFT JOIN authors AS t1 ON t0.author_id = t1.id WHERE (t1.name = $1)`
	if sqlStr != want {
		t.Fatalf("SQL:\n got %s\nwant %s", sqlStr, want)
	}
}

func TestBuildDatesQuery(t *testing.T) {
	useTestRegistry(t)
	book := Registry["Book"]

	cases := []struct {
		name     string
		filters  []filter
		excludes []filter
		want     string
	}{
		{
			name: "unfiltered",
			want: `SELECT DISTINCT date_trunc('year', main.published) AS dt FROM books AS main WHERE main.published IS NOT NULL ORDER BY dt`,
		},
		{
			name:    "filters constrain the dates",
			filters: []filter{{Key: "title__icontains", Value: "python"}},
			want:    `SELECT DISTINCT date_trunc('year', main.published) AS dt FROM books AS main WHERE (main.title ILIKE $1) AND main.published IS NOT NULL ORDER BY dt`,
		},
		{
			name:     "excludes too",
			excludes: []filter{{Key: "title", Value: "Pro Django"}},
			want:     `SELECT DISTINCT date_trunc('year', main.published) AS dt FROM books AS main WHERE (NOT (main.title = $1)) AND main.published IS NOT NULL ORDER BY dt`,
		},
		{
			name:    "relation paths join",
			filters: []filter{{Key: "authors__name", Value: "Marty Alchin"}},
			want:    `SELECT DISTINCT date_trunc('year', main.published) AS dt FROM books AS main LEFT JOIN book_authors AS t0 ON t0.book_id = main.id LEFT JOIN authors AS t1 ON t0.author_id = t1.id WHERE (t1.name = $1) AND main.published IS NOT NULL ORDER BY dt`,
		},
	}
	for _, c := range cases {
		sb, err := book.buildDatesQuery(c.filters, c.excludes, "published", "year")
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		sqlStr, _, err := sb.ToSql()
		if err != nil {
			t.Fatalf("%s: ToSql: %v", c.name, err)
		}
		if sqlStr != c.want {
			t.Fatalf("%s SQL:\n got %s\nwant %s", c.name, sqlStr, c.want)
		}
	}

	if _, err := book.buildDatesQuery(nil, nil, "published", "day"); err == nil {
		t.Fatal("unsupported precision must fail")
	}
	if _, err := book.buildDatesQuery(nil, nil, "nope", "year"); err == nil {
		t.Fatal("unknown column must fail")
	}
}

func TestBuildDeleteQuery(t *testing.T) {
	useTestRegistry(t)
	book := Registry["Book"]

	dq, err := book.buildDeleteQuery(
		[]filter{{Key: "title__startswith", Value: "Dive"}},
		[]filter{{Key: "title", Value: "Dive into HTML5"}},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sqlStr, args, err := dq.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	want := `DELETE FROM books WHERE title LIKE $1 AND NOT (title = $2)`
	if sqlStr != want {
		t.Fatalf("SQL:\n got %s\nwant %s", sqlStr, want)
	}
	if diff := cmp.Diff([]any{"Dive%", "Dive into HTML5"}, args); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}

	// relation paths are rejected on both sides
	if _, err := book.buildDeleteQuery([]filter{{Key: "authors__name", Value: "x"}}, nil); err == nil {
		t.Fatal("relation filter must be rejected")
	}
	if _, err := book.buildDeleteQuery(nil, []filter{{Key: "authors__name", Value: "x"}}); err == nil {
		t.Fatal("relation exclude must be rejected")
	}
}
