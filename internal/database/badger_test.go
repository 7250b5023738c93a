package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rentwise/rentwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *BadgerDB {
	db, err := NewBadgerDB("", true, nil, DefaultIndexes...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func userDoc(email string) Document {
	return Document{
		model.UserFieldEmail:     email,
		model.UserFieldFirstName: "Jo",
		model.UserFieldCity:      "Leeds",
	}
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.Insert(ctx, model.CollectionUsers, userDoc("a@x.com"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := db.Get(ctx, model.CollectionUsers, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID())
	assert.Equal(t, "a@x.com", doc[model.UserFieldEmail])
	assert.Equal(t, "Jo", doc[model.UserFieldFirstName])

	_, err = db.Get(ctx, model.CollectionUsers, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertUnique(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.Insert(ctx, model.CollectionUsers, userDoc("a@x.com"))
	require.NoError(t, err)

	_, err = db.Insert(ctx, model.CollectionUsers, userDoc("a@x.com"))
	require.ErrorIs(t, err, ErrDuplicate)

	docs, err := db.CollectAll(ctx, model.CollectionUsers)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestInsertUniqueConcurrent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.Insert(ctx, model.CollectionUsers, userDoc("race@x.com"))
		}(i)
	}
	wg.Wait()

	docs, err := db.CollectAll(ctx, model.CollectionUsers)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestGetByIndex(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.Insert(ctx, model.CollectionUsers, userDoc("a@x.com"))
	require.NoError(t, err)

	tt := []struct {
		name  string
		field string
		value string
		err   error
	}{
		{
			name:  "Found",
			field: model.UserFieldEmail,
			value: "a@x.com",
		},
		{
			name:  "Exact Match Only",
			field: model.UserFieldEmail,
			value: "A@x.com",
			err:   ErrNotFound,
		},
		{
			name:  "Missing Index",
			field: model.UserFieldCity,
			value: "Leeds",
			err:   ErrNoIndex,
		},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			doc, err := db.GetByIndex(ctx, model.CollectionUsers, test.field, test.value)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, doc.ID())
		})
	}
}

func TestGetByNonUniqueIndex(t *testing.T) {
	ctx := context.Background()
	db, err := NewBadgerDB("", true, nil, Index{Collection: model.CollectionUsers, Field: model.UserFieldCity})
	require.NoError(t, err)
	defer db.Close()

	id, err := db.Insert(ctx, model.CollectionUsers, userDoc("a@x.com"))
	require.NoError(t, err)

	doc, err := db.GetByIndex(ctx, model.CollectionUsers, model.UserFieldCity, "Leeds")
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID())
}

func TestPatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc := userDoc("a@x.com")
	doc[model.UserFieldAddress] = "1 High St"
	id, err := db.Insert(ctx, model.CollectionUsers, doc)
	require.NoError(t, err)

	err = db.Patch(ctx, model.CollectionUsers, id, Document{
		model.UserFieldCity:    "London",
		model.UserFieldAddress: nil,
	})
	require.NoError(t, err)

	patched, err := db.Get(ctx, model.CollectionUsers, id)
	require.NoError(t, err)
	assert.Equal(t, "London", patched[model.UserFieldCity])
	assert.Equal(t, "Jo", patched[model.UserFieldFirstName])
	assert.False(t, patched.Has(model.UserFieldAddress))

	err = db.Patch(ctx, model.CollectionUsers, "missing", Document{model.UserFieldCity: "York"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatchMaintainsUniqueIndex(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.Insert(ctx, model.CollectionUsers, userDoc("a@x.com"))
	require.NoError(t, err)
	_, err = db.Insert(ctx, model.CollectionUsers, userDoc("b@x.com"))
	require.NoError(t, err)

	err = db.Patch(ctx, model.CollectionUsers, id, Document{model.UserFieldEmail: "b@x.com"})
	require.ErrorIs(t, err, ErrDuplicate)

	err = db.Patch(ctx, model.CollectionUsers, id, Document{model.UserFieldEmail: "c@x.com"})
	require.NoError(t, err)

	_, err = db.GetByIndex(ctx, model.CollectionUsers, model.UserFieldEmail, "a@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	doc, err := db.GetByIndex(ctx, model.CollectionUsers, model.UserFieldEmail, "c@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID())
}

func TestPut(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	err := db.Put(ctx, CollectionMigrations, "job", Document{"cursor": "abc"})
	require.NoError(t, err)
	err = db.Put(ctx, CollectionMigrations, "job", Document{"cursor": "def"})
	require.NoError(t, err)

	doc, err := db.Get(ctx, CollectionMigrations, "job")
	require.NoError(t, err)
	assert.Equal(t, "def", doc["cursor"])
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	const total = 7
	for i := 0; i < total; i++ {
		_, err := db.Insert(ctx, model.CollectionTenancies, Document{model.TenancyFieldResendCount: i})
		require.NoError(t, err)
	}
	// Documents in other collections must not leak into the scan.
	_, err := db.Insert(ctx, model.CollectionUsers, userDoc("a@x.com"))
	require.NoError(t, err)

	seen := map[string]bool{}
	after := ""
	pages := 0
	for {
		docs, next, err := db.Scan(ctx, model.CollectionTenancies, after, 3)
		require.NoError(t, err)
		pages++
		for _, doc := range docs {
			assert.False(t, seen[doc.ID()], "document %s returned twice", doc.ID())
			seen[doc.ID()] = true
		}
		if next == "" {
			break
		}
		after = next
	}
	assert.Len(t, seen, total)
	assert.Equal(t, 3, pages)

	all, err := db.CollectAll(ctx, model.CollectionTenancies)
	require.NoError(t, err)
	assert.Len(t, all, total)
}

func TestScanExactPage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i := 0; i < 2; i++ {
		_, err := db.Insert(ctx, model.CollectionTenancies, Document{model.TenancyFieldResendCount: i})
		require.NoError(t, err)
	}

	docs, next, err := db.Scan(ctx, model.CollectionTenancies, "", 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Empty(t, next)
}

func TestInvalidCollection(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, collection := range []string{"", "idx", "bad_name"} {
		t.Run(fmt.Sprintf("%q", collection), func(t *testing.T) {
			_, err := db.Insert(ctx, collection, Document{})
			assert.ErrorIs(t, err, ErrInvalidCollection)
		})
	}
}

func TestDecode(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	u := model.User{
		Email:     "a@x.com",
		FirstName: "Jo",
		Gender:    model.GenderFemale,
		Role:      model.RoleTenant,
		CreatedAt: created,
	}
	doc := Document(u.Document())
	doc[FieldID] = "id-1"

	var decoded model.User
	require.NoError(t, Decode(doc, &decoded))
	assert.Equal(t, "id-1", decoded.ID)
	assert.Equal(t, model.GenderFemale, decoded.Gender)
	assert.True(t, created.Equal(decoded.CreatedAt))

	// JSON backends hand numbers back as float64.
	var tenancy model.Tenancy
	require.NoError(t, Decode(Document{model.TenancyFieldResendCount: float64(3)}, &tenancy))
	require.NotNil(t, tenancy.ResendCount)
	assert.Equal(t, 3, *tenancy.ResendCount)
	assert.Nil(t, tenancy.AddressVerified)
}
