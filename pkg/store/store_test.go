package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

func testEntity(id, city string, typ entities.Type, minutesDate string) entities.Entity {
	e := entities.Entity{
		ID:      id,
		City:    city,
		Type:    typ,
		Address: id + " Main St",
		Status:  entities.StatusApplied,
	}
	if minutesDate != "" {
		e.MinutesURLs = []entities.Provenance{{URL: "https://city/" + id, Date: minutesDate, Status: entities.StatusApplied}}
	}
	return e
}

func ids(list []entities.Entity) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	bs, err := OpenBadger("", WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	return map[string]Store{"json": fs, "badger": bs}
}

func TestStoreAddGetList(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(testEntity("a", "Burnaby", entities.TypeRezoning, "2020-01-01")))
			require.NoError(t, s.Add(testEntity("b", "Surrey", entities.TypeRezoning, "2021-01-01")))
			require.NoError(t, s.Add(testEntity("c", "Burnaby", entities.TypeDevelopmentPermit, "")))

			err := s.Add(testEntity("a", "Burnaby", entities.TypeRezoning, ""))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrAlreadyExists))

			all, err := s.List(entities.TypeRezoning, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(all), "insertion order until sorted")

			burnaby, err := s.List(entities.TypeRezoning, "Burnaby")
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, ids(burnaby))

			got, err := s.Get(entities.TypeDevelopmentPermit, "c")
			require.NoError(t, err)
			assert.Equal(t, "c Main St", got.Address)

			_, err = s.Get(entities.TypeRezoning, "missing")
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestStoreReplace(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(testEntity("a", "Burnaby", entities.TypeRezoning, "2020-01-01")))
			require.NoError(t, s.Add(testEntity("b", "Burnaby", entities.TypeRezoning, "2020-02-01")))

			updated := testEntity("a", "Burnaby", entities.TypeRezoning, "2020-01-01")
			updated.Status = entities.StatusApproved
			require.NoError(t, s.Replace(updated))

			list, err := s.List(entities.TypeRezoning, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(list), "replace keeps position")
			assert.Equal(t, entities.StatusApproved, list[0].Status)

			err = s.Replace(testEntity("ghost", "Burnaby", entities.TypeRezoning, ""))
			require.Error(t, err)
			var nf *errors.NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, "ghost", nf.ID)
		})
	}
}

func TestStoreSort(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(testEntity("none", "X", entities.TypeRezoning, "")))
			require.NoError(t, s.Add(testEntity("old", "X", entities.TypeRezoning, "2019-06-01")))
			require.NoError(t, s.Add(testEntity("new", "X", entities.TypeRezoning, "2023-06-01")))
			require.NoError(t, s.Add(testEntity("mid", "X", entities.TypeRezoning, "2021-06-01")))

			require.NoError(t, s.Sort(entities.TypeRezoning))

			list, err := s.List(entities.TypeRezoning, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"new", "mid", "old", "none"}, ids(list))
		})
	}
}

func TestStoreReplaceAll(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(testEntity("keep", "Surrey", entities.TypeRezoning, "2020-01-01")))
			require.NoError(t, s.Add(testEntity("drop", "Burnaby", entities.TypeRezoning, "2020-01-01")))
			require.NoError(t, s.Add(testEntity("dp", "Burnaby", entities.TypeDevelopmentPermit, "2020-01-01")))

			replacement := []entities.Entity{
				testEntity("fresh1", "Burnaby", entities.TypeRezoning, "2022-01-01"),
				testEntity("fresh2", "Burnaby", entities.TypeRezoning, "2018-01-01"),
			}
			require.NoError(t, s.ReplaceAll(entities.TypeRezoning, "Burnaby", replacement))

			list, err := s.List(entities.TypeRezoning, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"fresh1", "keep", "fresh2"}, ids(list))

			_, err = s.Get(entities.TypeRezoning, "drop")
			assert.True(t, errors.IsNotFound(err))

			dps, err := s.List(entities.TypeDevelopmentPermit, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"dp"}, ids(dps), "other types untouched")

			wrongCity := []entities.Entity{testEntity("x", "Surrey", entities.TypeRezoning, "")}
			assert.Error(t, s.ReplaceAll(entities.TypeRezoning, "Burnaby", wrongCity))
		})
	}
}

func TestStoreReplaceAllKeepsIDsUnique(t *testing.T) {
	tests := []struct {
		name        string
		replacement []entities.Entity
	}{
		{
			name: "repeated id in replacement",
			replacement: []entities.Entity{
				testEntity("twice", "Surrey", entities.TypeRezoning, "2022-01-01"),
				testEntity("twice", "Surrey", entities.TypeRezoning, "2023-01-01"),
			},
		},
		{
			name: "id held by another city",
			replacement: []entities.Entity{
				testEntity("shared", "Surrey", entities.TypeRezoning, "2022-01-01"),
			},
		},
	}

	for _, tt := range tests {
		for name, s := range backends(t) {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				require.NoError(t, s.Add(testEntity("shared", "Delta", entities.TypeRezoning, "2020-01-01")))
				require.NoError(t, s.Add(testEntity("old", "Surrey", entities.TypeRezoning, "2019-01-01")))

				err := s.ReplaceAll(entities.TypeRezoning, "Surrey", tt.replacement)
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))

				list, err := s.List(entities.TypeRezoning, "")
				require.NoError(t, err)
				assert.Equal(t, []string{"shared", "old"}, ids(list), "partition unchanged")

				delta, err := s.Get(entities.TypeRezoning, "shared")
				require.NoError(t, err)
				assert.Equal(t, "Delta", delta.City)
			})
		}
	}

	// Reusing an id of the replaced city itself is allowed.
	for name, s := range backends(t) {
		t.Run("reuse own id/"+name, func(t *testing.T) {
			require.NoError(t, s.Add(testEntity("mine", "Surrey", entities.TypeRezoning, "2020-01-01")))
			require.NoError(t, s.ReplaceAll(entities.TypeRezoning, "Surrey",
				[]entities.Entity{testEntity("mine", "Surrey", entities.TypeRezoning, "2024-01-01")}))

			list, err := s.List(entities.TypeRezoning, "Surrey")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "2024-01-01", list[0].LatestDate())
		})
	}
}

func TestStoreRejectsInvalidEntities(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.IsValidationError(s.Add(entities.Entity{Type: entities.TypeRezoning})))
			assert.True(t, errors.IsValidationError(s.Add(entities.Entity{ID: "x", Type: "variance"})))
		})
	}
}

func TestFileStoreSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(dir)
	require.NoError(t, err)

	require.NoError(t, s.Add(testEntity("a", "Burnaby", entities.TypeDevelopmentPermit, "2020-01-01")))

	path := filepath.Join(dir, "development-permit.json")
	assert.Equal(t, path, s.Path(entities.TypeDevelopmentPermit))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "a"`)
	assert.Contains(t, string(data), `"type": "development permit"`)

	reopened, err := OpenFile(dir)
	require.NoError(t, err)
	list, err := reopened.List(entities.TypeDevelopmentPermit, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(list))
}

func TestFileStoreInMemory(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(dir, WithInMemory())
	require.NoError(t, err)

	require.NoError(t, s.Add(testEntity("a", "Burnaby", entities.TypeRezoning, "2020-01-01")))
	list, err := s.List(entities.TypeRezoning, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(list))

	_, err = os.Stat(s.Path(entities.TypeRezoning))
	assert.True(t, os.IsNotExist(err), "no snapshot written")

	_, err = OpenFile("")
	assert.Error(t, err)
	_, err = OpenFile("", WithInMemory())
	assert.NoError(t, err)
}

func TestFileStoreListIsACopy(t *testing.T) {
	s, err := OpenFile(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Add(testEntity("a", "Burnaby", entities.TypeRezoning, "2020-01-01")))

	list, err := s.List(entities.TypeRezoning, "")
	require.NoError(t, err)
	list[0].Address = "mutated"
	list[0].MinutesURLs[0].URL = "mutated"

	got, err := s.Get(entities.TypeRezoning, "a")
	require.NoError(t, err)
	assert.Equal(t, "a Main St", got.Address)
	assert.Equal(t, "https://city/a", got.MinutesURLs[0].URL)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(BackendJSON, dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(BackendBadger, dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open("postgres", dir)
	require.Error(t, err)
}
