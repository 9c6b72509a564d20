package csvsink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
)

var names = config.Outputs{Movies: "movies", Titles: "titles", Genres: "genres", GenresNames: "genres_names"}

func TestWriter_PathUsesStamp(t *testing.T) {
	w := NewWriter("/data", time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("/data", "20260307_movies.csv"), w.Path("movies"))
}

func TestWriteAll_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))

	tables := domain.Tables{
		Movies: []domain.Movie{
			{IDMovie: "tt1", TitleOriginal: "A|B \"quoted\"", Year: domain.Some("1999"), Duration: domain.None()},
			{IDMovie: "tt2", TitleOriginal: "Línea\nnueva", Year: domain.Some("2001"), Duration: domain.Some("95")},
		},
		Titles: []domain.Title{{IDMovie: "tt1", Language: "ca", Title: "Títol"}},
		Genres: []domain.GenreAssignment{{IDMovie: "tt1", IDGenre: 0}},
		Names:  []domain.Genre{{IDGenre: 0, Name: "Drama"}},
	}

	res, err := w.WriteAll(names, tables)
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, "movies", res[0].Name)
	assert.Equal(t, 2, res[0].Rows)

	header, rows, err := ReadTable(w.Path("movies"))
	require.NoError(t, err)
	assert.Equal(t, MoviesHeader, header)
	assert.Equal(t, [][]string{
		{"tt1", "A|B \"quoted\"", "1999", ""},
		{"tt2", "Línea\nnueva", "2001", "95"},
	}, rows)

	header, rows, err = ReadTable(w.Path("genres_names"))
	require.NoError(t, err)
	assert.Equal(t, GenresNamesHeader, header)
	assert.Equal(t, [][]string{{"0", "Drama"}}, rows)
}

func TestWriteAll_EmptyTablesKeepHeader(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, time.Now())

	_, err := w.WriteAll(names, domain.Tables{})
	require.NoError(t, err)

	for _, n := range []string{"movies", "titles", "genres", "genres_names"} {
		b, err := os.ReadFile(w.Path(n))
		require.NoError(t, err)
		assert.NotEmpty(t, b, n)
		_, rows, err := ReadTable(w.Path(n))
		require.NoError(t, err)
		assert.Empty(t, rows, n)
	}
}

func TestWriteTable_OverwritesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, time.Now())

	_, err := w.WriteTable("titles", TitlesHeader, [][]string{{"tt1", "es", "Uno"}})
	require.NoError(t, err)
	_, err = w.WriteTable("titles", TitlesHeader, [][]string{{"tt2", "es", "Dos"}})
	require.NoError(t, err)

	_, rows, err := ReadTable(w.Path("titles"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"tt2", "es", "Dos"}}, rows)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteTable_Deterministic(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, time.Now())
	rows := [][]string{{"tt1", "0"}, {"tt2", "3"}}

	_, err := w.WriteTable("genres", GenresHeader, rows)
	require.NoError(t, err)
	first, err := os.ReadFile(w.Path("genres"))
	require.NoError(t, err)

	_, err = w.WriteTable("genres", GenresHeader, rows)
	require.NoError(t, err)
	second, err := os.ReadFile(w.Path("genres"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "id_movie|id_genre\ntt1|0\ntt2|3\n", string(first))
}
