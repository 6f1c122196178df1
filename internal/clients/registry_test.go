package clients

import (
	"testing"
	"time"

	"barbearia/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "(11) 98765-4321", want: "11987654321", ok: true},
		{in: "+55 11 98765-4321", want: "+5511987654321", ok: true},
		{in: "11.3456.7890", want: "1134567890", ok: true},
		{in: "98765-4321", ok: false},
		{in: "", ok: false},
		{in: "abc", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Upsert(t *testing.T) {
	r := NewRegistry()

	_, err := r.Upsert(model.ClientRecord{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidClient)
	_, err = r.Upsert(model.ClientRecord{Name: "Ana", Phone: "123"})
	assert.ErrorIs(t, err, ErrInvalidClient)
	_, err = r.Upsert(model.ClientRecord{Name: "Ana", Birthday: &model.Birthday{Day: 31, Month: time.April}})
	assert.ErrorIs(t, err, ErrInvalidClient)

	rec, err := r.Upsert(model.ClientRecord{
		Name:     "  Ana   Souza ",
		Phone:    "(11) 98765-4321",
		Birthday: &model.Birthday{Day: 4, Month: time.March},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", rec.Name)
	assert.Equal(t, "11987654321", rec.Phone)

	// partial update keeps stored fields
	rec, err = r.Upsert(model.ClientRecord{Name: "ana souza"})
	require.NoError(t, err)
	assert.Equal(t, "11987654321", rec.Phone)
	require.NotNil(t, rec.Birthday)

	got, err := r.Get("ANA SOUZA")
	require.NoError(t, err)
	assert.Equal(t, "ana souza", got.Name)
	assert.Len(t, r.All(), 1)

	_, err = r.Get("Bia")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Delete("Ana Souza"))
	assert.ErrorIs(t, r.Delete("Ana Souza"), ErrNotFound)
}

func TestRegistry_Match(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"Carlos Lima", "Carla Dias", "Marcos Carvalho"} {
		_, err := r.Upsert(model.ClientRecord{Name: n})
		require.NoError(t, err)
	}

	names := func(list []model.ClientRecord) []string {
		var out []string
		for _, c := range list {
			out = append(out, c.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Carla Dias", "Carlos Lima"}, names(r.Match("car")))
	assert.Equal(t, []string{"Marcos Carvalho"}, names(r.Match("carv")))
	assert.Empty(t, r.Match("zé"))
}

func TestRegistry_Birthdays(t *testing.T) {
	r := NewRegistry()
	add := func(name string, day int, month time.Month) {
		_, err := r.Upsert(model.ClientRecord{Name: name, Birthday: &model.Birthday{Day: day, Month: month}})
		require.NoError(t, err)
	}
	add("Ana", 4, time.March)
	add("Bia", 20, time.March)
	add("Caio", 1, time.March)
	add("Duda", 29, time.February)
	_, err := r.Upsert(model.ClientRecord{Name: "Sem data"})
	require.NoError(t, err)

	on := r.BirthdaysOn(model.NewDate(2024, time.March, 4))
	require.Len(t, on, 1)
	assert.Equal(t, "Ana", on[0].Name)

	month := r.BirthdaysInMonth(time.March)
	require.Len(t, month, 3)
	assert.Equal(t, "Caio", month[0].Name)
	assert.Equal(t, "Ana", month[1].Name)
	assert.Equal(t, "Bia", month[2].Name)

	assert.Len(t, r.BirthdaysOn(model.NewDate(2025, time.February, 28)), 1)
}

func TestRegistry_DocumentRoundTrip(t *testing.T) {
	r := NewRegistry()
	_, err := r.Upsert(model.ClientRecord{Name: "Ana", Phone: "11987654321"})
	require.NoError(t, err)

	doc := r.Document()
	assert.Contains(t, doc, "ana")

	loaded := NewRegistry()
	loaded.Load(Document{"stale key": doc["ana"], "empty": {Name: ""}})
	got, err := loaded.Get("Ana")
	require.NoError(t, err)
	assert.Equal(t, "11987654321", got.Phone)
	assert.Len(t, loaded.All(), 1)
}
