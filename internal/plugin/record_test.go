package plugin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentify(t *testing.T) {
	// md5("http://a/feed.json" + "X")
	got := Identify("http://a/feed.json", "X")
	assert.Len(t, got, 32)
	assert.Equal(t, got, Identify("http://a/feed.json", "X"))
	assert.NotEqual(t, got, Identify("http://b/feed.json", "X"))

	// known vector: md5("") and md5("ab")
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Identify("", ""))
	assert.Equal(t, "187ef4436122d1cc2f40dc2b92f0eba0", Identify("a", "b"))
}

func TestRecordAccessors(t *testing.T) {
	r := Record{
		KeyName:     "Tweaks",
		KeyURL:      "http://a/feed.json",
		KeyAuthor:   "someone",
		KeyIconURL:  "https://img/icon.png",
		"Unrelated": 42,
	}

	assert.Equal(t, "Tweaks", r.Name())
	assert.Equal(t, "http://a/feed.json", r.URL())
	assert.Equal(t, "someone", r.Author())
	assert.Equal(t, "https://img/icon.png", r.IconURL())
	assert.False(t, r.IsFavorite())
	assert.Empty(t, r.Hash())

	r.SetFavorite(true)
	assert.True(t, r.IsFavorite())
}

func TestEnsureHash(t *testing.T) {
	r := Record{KeyName: "X", KeyURL: "http://a"}
	h := r.EnsureHash()
	assert.Equal(t, Identify("http://a", "X"), h)
	assert.Equal(t, h, r.Hash())

	// existing hash is kept
	r2 := Record{KeyName: "X", KeyURL: "http://a", KeyHash: "preset"}
	assert.Equal(t, "preset", r2.EnsureHash())

	// missing URL
	r3 := Record{KeyName: "X"}
	assert.Empty(t, r3.EnsureHash())
}

func TestAPILevel(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want int
	}{
		{"neither", Record{}, 0},
		{"stable only", Record{KeyAPILevel: json.Number("9")}, 9},
		{"lower testing wins", Record{KeyAPILevel: json.Number("9"), KeyTestingAPI: json.Number("8")}, 8},
		{"higher testing ignored", Record{KeyAPILevel: json.Number("8"), KeyTestingAPI: json.Number("10")}, 8},
		{"testing only", Record{KeyTestingAPI: json.Number("10")}, 0},
		{"float", Record{KeyAPILevel: 7.0}, 7},
		{"string", Record{KeyAPILevel: "6"}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.APILevel())
		})
	}
}

func TestWithout(t *testing.T) {
	r := Record{KeyName: "X", KeyURL: "u", KeyHash: "h", KeyFavorite: true}
	stripped := r.Without(DerivedKeys...)

	assert.Equal(t, Record{KeyName: "X"}, stripped)
	assert.Len(t, r, 4, "original must be untouched")
}

func TestMatcher(t *testing.T) {
	records := []Record{
		{KeyName: "Simple Tweaks"},
		{KeyName: "Chat2"},
		{KeyName: "Häagen"},
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"tweak", 1},
		{"CHAT", 1},
		{"HÄAGEN", 1},
		{"nothing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Len(t, NewMatcher(tt.query).Filter(records), tt.want)
		})
	}
}
