package sources

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateURLs_DataAnalyst(t *testing.T) {
	got := GenerateURLs("Data Analyst")

	assert.Equal(t, []string{
		"https://www.linkedin.com/jobs/search/?keywords=Data%20Analyst",
		"https://www.indeed.com/jobs?q=Data%20Analyst",
		"https://www.glassdoor.com/Job/jobs.htm?sc.keyword=Data%20Analyst",
		"https://stackoverflow.com/jobs?q=Data%20Analyst",
		"https://jobs.google.com/search?q=Data%20Analyst",
		"https://www.ziprecruiter.com/Jobs/Data%20Analyst",
		"https://www.monster.com/jobs/search/?q=Data%20Analyst",
		"https://www.careerbuilder.com/jobs?keywords=Data%20Analyst",
	}, got)
}

func TestGenerateURLs_Deterministic(t *testing.T) {
	for _, title := range []string{"Go Developer", "C++ / Rust Engineer", "Ingeniero de Datos ñ", "a&b=c?d"} {
		first := GenerateURLs(title)
		second := GenerateURLs(title)
		assert.Equal(t, first, second, title)
		assert.Len(t, first, PerTitle(), title)
	}
}

func TestGenerateURLs_EncodesReservedCharacters(t *testing.T) {
	got := GenerateURLs("C++ & Go/Rust")

	u, err := url.Parse(got[1])
	require.NoError(t, err)
	assert.Equal(t, "C++ & Go/Rust", u.Query().Get("q"))
	assert.Equal(t, "www.indeed.com", u.Hostname())
}

func TestGenerateURLs_ComponentEncoding(t *testing.T) {
	cases := map[string]string{
		"C++ (Senior)":       "C%2B%2B%20(Senior)",
		"Dev! *Ops* it's ~x": "Dev!%20*Ops*%20it's%20~x",
		"a&b=c?d/e":          "a%26b%3Dc%3Fd%2Fe",
		"Ingeniero ñ":        "Ingeniero%20%C3%B1",
	}

	for title, want := range cases {
		got := GenerateURLs(title)
		assert.Equal(t, "https://www.indeed.com/jobs?q="+want, got[1], title)
		assert.Equal(t, "https://www.ziprecruiter.com/Jobs/"+want, got[5], title)
	}
}

func TestExpandTitles_TitleThenBoardOrder(t *testing.T) {
	got := ExpandTitles([]string{"Nurse", "Welder"})

	require.Len(t, got, 2*PerTitle())
	assert.Equal(t, GenerateURLs("Nurse"), got[:PerTitle()])
	assert.Equal(t, GenerateURLs("Welder"), got[PerTitle():])
}

func TestBoards_ReturnsCopy(t *testing.T) {
	b := Boards()
	b[0].Name = "changed"
	assert.Equal(t, "linkedin", Boards()[0].Name)
}
