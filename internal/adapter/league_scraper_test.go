package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradePage = `<!DOCTYPE html>
<html>
<head>
<script src="/js/app.js"></script>
<script>window.analytics = {leagues: false};</script>
</head>
<body>
<div id="trade"></div>
<script type="text/javascript">
require(["main"], function(){
  require(["trade"], function(t){
    t({"tab":"history","realm":"poe2","leagues":[{"id":"Dawn of the Hunt","realm":"poe2","text":"Dawn of the Hunt"},{"id":"Hardcore","realm":"poe2","text":"Hardcore"}],"news":{"items":[]}});
  });
});
</script>
</body>
</html>`

func TestExtractLeagues(t *testing.T) {
	leagues, err := ExtractLeagues([]byte(tradePage))
	require.NoError(t, err)
	require.Len(t, leagues, 2)
	assert.Equal(t, "Dawn of the Hunt", leagues[0].ID)
	assert.Equal(t, "Dawn of the Hunt", leagues[0].Text)
	assert.Equal(t, "Hardcore", leagues[1].ID)
}

func TestExtractLeagues_NoLeaguesKey(t *testing.T) {
	page := `<script>require(["trade"], function(t){ t({"tab":"history"}); }); // leagues</script>`
	leagues, err := ExtractLeagues([]byte(page))
	require.NoError(t, err)
	assert.Empty(t, leagues)
}

func TestExtractLeagues_Errors(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"no script", `<html><body>nothing</body></html>`},
		{"script outside tag text", `<p>require(["trade"] leagues t({})</p>`},
		{"no marker", `<script>require(["trade"]); var leagues;</script>`},
		{"unbalanced", `<script>require(["trade"], function(t){ t({"leagues":[</script>`},
		{"not json", `<script>require(["trade"], function(t){ t({leagues: []}) })</script>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractLeagues([]byte(tt.page))
			assert.Error(t, err)
		})
	}
}

func TestExtractObjectLiteral(t *testing.T) {
	got, err := extractObjectLiteral(`x = t({"a":{"b":1}}, {"c":2})`, "t(")
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":1}}`, got)
}
