package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/trade-history-sync/internal/models"
)

const (
	tradeBootMarker = `require(["trade"]`
	configMarker    = "t("
)

var errNoTradeConfig = errors.New("trade configuration script not found")

// tradeConfig is the part of the page's boot object we read
type tradeConfig struct {
	Leagues []models.League `json:"leagues"`
}

// ExtractLeagues finds the trade boot script in an HTML page and returns the
// leagues of its configuration object.
func ExtractLeagues(page []byte) ([]models.League, error) {
	script, err := findTradeScript(page)
	if err != nil {
		return nil, err
	}

	literal, err := extractObjectLiteral(script, configMarker)
	if err != nil {
		return nil, err
	}

	var cfg tradeConfig
	if err := json.Unmarshal([]byte(literal), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse trade configuration: %w", err)
	}
	if cfg.Leagues == nil {
		return []models.League{}, nil
	}
	return cfg.Leagues, nil
}

// findTradeScript returns the text of the first <script> that boots the
// trade module and mentions leagues.
func findTradeScript(page []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(page))
	inScript := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", errNoTradeConfig
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = atom.Lookup(name) == atom.Script
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			text := string(z.Text())
			if strings.Contains(text, tradeBootMarker) && strings.Contains(text, "leagues") {
				return text, nil
			}
		}
	}
}

// extractObjectLiteral returns the first balanced {...} after marker. Braces
// are counted without regard to string literals.
func extractObjectLiteral(source, marker string) (string, error) {
	markerIndex := strings.Index(source, marker)
	if markerIndex == -1 {
		return "", errNoTradeConfig
	}
	start := strings.Index(source[markerIndex:], "{")
	if start == -1 {
		return "", errNoTradeConfig
	}
	start += markerIndex

	depth := 0
	for i := start; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return source[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced trade configuration object")
}
