package cardforge

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/cardforge/cardforge/internal/gateways/database/models"
	"github.com/cardforge/cardforge/internal/gateways/memory"
)

// SeedFile is reference data for the memory driver. Accounts, catalogue and
// card instances belong to the rest of the game, so a standalone exchange
// needs them from somewhere.
type SeedFile struct {
	Accounts []struct {
		ID   string `toml:"id"`
		Gold uint64 `toml:"gold"`
		Gems uint64 `toml:"gems"`
	} `toml:"accounts"`
	Definitions []struct {
		ID       string `toml:"id"`
		Name     string `toml:"name"`
		Rarity   string `toml:"rarity"`
		CardType string `toml:"card_type"`
	} `toml:"definitions"`
	Cards []struct {
		ID      string `toml:"id"`
		OwnerID string `toml:"owner"`
		DefID   string `toml:"definition"`
		Foil    bool   `toml:"foil"`
	} `toml:"cards"`
}

func LoadSeedFile(path string) (memory.Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return memory.Fixture{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := toml.Unmarshal(data, &seed); err != nil {
		return memory.Fixture{}, fmt.Errorf("failed to decode seed file: %w", err)
	}
	return seed.Fixture()
}

func (s SeedFile) Fixture() (memory.Fixture, error) {
	var f memory.Fixture
	accounts := make(map[string]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		if a.ID == "" {
			return f, fmt.Errorf("seed account without id")
		}
		accounts[a.ID] = true
		f.Accounts = append(f.Accounts, models.Account{ID: a.ID, GoldBalance: a.Gold, GemBalance: a.Gems})
	}

	defs := make(map[string]bool, len(s.Definitions))
	for _, d := range s.Definitions {
		rarity := models.Rarity(d.Rarity)
		if !rarity.Valid() {
			return f, fmt.Errorf("definition %s has unknown rarity %q", d.ID, d.Rarity)
		}
		defs[d.ID] = true
		f.Definitions = append(f.Definitions, models.CardDefinition{ID: d.ID, Name: d.Name, Rarity: rarity, CardType: d.CardType})
	}

	for _, c := range s.Cards {
		if !accounts[c.OwnerID] {
			return f, fmt.Errorf("card %s owned by unknown account %q", c.ID, c.OwnerID)
		}
		if !defs[c.DefID] {
			return f, fmt.Errorf("card %s has unknown definition %q", c.ID, c.DefID)
		}
		f.Cards = append(f.Cards, models.CardInstance{ID: c.ID, OwnerID: c.OwnerID, CardDefID: c.DefID, IsFoil: c.Foil})
	}
	return f, nil
}
