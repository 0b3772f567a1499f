package content

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/player"
)

// LoadLegacyDungeons reads a dungeonlist.ini bridge ("id,file" per line) and
// the dungeon file each entry names under prefix (with ".ini" appended).
func LoadLegacyDungeons(bridgePath, prefix string, items player.ItemLookup) ([]*adventure.Definition, error) {
	lines, err := readLines(bridgePath)
	if err != nil {
		return nil, err
	}
	var defs []*adventure.Definition
	for n, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || len(parts) < 2 {
			return nil, fmt.Errorf("%s:%d: invalid dungeon entry %q", bridgePath, n+1, line)
		}
		path := filepath.Join(prefix, strings.TrimSpace(parts[1])+".ini")
		d, err := loadLegacyDungeon(id, path, items)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// Dungeon file layout: an ignored first line, the header
// "name,encounters,baseSuccess,min,max", the enemy line
// "enemy,difficulty,...", description, victory text, defeat text, an optional
// "Loot=id,id" line, then encounter text and success text in pairs.
func loadLegacyDungeon(id int, path string, items player.ItemLookup) (*adventure.Definition, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", path, adventure.InvalidDefinitionError{ID: id, Reason: fmt.Sprintf(format, args...)})
	}
	if len(lines) < 6 {
		return nil, bad("truncated dungeon file")
	}

	header := strings.Split(lines[1], ",")
	if len(header) < 5 {
		return nil, bad("header needs 5 fields, got %d", len(header))
	}
	nums := make([]int, 4)
	for i := range nums {
		v, err := strconv.Atoi(strings.TrimSpace(header[i+1]))
		if err != nil {
			return nil, bad("header field %d: %v", i+2, err)
		}
		nums[i] = v
	}
	numEncounters, baseSuccess, minLevel, maxLevel := nums[0], nums[1], nums[2], nums[3]

	enemies := strings.Split(lines[2], ",")
	if len(enemies)/2 != numEncounters {
		return nil, bad("%d encounters declared but enemy line has %d entries", numEncounters, len(enemies)/2)
	}
	difficulties := make([]float64, numEncounters)
	for i := range difficulties {
		v, err := strconv.Atoi(strings.TrimSpace(enemies[2*i+1]))
		if err != nil {
			return nil, bad("difficulty of %s: %v", enemies[2*i], err)
		}
		difficulties[i] = float64(v)
	}

	d := &adventure.Definition{
		ID:              id,
		Name:            strings.TrimSpace(header[0]),
		Description:     lines[3],
		MinLevel:        minLevel,
		MaxLevel:        maxLevel,
		BaseSuccessRate: float64(baseSuccess),
		Cost:            LegacyCost(minLevel),
		PartySize:       LegacyPartySize,
		RewardModifier:  LegacyRewardModifier,
		Success:         lines[4],
		Failure:         lines[5],
	}

	rest := lines[6:]
	if len(rest) > 0 && strings.HasPrefix(rest[0], "Loot=") {
		var ids []int64
		for _, raw := range strings.Split(strings.TrimPrefix(rest[0], "Loot="), ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, bad("loot id %q: %v", raw, err)
			}
			ids = append(ids, v)
		}
		if d.Loot, err = resolveLoot(id, ids, items); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rest = rest[1:]
	}
	for len(rest) > 0 && strings.TrimSpace(rest[len(rest)-1]) == "" {
		rest = rest[:len(rest)-1]
	}
	if len(rest) != 2*numEncounters {
		return nil, bad("%d encounters declared but %d text lines found", numEncounters, len(rest))
	}
	for i := 0; i < numEncounters; i++ {
		d.Encounters = append(d.Encounters, adventure.Encounter{
			Index:       i,
			Difficulty:  difficulties[i],
			Text:        rest[2*i],
			SuccessText: rest[2*i+1],
		})
	}
	if err := adventure.Validate(d); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
